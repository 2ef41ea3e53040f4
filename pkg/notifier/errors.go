// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package notifier

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoMailSender is returned by New when no MailSender is supplied.
var ErrNoMailSender = errors.New("notifier requires a mail sender")

// NotificationError reports that a regression report could not be delivered.
type NotificationError struct {
	Job        string
	Number     int
	Recipients []string
	Err        error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("sending regression report for %s #%d to %s: %v",
		e.Job, e.Number, strings.Join(e.Recipients, ", "), e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
