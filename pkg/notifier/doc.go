// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

// Package notifier decides whether a finished build regressed any test case
// and, if so, assembles a report and hands it to a MailSender for delivery.
package notifier
