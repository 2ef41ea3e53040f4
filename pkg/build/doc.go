// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

// Package build defines the read-only view of a finished CI build that the
// notifier evaluates: its result, test-result summary, change log and console
// log.
package build
