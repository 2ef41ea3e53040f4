// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package system provides process-wide logging helpers: zap logger
// construction, request-scoped loggers for the HTTP API, a zap-backed build
// log sink and loggers for tests.
package system
