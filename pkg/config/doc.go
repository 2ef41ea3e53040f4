// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package config handles loading the regression notifier configuration from a
// YAML file: notifier behaviour, SMTP settings, committer identity mapping and
// the HTTP and Kafka event intake.
package config
