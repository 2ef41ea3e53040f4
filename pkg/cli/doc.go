// Package cli implements the regression-notifier command tree: notify for a
// single build directory, serve for the HTTP intake, consume for the Kafka
// intake and version.
package cli
