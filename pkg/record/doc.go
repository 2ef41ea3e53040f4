// Package record loads build.Record implementations from a build directory on
// disk or from a JSON build-completion event.
package record
