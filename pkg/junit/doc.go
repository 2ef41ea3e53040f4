// Package junit reads JUnit XML test reports and derives per-case status
// (passed, fixed, regression, failed, skipped) by comparing a run against the
// reports of the previous run.
package junit
