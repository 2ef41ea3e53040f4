// Package metrics defines Prometheus metrics for the regression notifier,
// covering build evaluations, culprit resolution, log attachments, mail
// delivery and build-event intake.
package metrics
