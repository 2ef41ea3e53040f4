package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Evaluation metrics
	Evaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regression_notifier_evaluations_total",
		Help: "Total number of build evaluations grouped by decision (noop, sent, failed)",
	}, []string{"outcome"})
	RegressionsDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regression_notifier_regressions_detected_total",
		Help: "Total number of regressed test cases found across evaluated builds",
	})
	UnresolvedCulprits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regression_notifier_unresolved_culprits_total",
		Help: "Total number of commit authors that could not be mapped to an address",
	})
	AttachmentFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regression_notifier_attachment_failures_total",
		Help: "Total number of reports sent without the console log because it could not be read",
	})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regression_notifier_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regression_notifier_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})

	// Event intake metrics
	EventsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regression_notifier_events_received_total",
		Help: "Total number of build-completion events received grouped by source and status (accepted, invalid, rate_limited)",
	}, []string{"source", "status"})

	// Rate limiter metrics
	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regression_notifier_rate_limited_total",
		Help: "Total number of build events rejected by the intake rate limiter grouped by scope (client, job)",
	}, []string{"scope"})
	RateLimiterBuckets = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "regression_notifier_rate_limiter_buckets",
		Help: "Number of token buckets currently tracked by the intake rate limiter grouped by scope (client, job)",
	}, []string{"scope"})
)

// Label values of EventsReceived.
const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"

	EventAccepted    = "accepted"
	EventInvalid     = "invalid"
	EventRateLimited = "rate_limited"
)

func init() {
	prometheus.MustRegister(Evaluations)
	prometheus.MustRegister(RegressionsDetected)
	prometheus.MustRegister(UnresolvedCulprits)
	prometheus.MustRegister(AttachmentFailures)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(EventsReceived)
	prometheus.MustRegister(RateLimited)
	prometheus.MustRegister(RateLimiterBuckets)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// WriteTextfile writes all registered metrics to path in the text exposition
// format, for pickup by a node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
