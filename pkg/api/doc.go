// Package api exposes the notifier over HTTP: build-completion events are
// posted to /api/v1/builds and evaluated synchronously. The server also
// serves /metrics and /healthz.
package api
