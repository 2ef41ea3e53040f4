package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/regression-notifier/pkg/apiresponses"
	"github.com/telekom/regression-notifier/pkg/build"
	"github.com/telekom/regression-notifier/pkg/metrics"
	"github.com/telekom/regression-notifier/pkg/notifier"
	"github.com/telekom/regression-notifier/pkg/ratelimit"
	"github.com/telekom/regression-notifier/pkg/record"
	"github.com/telekom/regression-notifier/pkg/system"
)

// maxEventBytes bounds the size of a posted build event.
const maxEventBytes = 4 << 20

// Evaluator decides on and sends the regression report of a build.
type Evaluator interface {
	Evaluate(rec build.Record) notifier.Decision
}

// DecisionResponse is the body returned for an accepted build event.
type DecisionResponse struct {
	EventID     string   `json:"eventID,omitempty" yaml:"eventID,omitempty"`
	Outcome     string   `json:"outcome" yaml:"outcome"`
	Reason      string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	Regressions []string `json:"regressions,omitempty" yaml:"regressions,omitempty"`
	Recipients  []string `json:"recipients,omitempty" yaml:"recipients,omitempty"`
	Error       string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewDecisionResponse converts a decision for the event with id eventID.
func NewDecisionResponse(eventID string, d notifier.Decision) DecisionResponse {
	resp := DecisionResponse{
		EventID:    eventID,
		Outcome:    d.Outcome.String(),
		Reason:     d.Reason,
		Recipients: d.Recipients,
	}
	for _, r := range d.Regressions {
		resp.Regressions = append(resp.Regressions, r.FullName())
	}
	if d.Err != nil {
		resp.Error = d.Err.Error()
	}
	return resp
}

// BuildOptions configures the /builds controller.
type BuildOptions struct {
	// Limiter may be nil to accept events without rate limiting.
	Limiter *ratelimit.Limiter
	// ConsoleLogRoot is the directory events may reference console logs
	// in. Empty rejects events that reference one.
	ConsoleLogRoot string
}

type BuildController struct {
	evaluator Evaluator
	opts      BuildOptions
	log       *zap.SugaredLogger
}

// NewBuildController creates the /builds controller.
func NewBuildController(evaluator Evaluator, opts BuildOptions, log *zap.SugaredLogger) *BuildController {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &BuildController{evaluator: evaluator, opts: opts, log: log.Named("builds")}
}

func (bc *BuildController) BasePath() string {
	return "builds"
}

func (bc *BuildController) Handlers() []gin.HandlerFunc {
	if bc.opts.Limiter == nil {
		return nil
	}
	return []gin.HandlerFunc{bc.opts.Limiter.Middleware(bc.rateLimited)}
}

func (bc *BuildController) rateLimited(c *gin.Context) {
	metrics.EventsReceived.WithLabelValues(metrics.SourceHTTP, metrics.EventRateLimited).Inc()
	apiresponses.RespondTooManyRequests(c)
}

func (bc *BuildController) Register(rg *gin.RouterGroup) error {
	rg.POST("", bc.handlePostBuild)
	return nil
}

// handlePostBuild evaluates a build event. A failed notification is still
// answered with 200; only an unusable event is a client error.
func (bc *BuildController) handlePostBuild(c *gin.Context) {
	log := system.GetReqLogger(c, bc.log)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBytes+1))
	if err != nil {
		apiresponses.RespondInternalError(c, "read request body", err, log)
		return
	}
	if len(body) == 0 {
		bc.reject(c, log, "empty build event", "")
		return
	}
	if len(body) > maxEventBytes {
		bc.reject(c, log, "build event too large", fmt.Sprintf("limit is %d bytes", maxEventBytes))
		return
	}

	ev, err := record.DecodeEvent(body)
	if err != nil {
		bc.reject(c, log, "malformed build event", err.Error())
		return
	}
	log = log.With(system.BuildFields(ev.Job, ev.Number, ev.ID)...)

	if bc.opts.Limiter != nil && !bc.opts.Limiter.AllowJob(c.ClientIP(), ev.Job) {
		log.Infow("Rate limited build event")
		bc.rateLimited(c)
		return
	}

	sink := system.NewSinkWriter(log)
	rec, err := record.FromEvent(ev, record.EventOptions{Sink: sink, ConsoleLogRoot: bc.opts.ConsoleLogRoot})
	if err != nil {
		bc.reject(c, log, "invalid build event", err.Error())
		return
	}
	metrics.EventsReceived.WithLabelValues(metrics.SourceHTTP, metrics.EventAccepted).Inc()

	d := bc.evaluator.Evaluate(rec)
	sink.Flush()
	if d.Err != nil {
		log.Warnw("Regression report could not be sent", "error", d.Err)
	}
	c.JSON(http.StatusOK, NewDecisionResponse(ev.ID, d))
}

func (bc *BuildController) reject(c *gin.Context, log *zap.SugaredLogger, msg, details string) {
	metrics.EventsReceived.WithLabelValues(metrics.SourceHTTP, metrics.EventInvalid).Inc()
	log.Infow("Rejected build event", "reason", msg, "details", details)
	if details == "" {
		apiresponses.RespondBadRequest(c, msg)
		return
	}
	apiresponses.RespondBadRequestWithDetails(c, msg, details)
}
