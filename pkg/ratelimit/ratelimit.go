package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/telekom/regression-notifier/pkg/metrics"
)

// Scope names the bucket a build event was checked against.
type Scope string

const (
	// ScopeClient limits all events sent by one client address.
	ScopeClient Scope = "client"
	// ScopeJob limits the events of one job sent by one client address.
	ScopeJob Scope = "job"
)

// Config holds rate limiter configuration
type Config struct {
	// Rate is the number of events allowed per second and client. A
	// non-positive Rate disables the client limit.
	Rate float64
	// Burst is the maximum number of events a client may send in a burst
	Burst int
	// JobRate is the number of events allowed per second for one job of
	// one client. A non-positive JobRate disables the job limit.
	JobRate float64
	// JobBurst is the burst allowance of a single job
	JobBurst int
	// CleanupInterval is how often to clean up stale buckets
	CleanupInterval time.Duration
	// MaxAge is how long to keep a bucket after last access
	MaxAge time.Duration
}

// DefaultConfig returns the default limits for the build intake: 20
// events/s per client with a burst of 50, and 1 event/s per job with a
// burst of 5.
func DefaultConfig() Config {
	return Config{
		Rate:            20,
		Burst:           50,
		JobRate:         1,
		JobBurst:        5,
		CleanupInterval: time.Minute,
		MaxAge:          5 * time.Minute,
	}
}

// bucket holds a token bucket and the last time it was used
type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

type jobKey struct {
	client string
	job    string
}

// Limiter rate limits build events per client and per job within a
// client, evicting idle buckets in the background.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*bucket
	jobs    map[jobKey]*bucket
	config  Config
	done    chan struct{}
	once    sync.Once
}

// New creates a Limiter. Stop must be called to release the cleanup
// goroutine.
func New(cfg Config) *Limiter {
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.JobBurst < 1 {
		cfg.JobBurst = 1
	}

	l := &Limiter{
		clients: make(map[string]*bucket),
		jobs:    make(map[jobKey]*bucket),
		config:  cfg,
		done:    make(chan struct{}),
	}
	l.report()

	go l.cleanup()

	return l
}

// AllowClient checks whether client may send another event.
func (l *Limiter) AllowClient(client string) bool {
	if l.config.Rate <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.clients[client]
	if !exists {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.config.Rate), l.config.Burst)}
		l.clients[client] = b
		l.report()
	}
	return l.take(b, ScopeClient)
}

// AllowJob checks whether client may send another event for job.
func (l *Limiter) AllowJob(client, job string) bool {
	if l.config.JobRate <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := jobKey{client: client, job: job}
	b, exists := l.jobs[key]
	if !exists {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.config.JobRate), l.config.JobBurst)}
		l.jobs[key] = b
		l.report()
	}
	return l.take(b, ScopeJob)
}

func (l *Limiter) take(b *bucket, scope Scope) bool {
	b.lastAccess = time.Now()
	if b.limiter.Allow() {
		return true
	}
	metrics.RateLimited.WithLabelValues(string(scope)).Inc()
	return false
}

// Middleware returns a Gin middleware that applies the client limit.
// Rejected requests are passed to reject, which must write the response;
// nil answers with a plain 429. The job limit needs the decoded event and
// is checked by the handler through AllowJob.
func (l *Limiter) Middleware(reject gin.HandlerFunc) gin.HandlerFunc {
	if reject == nil {
		reject = func(c *gin.Context) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded, please try again later",
			})
		}
	}
	return func(c *gin.Context) {
		if !l.AllowClient(c.ClientIP()) {
			reject(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.done) })
}

// cleanup periodically removes stale buckets
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.cleanupStaleBuckets()
		}
	}
}

func (l *Limiter) cleanupStaleBuckets() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for client, b := range l.clients {
		if now.Sub(b.lastAccess) > l.config.MaxAge {
			delete(l.clients, client)
		}
	}
	for key, b := range l.jobs {
		if now.Sub(b.lastAccess) > l.config.MaxAge {
			delete(l.jobs, key)
		}
	}
	l.report()
}

// report publishes the bucket counts. Callers hold l.mu once l is shared.
func (l *Limiter) report() {
	metrics.RateLimiterBuckets.WithLabelValues(string(ScopeClient)).Set(float64(len(l.clients)))
	metrics.RateLimiterBuckets.WithLabelValues(string(ScopeJob)).Set(float64(len(l.jobs)))
}

// Len returns the number of tracked buckets of scope.
func (l *Limiter) Len(scope Scope) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if scope == ScopeJob {
		return len(l.jobs)
	}
	return len(l.clients)
}

func (l *Limiter) Config() Config {
	return l.config
}
