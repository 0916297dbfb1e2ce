// Package poller tracks a submitted job by querying its status on a fixed
// interval until the backend reports a terminal state.
//
// Each call to Start opens a poll session with its own generation token and
// consecutive-failure counter. A session ends in exactly one of three ways:
// a terminal status (completed or failed), too many consecutive request
// failures, or Cancel. Responses that belong to a cancelled or superseded
// session are dropped on arrival.
package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valpere/dwgtran/internal/job"
	"github.com/valpere/dwgtran/internal/logger"
)

const (
	// DefaultInterval is the delay between two status requests.
	DefaultInterval = 2 * time.Second

	// DefaultMaxFailures is how many consecutive failed requests are tolerated.
	DefaultMaxFailures = 3
)

// StatusFetcher queries the backend for a job's current state.
type StatusFetcher interface {
	JobStatus(ctx context.Context, jobID string) (*job.Job, error)
}

// Config tunes a Poller. A non-positive Interval and a nil Clock select the
// defaults. MaxFailures is taken as given, so the zero value aborts on the
// first failure; pass a negative value for DefaultMaxFailures.
type Config struct {
	Interval    time.Duration
	MaxFailures int
	Clock       Clock
}

// Update reports progress of a job that is still running.
type Update struct {
	Generation uint64
	JobID      string
	Status     job.Status
	Progress   int
}

// Outcome is the single terminal report of a poll session.
type Outcome struct {
	Generation uint64
	JobID      string
	Succeeded  bool
	Progress   int
	Message    string
}

// Poller starts poll sessions against a StatusFetcher.
type Poller struct {
	fetcher    StatusFetcher
	cfg        Config
	generation atomic.Uint64
}

// New creates a Poller.
func New(fetcher StatusFetcher, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxFailures < 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	return &Poller{fetcher: fetcher, cfg: cfg}
}

// Interval returns the configured delay between requests.
func (p *Poller) Interval() time.Duration {
	return p.cfg.Interval
}

// Generation returns the token of the most recently started session.
func (p *Poller) Generation() uint64 {
	return p.generation.Load()
}

// Handle controls one poll session.
type Handle struct {
	jobID      string
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	cancelled  atomic.Bool
	once       sync.Once
}

// Cancel stops the session. It is safe to call any number of times, before
// or after the session ended on its own. A request already in flight is not
// interrupted; its response is discarded.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		h.cancelled.Store(true)
		h.cancel()
	})
}

// Done is closed once the session's goroutine has exited and its ticker is stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Active reports whether the session may still issue requests.
func (h *Handle) Active() bool {
	select {
	case <-h.done:
		return false
	default:
		return !h.cancelled.Load()
	}
}

// Generation returns the token bound to this session.
func (h *Handle) Generation() uint64 {
	return h.generation
}

// JobID returns the job this session tracks.
func (h *Handle) JobID() string {
	return h.jobID
}

// Start begins polling jobID. onUpdate receives non-decreasing progress for
// running jobs; onTerminal is called at most once, and never after Cancel.
// Starting a session supersedes every earlier session of this Poller.
func (p *Poller) Start(ctx context.Context, jobID string, onUpdate func(Update), onTerminal func(Outcome)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		jobID:      jobID,
		generation: p.generation.Add(1),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	ticker := p.cfg.Clock.NewTicker(p.cfg.Interval)
	go p.run(logger.WithJobID(ctx, jobID), h, ticker, onUpdate, onTerminal)
	return h
}

// current reports whether h is still the live session.
func (p *Poller) current(h *Handle) bool {
	return !h.cancelled.Load() && p.generation.Load() == h.generation
}

func (p *Poller) run(ctx context.Context, h *Handle, ticker Ticker, onUpdate func(Update), onTerminal func(Outcome)) {
	defer close(h.done)
	defer ticker.Stop()
	defer h.cancel()

	terminal := func(o Outcome) {
		o.Generation = h.generation
		o.JobID = h.jobID
		if onTerminal != nil {
			onTerminal(o)
		}
	}

	last := -1
	failures := 0

	for {
		select {
		case <-ctx.Done():
			if p.current(h) {
				terminal(Outcome{Progress: max(last, 0), Message: fmt.Sprintf("polling stopped: %v", ctx.Err())})
			}
			return
		case <-ticker.C():
		}

		if !p.current(h) {
			return
		}

		j, err := p.fetcher.JobStatus(ctx, h.jobID)
		if !p.current(h) {
			logger.Debug(ctx, "discarding response of superseded poll", "generation", h.generation)
			return
		}
		if err == nil && j.Status == job.StatusUnknown {
			err = &job.UnknownStatusError{Value: j.Status.String()}
		}

		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			failures++
			if failures > p.cfg.MaxFailures {
				logger.Warn(ctx, "giving up on job status", "failures", failures, "error", err)
				terminal(Outcome{Progress: max(last, 0), Message: fmt.Sprintf("polling error: %v", err)})
				return
			}
			logger.Warn(ctx, "status check failed", "attempt", failures, "max_failures", p.cfg.MaxFailures, "error", err)
			continue
		}
		failures = 0

		switch j.Status {
		case job.StatusCompleted:
			logger.Info(ctx, "job completed")
			terminal(Outcome{Succeeded: true, Progress: 100})
			return

		case job.StatusFailed:
			msg := j.ErrorMessage
			if msg == "" {
				msg = "processing failed"
			}
			logger.Warn(ctx, "job failed", "error", msg)
			terminal(Outcome{Progress: max(last, 0), Message: msg})
			return

		case job.StatusQueued, job.StatusProcessing:
			if j.Progress < last {
				logger.Debug(ctx, "discarding out-of-order progress", "progress", j.Progress, "last", last)
				continue
			}
			last = j.Progress
			if onUpdate != nil {
				onUpdate(Update{Generation: h.generation, JobID: h.jobID, Status: j.Status, Progress: j.Progress})
			}
		}
	}
}
