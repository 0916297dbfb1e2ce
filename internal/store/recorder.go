package store

import (
	"context"

	"github.com/valpere/dwgtran/internal"
	"github.com/valpere/dwgtran/internal/logger"
	"github.com/valpere/dwgtran/internal/session"
)

// Phases recorded for jobs that left the session without completing.
const (
	PhaseFailed    = "failed"
	PhaseCancelled = "cancelled"
)

// Recorder writes the lifecycle of one controller's jobs into the history.
// Observe is cheap and safe to use as a session observer; the database
// writes happen on the recorder's own goroutine, in order.
type Recorder struct {
	store  *Store
	apiURL string
	events chan event
	done   chan struct{}

	current   string
	lastPhase string
	progress  int
}

type event struct {
	snap      session.Session
	jobID     string
	savedPath string
}

// NewRecorder starts a Recorder. Close it to flush pending writes.
func NewRecorder(s *Store, apiURL string) *Recorder {
	r := &Recorder{
		store:  s,
		apiURL: apiURL,
		events: make(chan event, 256),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// Observe queues a session snapshot. It must not be called after Close.
func (r *Recorder) Observe(snap session.Session) {
	r.events <- event{snap: snap}
}

// Downloaded queues the saved location of a job's artifact. It is applied
// after every snapshot observed before it.
func (r *Recorder) Downloaded(jobID, savedPath string) {
	r.events <- event{jobID: jobID, savedPath: savedPath}
}

// Close waits until every queued snapshot is written.
func (r *Recorder) Close() {
	close(r.events)
	<-r.done
}

func (r *Recorder) loop() {
	defer close(r.done)
	ctx := context.Background()
	for e := range r.events {
		if e.jobID != "" {
			if err := r.store.MarkDownloaded(ctx, e.jobID, e.savedPath); err != nil {
				logger.Warn(logger.WithJobID(ctx, e.jobID), "failed to record download", "error", err)
			}
			continue
		}
		r.apply(ctx, e.snap)
	}
}

func (r *Recorder) apply(ctx context.Context, snap session.Session) {
	jobID := snap.JobID()

	switch {
	case jobID != "" && jobID != r.current:
		r.current = jobID
		rec := &internal.JobRecord{
			JobID:    jobID,
			FileName: snap.FileName(),
			APIURL:   r.apiURL,
			Phase:    snap.Phase.String(),
			Progress: snap.Progress,
			Error:    snap.Error,
		}
		if snap.File != nil {
			rec.Extension = snap.File.Extension
			rec.SizeBytes = snap.File.Size()
		}
		if err := r.store.SaveRecord(ctx, rec); err != nil {
			logger.Warn(logger.WithJobID(ctx, jobID), "failed to record job", "error", err)
		}

	case jobID != "":
		r.update(ctx, jobID, snap.Phase.String(), snap.Progress, snap.Error)

	case r.current != "":
		if r.lastPhase != session.PhaseCompleted.String() {
			phase := PhaseCancelled
			if snap.Error != "" {
				phase = PhaseFailed
			}
			r.update(ctx, r.current, phase, r.progress, snap.Error)
		}
		r.current = ""
		r.lastPhase = ""
		r.progress = 0
		return
	default:
		return
	}

	r.lastPhase = snap.Phase.String()
	r.progress = snap.Progress
}

func (r *Recorder) update(ctx context.Context, jobID, phase string, progress int, errMsg string) {
	if err := r.store.UpdateRecord(ctx, jobID, phase, progress, errMsg); err != nil {
		logger.Warn(logger.WithJobID(ctx, jobID), "failed to update job record", "error", err)
	}
}
