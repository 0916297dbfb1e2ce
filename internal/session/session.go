// Package session sequences validation, submission, polling and download of
// one drawing at a time and owns the state a user sees while that happens.
//
// All mutations of the Session go through the Controller and happen under
// its mutex; network I/O never does. Results that arrive after Reset, or
// after a newer submission replaced the job they belong to, are dropped.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/valpere/dwgtran/internal/job"
	"github.com/valpere/dwgtran/internal/logger"
	"github.com/valpere/dwgtran/internal/poller"
	"github.com/valpere/dwgtran/internal/validator"
)

// Phase is the client-visible stage of a session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUploading
	PhaseProcessing
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUploading:
		return "uploading"
	case PhaseProcessing:
		return "processing"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase name in JSON and YAML.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Busy reports whether a submission or poll is in progress.
func (p Phase) Busy() bool {
	return p == PhaseUploading || p == PhaseProcessing
}

var (
	ErrNoFile   = errors.New("no file selected")
	ErrBusy     = errors.New("a translation is already in progress")
	ErrNotReady = errors.New("translation is not completed")
	ErrReset    = errors.New("session was reset")
)

// Session is a point-in-time copy of the controller's state.
type Session struct {
	File     *validator.SelectedFile `json:"-" yaml:"-"`
	Job      *job.Job                `json:"job,omitempty" yaml:"job,omitempty"`
	Phase    Phase                   `json:"phase" yaml:"phase"`
	Progress int                     `json:"progress" yaml:"progress"`
	Error    string                  `json:"error,omitempty" yaml:"error,omitempty"`
}

// FileName returns the selected file's name, or "".
func (s Session) FileName() string {
	if s.File == nil {
		return ""
	}
	return s.File.Name
}

// JobID returns the current job's identifier, or "".
func (s Session) JobID() string {
	if s.Job == nil {
		return ""
	}
	return s.Job.ID
}

func (s Session) clone() Session {
	if s.Job != nil {
		j := *s.Job
		s.Job = &j
	}
	return s
}

// Submitter sends a validated file to the backend.
type Submitter interface {
	Submit(ctx context.Context, file *validator.SelectedFile) (*job.Handle, error)
}

// PollStarter opens poll sessions for submitted jobs.
type PollStarter interface {
	Start(ctx context.Context, jobID string, onUpdate func(poller.Update), onTerminal func(poller.Outcome)) *poller.Handle
}

// ArtifactDownloader saves the translated drawing of a completed job.
type ArtifactDownloader interface {
	Download(ctx context.Context, jobID, originalName string) (string, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers fn to receive a snapshot after every state change.
// fn runs while the controller is locked and must not call back into it.
func WithObserver(fn func(Session)) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, fn)
	}
}

// Controller owns one Session.
type Controller struct {
	validator  *validator.Validator
	submitter  Submitter
	poller     PollStarter
	downloader ArtifactDownloader
	observers  []func(Session)

	mu      sync.Mutex
	state   Session
	epoch   uint64
	poll    *poller.Handle
	changed chan struct{}
}

// New creates a Controller in the Idle phase.
func New(v *validator.Validator, submitter Submitter, p PollStarter, d ArtifactDownloader, opts ...Option) *Controller {
	if v == nil {
		v = validator.New(nil)
	}
	c := &Controller{
		validator:  v,
		submitter:  submitter,
		poller:     p,
		downloader: d,
		changed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// notify publishes the current state. Caller holds c.mu.
func (c *Controller) notify() {
	close(c.changed)
	c.changed = make(chan struct{})

	if len(c.observers) == 0 {
		return
	}
	snap := c.state.clone()
	for _, fn := range c.observers {
		fn(snap)
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SelectFile validates candidate and attaches it. An invalid candidate
// clears any previously attached file and records the reason as the
// session error. Selecting after a completed run starts over with the new
// file.
func (c *Controller) SelectFile(candidate *validator.Candidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase.Busy() {
		return ErrBusy
	}

	file, err := c.validator.Validate(candidate)
	c.state = Session{Phase: PhaseIdle}
	if err != nil {
		c.state.Error = err.Error()
		c.notify()
		return err
	}

	c.state.File = file
	c.notify()
	return nil
}

// SubmitAndTranslate uploads the attached file and, once the backend accepts
// it, starts polling the new job. It returns after the upload; use Wait to
// block until the job settles. Polling runs under ctx.
func (c *Controller) SubmitAndTranslate(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Phase.Busy() {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state.File == nil {
		c.state.Error = ErrNoFile.Error()
		c.notify()
		c.mu.Unlock()
		return ErrNoFile
	}

	file := c.state.File
	c.epoch++
	epoch := c.epoch
	c.state = Session{File: file, Phase: PhaseUploading}
	c.notify()
	c.mu.Unlock()

	ctx = logger.WithFile(ctx, file.Name)
	handle, err := c.submitter.Submit(ctx, file)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		logger.Debug(ctx, "discarding upload result after reset")
		return ErrReset
	}

	if err == nil && (handle == nil || handle.ID == "") {
		err = errors.New("upload returned no job id")
	}
	if err != nil {
		logger.Warn(ctx, "upload failed", "error", err)
		c.state = Session{File: file, Phase: PhaseIdle, Error: err.Error()}
		c.notify()
		return err
	}

	if c.poll != nil {
		c.poll.Cancel()
		c.poll = nil
	}

	c.state = Session{
		File:  file,
		Job:   &job.Job{ID: handle.ID, Status: job.StatusQueued},
		Phase: PhaseProcessing,
	}
	c.poll = c.poller.Start(ctx, handle.ID,
		func(u poller.Update) { c.onUpdate(epoch, u) },
		func(o poller.Outcome) { c.onTerminal(epoch, o) },
	)
	logger.Info(logger.WithJobID(ctx, handle.ID), "polling started")
	c.notify()
	return nil
}

// live reports whether a poll callback still belongs to the current job.
// Caller holds c.mu.
func (c *Controller) live(epoch, generation uint64) bool {
	return c.epoch == epoch &&
		c.poll != nil &&
		c.poll.Generation() == generation &&
		c.state.Phase == PhaseProcessing
}

func (c *Controller) onUpdate(epoch uint64, u poller.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.live(epoch, u.Generation) {
		return
	}
	if u.Progress < c.state.Progress {
		return
	}

	c.state.Progress = u.Progress
	c.state.Job.Status = u.Status
	c.state.Job.Progress = u.Progress
	c.notify()
}

func (c *Controller) onTerminal(epoch uint64, o poller.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.live(epoch, o.Generation) {
		return
	}
	c.poll = nil

	if o.Succeeded {
		c.state.Phase = PhaseCompleted
		c.state.Progress = 100
		c.state.Job.Status = job.StatusCompleted
		c.state.Job.Progress = 100
		c.state.Error = ""
	} else {
		c.state = Session{File: c.state.File, Phase: PhaseIdle, Error: o.Message}
	}
	c.notify()
}

// Download saves the artifact of the completed job and returns where it was
// written. The phase stays Completed whether or not the download succeeds;
// a failure is recorded as the session error.
func (c *Controller) Download(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state.Phase != PhaseCompleted || c.state.Job == nil || c.state.File == nil {
		c.mu.Unlock()
		return "", ErrNotReady
	}
	epoch := c.epoch
	jobID := c.state.Job.ID
	name := c.state.File.Name
	c.mu.Unlock()

	location, err := c.downloader.Download(ctx, jobID, name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		if err != nil {
			return "", err
		}
		return location, nil
	}
	if err != nil {
		c.state.Error = err.Error()
		c.notify()
		return "", err
	}
	c.state.Error = ""
	c.notify()
	return location, nil
}

// Reset cancels any active poll and returns the session to an empty Idle
// state. It is valid in every phase.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poll != nil {
		c.poll.Cancel()
		c.poll = nil
	}
	c.epoch++
	c.state = Session{Phase: PhaseIdle}
	c.notify()
}

// Wait blocks until no upload or poll is in progress and returns the state
// at that moment.
func (c *Controller) Wait(ctx context.Context) (Session, error) {
	for {
		c.mu.Lock()
		if !c.state.Phase.Busy() {
			snap := c.state.clone()
			c.mu.Unlock()
			return snap, nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
}
