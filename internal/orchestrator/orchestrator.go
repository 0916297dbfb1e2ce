package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/valpere/dwgtran/internal/logger"
	"github.com/valpere/dwgtran/internal/session"
	"github.com/valpere/dwgtran/internal/validator"
)

// ControllerFactory builds a fresh controller for one file of a batch.
type ControllerFactory func(name string) *session.Controller

type OrchestratorConfig struct {
	// Timeout bounds one file from upload to saved artifact. Zero means none.
	Timeout time.Duration
	// Concurrency caps how many files are in flight. Zero or less means 1.
	Concurrency int
}

// FileResult is the outcome of one file.
type FileResult struct {
	Name  string
	JobID string
	Path  string
	Err   error
}

type OrchestratorResult struct {
	Files     []FileResult
	Errors    []error
	Succeeded int
	Failed    int
}

type Orchestrator struct {
	newController ControllerFactory
	config        OrchestratorConfig
}

func New(factory ControllerFactory, config OrchestratorConfig) *Orchestrator {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Orchestrator{
		newController: factory,
		config:        config,
	}
}

// Execute translates every candidate and downloads its artifact. Files are
// independent: one failure does not stop the others. Files keep the order of
// candidates in the result.
func (o *Orchestrator) Execute(ctx context.Context, candidates []*validator.Candidate) *OrchestratorResult {
	result := &OrchestratorResult{
		Files:  make([]FileResult, 0, len(candidates)),
		Errors: make([]error, 0),
	}

	type indexed struct {
		index int
		res   FileResult
	}

	results := make(chan indexed, len(candidates))
	sem := make(chan struct{}, o.config.Concurrency)

	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(index int, candidate *validator.Candidate) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- indexed{index: index, res: FileResult{Name: nameOf(candidate), Err: ctx.Err()}}
				return
			}
			defer func() { <-sem }()

			results <- indexed{index: index, res: o.runOne(ctx, candidate)}
		}(i, c)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]indexed, 0, len(candidates))
	for r := range results {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(a, b int) bool { return collected[a].index < collected[b].index })

	for _, r := range collected {
		result.Files = append(result.Files, r.res)
		if r.res.Err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", r.res.Name, r.res.Err))
			result.Failed++
		} else {
			result.Succeeded++
		}
	}

	return result
}

func (o *Orchestrator) runOne(ctx context.Context, candidate *validator.Candidate) FileResult {
	res := FileResult{Name: nameOf(candidate)}

	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}
	ctx = logger.WithFile(ctx, res.Name)

	ctrl := o.newController(res.Name)
	defer ctrl.Reset()

	if err := ctrl.SelectFile(candidate); err != nil {
		res.Err = err
		return res
	}
	if err := ctrl.SubmitAndTranslate(ctx); err != nil {
		res.Err = err
		return res
	}

	snap, err := ctrl.Wait(ctx)
	res.JobID = snap.JobID()
	if err != nil {
		res.Err = fmt.Errorf("waiting for job: %w", err)
		return res
	}
	if snap.Phase != session.PhaseCompleted {
		msg := snap.Error
		if msg == "" {
			msg = "translation did not complete"
		}
		res.Err = errors.New(msg)
		return res
	}

	path, err := ctrl.Download(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.Path = path
	logger.Info(logger.WithJobID(ctx, res.JobID), "file translated", "path", path)
	return res
}

func nameOf(c *validator.Candidate) string {
	if c == nil {
		return ""
	}
	return c.Name
}
