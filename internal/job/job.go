// Package job holds the client-side view of a backend translation job.
package job

import (
	"fmt"
	"strings"
)

// Status is the closed set of job states the client understands.
type Status int

const (
	StatusUnknown Status = iota
	StatusQueued
	StatusProcessing
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions can follow s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MarshalText lets Status appear as its name in JSON and YAML output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnknownStatusError is returned for a status value outside the backend vocabulary.
type UnknownStatusError struct {
	Value string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown job status %q", e.Value)
}

// ParseStatus maps the backend's status vocabulary onto Status. The backend
// reports intermediate stage names while a job runs; all of them collapse
// into StatusProcessing.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queued", "uploaded", "pending":
		return StatusQueued, nil
	case "processing", "processing_started", "extracting", "translating", "replacing":
		return StatusProcessing, nil
	case "completed":
		return StatusCompleted, nil
	case "failed":
		return StatusFailed, nil
	default:
		return StatusUnknown, &UnknownStatusError{Value: raw}
	}
}

// Handle is what a successful submission yields.
type Handle struct {
	ID string `json:"job_id"`
}

// Job is a backend-assigned unit of asynchronous work.
type Job struct {
	ID           string `json:"job_id" yaml:"job_id"`
	Status       Status `json:"status" yaml:"status"`
	Progress     int    `json:"progress" yaml:"progress"`
	ErrorMessage string `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// ClampProgress keeps a backend-reported progress value inside 0..100.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
