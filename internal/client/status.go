package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/valpere/dwgtran/internal/job"
	"github.com/valpere/dwgtran/internal/logger"
)

// JobSummary is one entry of the backend's job listing.
type JobSummary struct {
	JobID       string `json:"job_id" yaml:"job_id"`
	Filename    string `json:"filename" yaml:"filename"`
	Status      string `json:"status" yaml:"status"`
	Progress    int    `json:"progress" yaml:"progress"`
	CreatedAt   string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// Health is the backend's liveness answer.
type Health struct {
	Status    string `json:"status" yaml:"status"`
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

type statusResponse struct {
	JobID        string  `json:"job_id"`
	Status       string  `json:"status"`
	Progress     float64 `json:"progress"`
	ErrorMessage *string `json:"error_message"`
}

// JobStatus queries the current state of jobID. An unrecognised status value
// is reported as a malformed response wrapping *job.UnknownStatusError.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*job.Job, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, ctx, err := c.newRequest(logger.WithJobID(ctx, jobID), http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, &StatusError{networkError(err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &StatusError{networkError(err)}
	}
	defer resp.Body.Close()

	raw := readBody(resp.Body)

	if !isSuccess(resp.StatusCode) {
		return nil, &StatusError{serverError(resp.StatusCode, raw, fmt.Sprintf("status check failed with HTTP %d", resp.StatusCode))}
	}

	var sr statusResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, &StatusError{malformedError("failed to decode job status", err)}
	}

	status, err := job.ParseStatus(sr.Status)
	if err != nil {
		return nil, &StatusError{malformedError("invalid job status", err)}
	}

	j := &job.Job{
		ID:       jobID,
		Status:   status,
		Progress: job.ClampProgress(int(math.Round(sr.Progress))),
	}
	if status == job.StatusFailed && sr.ErrorMessage != nil {
		j.ErrorMessage = *sr.ErrorMessage
	}

	logger.Debug(ctx, "job status", "status", j.Status.String(), "progress", j.Progress)
	return j, nil
}

// ListJobs returns every job the backend currently knows about.
func (c *Client) ListJobs(ctx context.Context) ([]JobSummary, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, _, err := c.newRequest(ctx, http.MethodGet, "/jobs", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		re := networkError(err)
		return nil, &re
	}
	defer resp.Body.Close()

	raw := readBody(resp.Body)
	if !isSuccess(resp.StatusCode) {
		re := serverError(resp.StatusCode, raw, "failed to list jobs")
		return nil, &re
	}

	var listResp struct {
		Jobs []JobSummary `json:"jobs"`
	}
	if err := json.Unmarshal(raw, &listResp); err != nil {
		re := malformedError("failed to decode job list", err)
		return nil, &re
	}
	return listResp.Jobs, nil
}

// Health asks the backend whether it is up.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, _, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		re := networkError(err)
		return nil, &re
	}
	defer resp.Body.Close()

	raw := readBody(resp.Body)
	if !isSuccess(resp.StatusCode) {
		re := serverError(resp.StatusCode, raw, fmt.Sprintf("health check failed with HTTP %d", resp.StatusCode))
		return nil, &re
	}

	var h Health
	if err := json.Unmarshal(raw, &h); err != nil {
		re := malformedError("failed to decode health response", err)
		return nil, &re
	}
	return &h, nil
}
