package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/valpere/dwgtran/internal/logger"
)

// Artifact is an open stream of a translated drawing. The caller owns Body
// and must close it.
type Artifact struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// FetchArtifact opens the translated drawing of a completed job.
func (c *Client) FetchArtifact(ctx context.Context, jobID string) (*Artifact, error) {
	req, ctx, err := c.newRequest(logger.WithJobID(ctx, jobID), http.MethodGet, "/download/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, &DownloadError{networkError(err)}
	}
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Warn(ctx, "download request failed", "error", err)
		return nil, &DownloadError{networkError(err)}
	}

	if !isSuccess(resp.StatusCode) {
		defer resp.Body.Close()
		raw := readBody(resp.Body)
		return nil, &DownloadError{serverError(resp.StatusCode, raw, fmt.Sprintf("download failed with HTTP %d", resp.StatusCode))}
	}

	return &Artifact{
		Body:        resp.Body,
		Size:        resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
