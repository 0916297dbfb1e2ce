package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/valpere/dwgtran/internal/job"
	"github.com/valpere/dwgtran/internal/logger"
	"github.com/valpere/dwgtran/internal/validator"
)

// Submit uploads file as a new translation job and returns its handle.
// It issues exactly one request and does not start polling.
func (c *Client) Submit(ctx context.Context, file *validator.SelectedFile) (*job.Handle, error) {
	if file == nil {
		return nil, fmt.Errorf("submit: no file selected")
	}

	body, contentType, err := encodeUpload(file)
	if err != nil {
		return nil, &SubmissionError{malformedError("failed to encode upload", err)}
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, ctx, err := c.newRequest(logger.WithFile(ctx, file.Name), http.MethodPost, "/upload", body)
	if err != nil {
		return nil, &SubmissionError{networkError(err)}
	}
	req.Header.Set("Content-Type", contentType)

	logger.Debug(ctx, "uploading drawing", "bytes", file.Size())

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Warn(ctx, "upload request failed", "error", err)
		return nil, &SubmissionError{networkError(err)}
	}
	defer resp.Body.Close()

	raw := readBody(resp.Body)

	if !isSuccess(resp.StatusCode) {
		logger.Warn(ctx, "upload rejected", "status", resp.StatusCode)
		return nil, &SubmissionError{serverError(resp.StatusCode, raw, "upload failed")}
	}

	var uploadResp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(raw, &uploadResp); err != nil {
		return nil, &SubmissionError{malformedError("failed to decode upload response", err)}
	}
	if strings.TrimSpace(uploadResp.JobID) == "" {
		return nil, &SubmissionError{malformedError("upload response has no job_id", nil)}
	}

	logger.Info(logger.WithJobID(ctx, uploadResp.JobID), "job submitted")
	return &job.Handle{ID: uploadResp.JobID}, nil
}

// encodeUpload writes file into a multipart body under FileField.
func encodeUpload(file *validator.SelectedFile) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FileField, file.Name))
	h.Set("Content-Type", "application/octet-stream")

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
