package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/valpere/dwgtran/internal/job"
	"github.com/valpere/dwgtran/internal/validator"
)

func testFile() *validator.SelectedFile {
	return &validator.SelectedFile{Name: "図面.dwg", Data: []byte("AC1027 drawing"), Extension: "dwg"}
}

func TestNew_Defaults(t *testing.T) {
	c := New("", 0)

	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("expected default base URL, got %q", c.BaseURL())
	}
	if c.timeout != 60*time.Second {
		t.Errorf("expected 60s timeout, got %v", c.timeout)
	}
	if c.client.Timeout != 0 {
		t.Errorf("expected no whole-response timeout, got %v", c.client.Timeout)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://backend:8000/", time.Second)

	if c.BaseURL() != "http://backend:8000" {
		t.Errorf("expected trimmed base URL, got %q", c.BaseURL())
	}
}

func TestSubmit_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/upload" {
			t.Errorf("expected /upload, got %s", r.URL.Path)
		}
		if r.Header.Get(RequestIDHeader) == "" {
			t.Error("expected request ID header")
		}

		f, header, err := r.FormFile(FileField)
		if err != nil {
			t.Errorf("expected multipart field %q: %v", FileField, err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if header.Filename != "図面.dwg" {
			t.Errorf("expected filename to survive upload, got %q", header.Filename)
		}
		if string(data) != "AC1027 drawing" {
			t.Errorf("unexpected payload %q", data)
		}

		json.NewEncoder(w).Encode(map[string]string{"job_id": "abc123", "status": "processing_started"})
	}))
	defer server.Close()

	c := NewWithHTTPClient(server.URL, server.Client())

	h, err := c.Submit(context.Background(), testFile())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ID != "abc123" {
		t.Errorf("expected job ID 'abc123', got %q", h.ID)
	}
}

func TestSubmit_MissingJobID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	}))
	defer server.Close()

	c := NewWithHTTPClient(server.URL, server.Client())

	_, err := c.Submit(context.Background(), testFile())
	var se *SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SubmissionError, got %T (%v)", err, err)
	}
	if se.Kind != KindMalformed {
		t.Errorf("expected malformed kind, got %v", se.Kind)
	}
}

func TestSubmit_ServerDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Only DWG and DXF files are supported"}`))
	}))
	defer server.Close()

	c := NewWithHTTPClient(server.URL, server.Client())

	_, err := c.Submit(context.Background(), testFile())
	var se *SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SubmissionError, got %T", err)
	}
	if se.Kind != KindServer {
		t.Errorf("expected server kind, got %v", se.Kind)
	}
	if se.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", se.StatusCode)
	}
	if se.Error() != "Only DWG and DXF files are supported" {
		t.Errorf("expected server detail verbatim, got %q", se.Error())
	}
}

func TestSubmit_ServerErrorWithoutDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	c := NewWithHTTPClient(server.URL, server.Client())

	_, err := c.Submit(context.Background(), testFile())
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "upload failed" {
		t.Errorf("expected generic fallback, got %q", err.Error())
	}
	if KindOf(err) != KindServer {
		t.Errorf("expected server kind, got %v", KindOf(err))
	}
}

func TestSubmit_NetworkError(t *testing.T) {
	c := NewWithHTTPClient("http://127.0.0.1:1", &http.Client{Timeout: 200 * time.Millisecond})

	_, err := c.Submit(context.Background(), testFile())
	if err == nil {
		t.Fatal("expected error when backend is unreachable")
	}
	if KindOf(err) != KindNetwork {
		t.Errorf("expected network kind, got %v", KindOf(err))
	}
	if !strings.HasPrefix(err.Error(), "network error: ") {
		t.Errorf("expected wrapped network message, got %q", err.Error())
	}
	if errors.Unwrap(err) == nil {
		t.Error("expected underlying transport error to be wrapped")
	}
}

func TestSubmit_NilFile(t *testing.T) {
	c := New("", 0)

	if _, err := c.Submit(context.Background(), nil); err == nil {
		t.Error("expected error for nil file")
	}
}

func TestJobStatus_Processing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/abc123" {
			t.Errorf("expected /jobs/abc123, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"job_id":"abc123","status":"translating","progress":30,"error_message":null}`))
	}))
	defer server.Close()

	c := NewWithHTTPClient(server.URL, server.Client())

	j, err := c.JobStatus(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Status != job.StatusProcessing {
		t.Errorf("expected processing, got %v", j.Status)
	}
	if j.Progress != 30 {
		t.Errorf("expected progress 30, got %d", j.Progress)
	}
}

func TestJobStatus_Failed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"failed","progress":10,"error_message":"no text entities"}`))
	}))
	defer server.Close()

	c := NewWithHTTPClient(server.URL, server.Client())

	j, err := c.JobStatus(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Status != job.StatusFailed {
		t.Errorf("expected failed, got %v", j.Status)
	}
	if j.ErrorMessage != "no text entities" {
		t.Errorf("expected error message, got %q", j.ErrorMessage)
	}
}

func TestJobStatus_UnknownStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"teleporting","progress":50}`))
	}))
	defer server.Close()

	c := NewWithHTTPClient(server.URL, server.Client())

	_, err := c.JobStatus(context.Background(), "abc123")
	var use *job.UnknownStatusError
	if !errors.As(err, &use) {
		t.Fatalf("expected *job.UnknownStatusError in chain, got %v", err)
	}
	if KindOf(err) != KindMalformed {
		t.Errorf("expected malformed kind, got %v", KindOf(err))
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Job not found"}`))
	}))
	defer server.Close()

	c := NewWithHTTPClient(server.URL, server.Client())

	_, err := c.JobStatus(context.Background(), "missing")
	var st *StatusError
	if !errors.As(err, &st) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if st.StatusCode != http.StatusNotFound || st.Error() != "Job not found" {
		t.Errorf("unexpected error %d %q", st.StatusCode, st.Error())
	}
}

func TestFetchArtifact_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/download/abc123" {
			t.Errorf("expected /download/abc123, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("translated bytes"))
	}))
	defer server.Close()

	c := NewWithHTTPClient(server.URL, server.Client())

	a, err := c.FetchArtifact(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Body.Close()

	data, _ := io.ReadAll(a.Body)
	if string(data) != "translated bytes" {
		t.Errorf("unexpected artifact %q", data)
	}
}

func TestFetchArtifact_BodyOutlivesRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("translated "))
		w.(http.Flusher).Flush()
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte("bytes"))
	}))
	defer server.Close()

	c := New(server.URL, 100*time.Millisecond)

	a, err := c.FetchArtifact(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Body.Close()

	data, err := io.ReadAll(a.Body)
	if err != nil {
		t.Fatalf("reading a slow artifact failed: %v", err)
	}
	if string(data) != "translated bytes" {
		t.Errorf("unexpected artifact %q", data)
	}
}

func TestJobStatus_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := New(server.URL, 50*time.Millisecond)

	start := time.Now()
	_, err := c.JobStatus(context.Background(), "abc123")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	if KindOf(err) != KindNetwork {
		t.Errorf("expected network error kind, got %v", KindOf(err))
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("request was not bounded by the timeout: %v", elapsed)
	}
}

func TestFetchArtifact_NotCompleted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Job not completed"}`))
	}))
	defer server.Close()

	c := NewWithHTTPClient(server.URL, server.Client())

	_, err := c.FetchArtifact(context.Background(), "abc123")
	var de *DownloadError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DownloadError, got %T", err)
	}
	if de.Kind != KindServer || de.Error() != "Job not completed" {
		t.Errorf("unexpected error %v %q", de.Kind, de.Error())
	}
}

func TestListJobs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jobs":[{"job_id":"a","filename":"x.dwg","status":"completed","progress":100,"created_at":"2025-09-20T10:00:00.123456"}]}`))
	}))
	defer server.Close()

	c := NewWithHTTPClient(server.URL, server.Client())

	jobs, err := c.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JobID != "a" || jobs[0].Progress != 100 {
		t.Errorf("unexpected jobs %+v", jobs)
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy","timestamp":"2025-09-20T10:00:00"}`))
	}))
	defer server.Close()

	c := NewWithHTTPClient(server.URL, server.Client())

	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Status != "healthy" {
		t.Errorf("expected 'healthy', got %q", h.Status)
	}
}

func TestParseDetail(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"Job not found"}`, "Job not found"},
		{`{"detail":[{"msg":"field required"},{"msg":"bad type"}]}`, "field required; bad type"},
		{`{"detail":null}`, ""},
		{`not json`, ""},
		{`{}`, ""},
	}

	for _, tt := range tests {
		if got := parseDetail([]byte(tt.body)); got != tt.want {
			t.Errorf("parseDetail(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
