// Package mockserver is an in-process stand-in for the drawing translation
// backend. It speaks the same HTTP contract and walks every job through the
// backend's processing stages, one stage per status query.
package mockserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/valpere/dwgtran/internal/logger"
)

// stage is one step of the backend pipeline.
type stage struct {
	status   string
	progress int
}

// stages is the order the backend reports a successful job in.
var stages = []stage{
	{"uploaded", 0},
	{"extracting", 10},
	{"translating", 30},
	{"replacing", 70},
	{"completed", 100},
}

// Options controls failure injection.
type Options struct {
	// FailUploads makes every upload answer 500.
	FailUploads bool
	// FailJobs, when set, fails every job at the translating stage with this message.
	FailJobs string
	// StatusErrors makes the first N status queries answer 503.
	StatusErrors int
	// Extensions accepted by /upload; defaults to dwg and dxf.
	Extensions []string
	// BodyLimit caps upload size, e.g. "50M".
	BodyLimit string
}

type mockJob struct {
	ID          string
	Filename    string
	Data        []byte
	Stage       int
	Failed      bool
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

func (j *mockJob) status() string {
	if j.Failed {
		return "failed"
	}
	return stages[j.Stage].status
}

func (j *mockJob) progress() int {
	return stages[j.Stage].progress
}

// Server is the fake backend.
type Server struct {
	echo *echo.Echo
	opts Options

	mu            sync.Mutex
	jobs          map[string]*mockJob
	statusQueries int
	uploads       int
}

// detailError is rendered as {"detail": ...} like the real backend.
type detailError struct {
	Status int
	Detail string
}

func (e *detailError) Error() string {
	return e.Detail
}

// New builds a Server with its routes registered.
func New(opts Options) *Server {
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{"dwg", "dxf"}
	}
	if opts.BodyLimit == "" {
		opts.BodyLimit = "50M"
	}

	s := &Server{
		echo: echo.New(),
		opts: opts,
		jobs: make(map[string]*mockJob),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = errorHandler
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.BodyLimit(opts.BodyLimit))

	s.echo.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "AutoCAD DWG Translator API"})
	})
	s.echo.POST("/upload", s.handleUpload)
	s.echo.GET("/jobs", s.handleListJobs)
	s.echo.GET("/jobs/:id", s.handleJobStatus)
	s.echo.GET("/download/:id", s.handleDownload)
	s.echo.GET("/health", s.handleHealth)

	return s
}

// Handler exposes the routes for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops a server started with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// StatusQueries returns how many /jobs/:id requests were served.
func (s *Server) StatusQueries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusQueries
}

// Uploads returns how many /upload requests were received.
func (s *Server) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	detail := err.Error()

	switch e := err.(type) {
	case *detailError:
		status = e.Status
		detail = e.Detail
	case *echo.HTTPError:
		status = e.Code
		detail = fmt.Sprintf("%v", e.Message)
	}

	logger.Debug(c.Request().Context(), "mock backend error", "path", c.Path(), "status", status, "detail", detail)
	c.JSON(status, map[string]string{"detail": detail})
}

func (s *Server) accepts(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	for _, allowed := range s.opts.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (s *Server) handleUpload(c echo.Context) error {
	s.mu.Lock()
	s.uploads++
	s.mu.Unlock()

	fh, err := c.FormFile("file")
	if err != nil {
		return &detailError{Status: http.StatusUnprocessableEntity, Detail: "field required"}
	}
	if !s.accepts(fh.Filename) {
		return &detailError{Status: http.StatusBadRequest, Detail: "Only DWG and DXF files are supported"}
	}
	if s.opts.FailUploads {
		return &detailError{Status: http.StatusInternalServerError, Detail: "Upload failed: storage unavailable"}
	}

	src, err := fh.Open()
	if err != nil {
		return &detailError{Status: http.StatusInternalServerError, Detail: fmt.Sprintf("Upload failed: %v", err)}
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return &detailError{Status: http.StatusInternalServerError, Detail: fmt.Sprintf("Upload failed: %v", err)}
	}

	j := &mockJob{
		ID:        uuid.NewString(),
		Filename:  fh.Filename,
		Data:      data,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()

	return c.JSON(http.StatusOK, map[string]string{
		"job_id":   j.ID,
		"filename": j.Filename,
		"message":  "File uploaded successfully",
		"status":   "processing_started",
	})
}

// advance moves j one stage forward, or fails it when failure injection is on.
func (s *Server) advance(j *mockJob) {
	if j.Failed || j.Stage == len(stages)-1 {
		return
	}
	j.Stage++
	if s.opts.FailJobs != "" && stages[j.Stage].status == "translating" {
		j.Failed = true
		j.Error = s.opts.FailJobs
		return
	}
	if j.Stage == len(stages)-1 {
		now := time.Now()
		j.CompletedAt = &now
	}
}

func (s *Server) handleJobStatus(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statusQueries++
	if s.statusQueries <= s.opts.StatusErrors {
		return &detailError{Status: http.StatusServiceUnavailable, Detail: "Service temporarily unavailable"}
	}

	j, ok := s.jobs[c.Param("id")]
	if !ok {
		return &detailError{Status: http.StatusNotFound, Detail: "Job not found"}
	}
	s.advance(j)

	var errMsg *string
	if j.Failed {
		errMsg = &j.Error
	}

	return c.JSON(http.StatusOK, map[string]any{
		"job_id":        j.ID,
		"filename":      j.Filename,
		"status":        j.status(),
		"progress":      j.progress(),
		"error_message": errMsg,
		"created_at":    j.CreatedAt.Format("2006-01-02T15:04:05.999999"),
		"completed_at":  formatTime(j.CompletedAt),
	})
}

func (s *Server) handleDownload(c echo.Context) error {
	s.mu.Lock()
	j, ok := s.jobs[c.Param("id")]
	var data []byte
	var name, status string
	if ok {
		data, name, status = j.Data, j.Filename, j.status()
	}
	s.mu.Unlock()

	if !ok {
		return &detailError{Status: http.StatusNotFound, Detail: "Job not found"}
	}
	if status != "completed" {
		return &detailError{Status: http.StatusBadRequest, Detail: "Job not completed"}
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape("translated_"+name)))
	return c.Blob(http.StatusOK, "application/octet-stream", data)
}

func (s *Server) handleListJobs(c echo.Context) error {
	s.mu.Lock()
	list := make([]*mockJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		list = append(list, j)
	}
	s.mu.Unlock()

	sort.Slice(list, func(a, b int) bool {
		return list[a].CreatedAt.Before(list[b].CreatedAt)
	})

	out := make([]map[string]any, 0, len(list))
	for _, j := range list {
		out = append(out, map[string]any{
			"job_id":       j.ID,
			"filename":     j.Filename,
			"status":       j.status(),
			"progress":     j.progress(),
			"created_at":   j.CreatedAt.Format("2006-01-02T15:04:05.999999"),
			"completed_at": formatTime(j.CompletedAt),
		})
	}

	return c.JSON(http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format("2006-01-02T15:04:05.999999"),
	})
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02T15:04:05.999999")
	return &s
}
