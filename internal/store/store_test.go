package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/valpere/dwgtran/internal"
	"github.com/valpere/dwgtran/internal/job"
	"github.com/valpere/dwgtran/internal/session"
	"github.com/valpere/dwgtran/internal/validator"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveTestRecord(t *testing.T, s *Store, jobID, name string) *internal.JobRecord {
	t.Helper()
	rec := &internal.JobRecord{
		JobID:     jobID,
		FileName:  name,
		Extension: validator.Extension(name),
		SizeBytes: 2048,
		APIURL:    "http://localhost:8000",
		Phase:     "processing",
	}
	if err := s.SaveRecord(context.Background(), rec); err != nil {
		t.Fatalf("SaveRecord failed: %v", err)
	}
	return rec
}

func TestStore_New(t *testing.T) {
	s := newTestStore(t)
	if s == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestStore_New_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/test.db")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestStore_SaveAndGetRecord(t *testing.T) {
	s := newTestStore(t)
	rec := saveTestRecord(t, s, "abc123", "plan.dwg")

	if rec.ID == "" {
		t.Fatal("expected ID to be assigned")
	}

	got, err := s.GetRecord(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.JobID != "abc123" || got.FileName != "plan.dwg" || got.Extension != "dwg" {
		t.Errorf("unexpected record %+v", got)
	}
	if got.SizeBytes != 2048 {
		t.Errorf("expected size 2048, got %d", got.SizeBytes)
	}
	if got.DownloadedAt != nil {
		t.Error("expected no download time")
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to round-trip")
	}
}

func TestStore_SaveRecord_RequiresJobID(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveRecord(context.Background(), &internal.JobRecord{FileName: "a.dwg"}); err == nil {
		t.Error("expected error without job id")
	}
}

func TestStore_SaveRecord_DuplicateJobID(t *testing.T) {
	s := newTestStore(t)
	saveTestRecord(t, s, "abc123", "plan.dwg")

	err := s.SaveRecord(context.Background(), &internal.JobRecord{JobID: "abc123", FileName: "plan.dwg", Phase: "processing"})
	if err == nil {
		t.Error("expected error for duplicate job id")
	}
}

func TestStore_UpdateRecord(t *testing.T) {
	s := newTestStore(t)
	saveTestRecord(t, s, "abc123", "plan.dwg")
	ctx := context.Background()

	if err := s.UpdateRecord(ctx, "abc123", "failed", 30, "no text entities found"); err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}

	got, err := s.FindByJobID(ctx, "abc123")
	if err != nil {
		t.Fatalf("FindByJobID failed: %v", err)
	}
	if got.Phase != "failed" || got.Progress != 30 || got.Error != "no text entities found" {
		t.Errorf("unexpected record after update: %+v", got)
	}

	if err := s.UpdateRecord(ctx, "missing", "failed", 0, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_MarkDownloaded(t *testing.T) {
	s := newTestStore(t)
	saveTestRecord(t, s, "abc123", "plan.dwg")
	ctx := context.Background()

	if err := s.MarkDownloaded(ctx, "abc123", "out/translated_plan.dwg"); err != nil {
		t.Fatalf("MarkDownloaded failed: %v", err)
	}

	got, err := s.FindByJobID(ctx, "abc123")
	if err != nil {
		t.Fatalf("FindByJobID failed: %v", err)
	}
	if got.SavedPath != "out/translated_plan.dwg" {
		t.Errorf("unexpected saved path %q", got.SavedPath)
	}
	if got.DownloadedAt == nil {
		t.Error("expected download time")
	}
}

func TestStore_FindByJobID_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.FindByJobID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_FindByFileName_NFC(t *testing.T) {
	s := newTestStore(t)
	// Saved with a precomposed й, looked up with и followed by a combining breve.
	saveTestRecord(t, s, "job-1", "Схема_\u0439.dwg")
	saveTestRecord(t, s, "job-2", "other.dwg")

	got, err := s.FindByFileName(context.Background(), "Схема_\u0438\u0306.dwg")
	if err != nil {
		t.Fatalf("FindByFileName failed: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "job-1" {
		t.Errorf("expected NFC match on job-1, got %+v", got)
	}
}

func TestStore_ListRecords(t *testing.T) {
	s := newTestStore(t)
	saveTestRecord(t, s, "job-1", "a.dwg")
	saveTestRecord(t, s, "job-2", "b.dxf")
	saveTestRecord(t, s, "job-3", "c.dwg")
	ctx := context.Background()

	all, err := s.ListRecords(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 records, got %d", len(all))
	}

	limited, err := s.ListRecords(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 records, got %d", len(limited))
	}
}

func TestStore_DeleteAndClear(t *testing.T) {
	s := newTestStore(t)
	rec := saveTestRecord(t, s, "job-1", "a.dwg")
	saveTestRecord(t, s, "job-2", "b.dwg")
	saveTestRecord(t, s, "job-3", "c.dwg")
	ctx := context.Background()

	if err := s.DeleteRecord(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}
	if err := s.DeleteRecord(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	n, err := s.ClearRecords(ctx)
	if err != nil {
		t.Fatalf("ClearRecords failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
}

func TestStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	saveTestRecord(t, s, "job-1", "a.dwg")
	saveTestRecord(t, s, "job-2", "b.dwg")
	saveTestRecord(t, s, "job-3", "c.dwg")
	saveTestRecord(t, s, "job-4", "d.dwg")

	_ = s.UpdateRecord(ctx, "job-1", "completed", 100, "")
	_ = s.MarkDownloaded(ctx, "job-1", "translated_a.dwg")
	_ = s.UpdateRecord(ctx, "job-2", "failed", 30, "boom")
	_ = s.UpdateRecord(ctx, "job-3", "cancelled", 10, "")

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 4 || stats.Completed != 1 || stats.Failed != 1 || stats.Cancelled != 1 || stats.InProgress != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Downloaded != 1 {
		t.Errorf("expected 1 downloaded, got %d", stats.Downloaded)
	}
	if stats.TotalBytes != 4*2048 {
		t.Errorf("expected %d bytes, got %d", 4*2048, stats.TotalBytes)
	}
}

func snapshot(phase session.Phase, jobID string, progress int, errMsg string) session.Session {
	s := session.Session{
		File:     &validator.SelectedFile{Name: "plan.dwg", Data: []byte("AC1027"), Extension: "dwg"},
		Phase:    phase,
		Progress: progress,
		Error:    errMsg,
	}
	if jobID != "" {
		s.Job = &job.Job{ID: jobID, Progress: progress}
	}
	return s
}

func TestRecorder_CompletedJob(t *testing.T) {
	s := newTestStore(t)
	r := NewRecorder(s, "http://backend")

	r.Observe(snapshot(session.PhaseIdle, "", 0, ""))
	r.Observe(snapshot(session.PhaseUploading, "", 0, ""))
	r.Observe(snapshot(session.PhaseProcessing, "abc123", 0, ""))
	r.Observe(snapshot(session.PhaseProcessing, "abc123", 30, ""))
	r.Observe(snapshot(session.PhaseCompleted, "abc123", 100, ""))
	r.Downloaded("abc123", "out/translated_plan.dwg")
	r.Observe(snapshot(session.PhaseIdle, "", 0, ""))
	r.Close()

	got, err := s.FindByJobID(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("FindByJobID failed: %v", err)
	}
	if got.Phase != "completed" || got.Progress != 100 {
		t.Errorf("reset after completion must not overwrite the outcome: %+v", got)
	}
	if got.APIURL != "http://backend" || got.SizeBytes != 6 {
		t.Errorf("unexpected record %+v", got)
	}
	if got.SavedPath != "out/translated_plan.dwg" || got.DownloadedAt == nil {
		t.Errorf("expected download to be recorded: %+v", got)
	}
}

func TestRecorder_FailedAndCancelled(t *testing.T) {
	s := newTestStore(t)
	r := NewRecorder(s, "")

	r.Observe(snapshot(session.PhaseProcessing, "job-1", 10, ""))
	r.Observe(snapshot(session.PhaseIdle, "", 0, "polling error: connection refused"))
	r.Observe(snapshot(session.PhaseProcessing, "job-2", 30, ""))
	r.Observe(session.Session{Phase: session.PhaseIdle})
	r.Close()

	ctx := context.Background()
	failed, err := s.FindByJobID(ctx, "job-1")
	if err != nil {
		t.Fatalf("FindByJobID failed: %v", err)
	}
	if failed.Phase != PhaseFailed || failed.Error != "polling error: connection refused" || failed.Progress != 10 {
		t.Errorf("unexpected failed record %+v", failed)
	}

	cancelled, err := s.FindByJobID(ctx, "job-2")
	if err != nil {
		t.Fatalf("FindByJobID failed: %v", err)
	}
	if cancelled.Phase != PhaseCancelled || cancelled.Progress != 30 {
		t.Errorf("unexpected cancelled record %+v", cancelled)
	}
}
