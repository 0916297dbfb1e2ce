package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"
	"text/tabwriter"

	"github.com/valpere/dwgtran/internal/job"
)

func TestPrintStructured(t *testing.T) {
	j := &job.Job{ID: "abc123", Status: job.StatusProcessing, Progress: 30}
	table := func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "JOB ID\tSTATUS")
		fmt.Fprintf(w, "%s\t%s\n", j.ID, j.Status)
	}

	tests := []struct {
		format string
		want   []string
	}{
		{"table", []string{"JOB ID", "abc123  processing"}},
		{"", []string{"JOB ID"}},
		{"json", []string{`"job_id": "abc123"`, `"status": "processing"`, `"progress": 30`}},
		{"yaml", []string{"job_id: abc123", "status: processing", "progress: 30"}},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		if err := printStructured(&buf, tt.format, j, table); err != nil {
			t.Fatalf("format %q: %v", tt.format, err)
		}
		for _, w := range tt.want {
			if !strings.Contains(buf.String(), w) {
				t.Errorf("format %q: output %q does not contain %q", tt.format, buf.String(), w)
			}
		}
	}
}

func TestPrintStructured_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := printStructured(&buf, "xml", nil, func(*tabwriter.Writer) {})
	if err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestLoadCandidate(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/plan.DWG"
	if err := writeFile(path, "drawing"); err != nil {
		t.Fatal(err)
	}

	c, err := loadCandidate(path)
	if err != nil {
		t.Fatalf("loadCandidate: %v", err)
	}
	if c.Name != "plan.DWG" || string(c.Data) != "drawing" {
		t.Errorf("unexpected candidate %+v", c)
	}

	if _, err := loadCandidate(dir + "/missing.dwg"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
