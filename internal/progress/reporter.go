// Package progress renders a one-line status display for a translation
// session on a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/valpere/dwgtran/internal/session"
)

const barWidth = 30

// Options configures the progress reporter.
type Options struct {
	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// Label prefixes every line, usually the file name.
	Label string

	// Inline redraws one line with carriage returns. Batch runs turn it off
	// so parallel files do not overwrite each other.
	Inline bool
}

// Reporter prints a session's phase and progress whenever either changes.
type Reporter struct {
	opts Options

	mu        sync.Mutex
	started   time.Time
	lastPhase session.Phase
	lastPct   int
	printed   bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	return &Reporter{opts: opts, lastPct: -1}
}

// Observe is a session observer. Idle snapshots without an error are not
// printed.
func (r *Reporter) Observe(s session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Phase == session.PhaseIdle && s.Error == "" {
		return
	}
	if r.printed && s.Phase == r.lastPhase && s.Progress == r.lastPct {
		return
	}
	if s.Phase == session.PhaseUploading || r.started.IsZero() {
		r.started = time.Now()
	}

	line := r.render(s)
	settled := !s.Phase.Busy()
	switch {
	case r.opts.Inline && settled:
		fmt.Fprintf(r.opts.Output, "\r%s\n", line)
	case r.opts.Inline:
		fmt.Fprintf(r.opts.Output, "\r%s", line)
	default:
		fmt.Fprintln(r.opts.Output, line)
	}

	r.lastPhase = s.Phase
	r.lastPct = s.Progress
	r.printed = true
}

func (r *Reporter) render(s session.Session) string {
	var b strings.Builder
	b.WriteString("[dwgtran] ")
	if r.opts.Label != "" {
		b.WriteString(r.opts.Label)
		b.WriteString(" ")
	}
	if s.File != nil {
		fmt.Fprintf(&b, "(%s) ", humanize.Bytes(uint64(s.File.Size())))
	}

	switch s.Phase {
	case session.PhaseUploading:
		b.WriteString("uploading...")
	case session.PhaseProcessing:
		fmt.Fprintf(&b, "%s %3d%%", Bar(s.Progress), s.Progress)
	case session.PhaseCompleted:
		fmt.Fprintf(&b, "%s 100%% done in %s", Bar(100), formatElapsed(time.Since(r.started)))
	default:
		if s.Error != "" {
			fmt.Fprintf(&b, "error: %s", s.Error)
		} else {
			b.WriteString(s.Phase.String())
		}
	}
	return b.String()
}

// Bar draws pct (clamped to 0..100) as a fixed-width bar.
func Bar(pct int) string {
	pct = max(0, min(pct, 100))
	filled := pct * barWidth / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}

// FormatBytes renders a size for humans, e.g. "1.5 MB".
func FormatBytes(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(n))
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
