// Package downloader retrieves the translated drawing of a completed job and
// stores it under a name derived from the original upload.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/valpere/dwgtran/internal/client"
	"github.com/valpere/dwgtran/internal/logger"
)

// NamePrefix is prepended to the original file name of a saved artifact.
const NamePrefix = "translated_"

// ArtifactFetcher opens the translated drawing of a job.
type ArtifactFetcher interface {
	FetchArtifact(ctx context.Context, jobID string) (*client.Artifact, error)
}

// Saver persists an artifact stream under a file name and returns where it
// ended up.
type Saver interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// Downloader fetches artifacts and hands them to a Saver.
type Downloader struct {
	fetcher ArtifactFetcher
	saver   Saver
}

// New creates a Downloader. A nil saver writes into the working directory.
func New(fetcher ArtifactFetcher, saver Saver) *Downloader {
	if saver == nil {
		saver = DirSaver{Dir: "."}
	}
	return &Downloader{fetcher: fetcher, saver: saver}
}

// DerivedName returns the name a translated artifact is saved under. Any
// directory part of originalName is dropped; the base name is kept exactly,
// including non-ASCII characters.
func DerivedName(originalName string) string {
	base := originalName
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	return NamePrefix + base
}

// Download fetches the artifact of jobID and saves it as
// DerivedName(originalName). Fetch failures are returned as
// *client.DownloadError unchanged.
func (d *Downloader) Download(ctx context.Context, jobID, originalName string) (string, error) {
	if jobID == "" {
		return "", errors.New("no job to download")
	}

	ctx = logger.WithFile(logger.WithJobID(ctx, jobID), originalName)

	artifact, err := d.fetcher.FetchArtifact(ctx, jobID)
	if err != nil {
		return "", err
	}
	defer artifact.Body.Close()

	location, err := d.saver.Save(ctx, DerivedName(originalName), artifact.Body)
	if err != nil {
		return "", fmt.Errorf("save artifact: %w", err)
	}

	logger.Info(ctx, "artifact saved", "path", location, "size", artifact.Size)
	return location, nil
}

// DirSaver writes artifacts into a directory. Data is streamed to a
// temporary file first and renamed into place once complete.
type DirSaver struct {
	Dir string
}

// Save implements Saver.
func (s DirSaver) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}

	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dwgtran-*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: r}); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	dest := filepath.Join(dir, base)
	if err := os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("move artifact into place: %w", err)
	}
	committed = true

	return dest, nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
