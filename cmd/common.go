/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/valpere/dwgtran/internal/client"
	"github.com/valpere/dwgtran/internal/downloader"
	"github.com/valpere/dwgtran/internal/poller"
	"github.com/valpere/dwgtran/internal/session"
	"github.com/valpere/dwgtran/internal/store"
	"github.com/valpere/dwgtran/internal/validator"
)

func newClient() *client.Client {
	return client.New(cfg.APIURL, cfg.RequestTimeout)
}

// newController wires a session controller to the backend behind cl. The
// artifact of a completed job is saved into outDir.
func newController(cl *client.Client, outDir string, opts ...session.Option) *session.Controller {
	p := poller.New(cl, poller.Config{
		Interval:    cfg.PollInterval,
		MaxFailures: cfg.MaxPollFailures,
	})
	d := downloader.New(cl, downloader.DirSaver{Dir: outDir})
	return session.New(validator.New(cfg.AllowedExtensions), cl, p, d, opts...)
}

// openHistory opens the history database at path, creating its directory.
func openHistory(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// historyIfEnabled returns nil when job history is turned off.
func historyIfEnabled() (*store.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	return openHistory(cfg.History.DB)
}

func loadCandidate(path string) (*validator.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return &validator.Candidate{Name: filepath.Base(path), Data: data}, nil
}

// printStructured writes v as json or yaml, or hands a tabwriter to table
// for the default format.
func printStructured(w io.Writer, format string, v any, table func(tw *tabwriter.Writer)) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "", "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q (use table, json or yaml)", format)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
