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
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/dwgtran/internal/client"
	"github.com/valpere/dwgtran/internal/orchestrator"
	"github.com/valpere/dwgtran/internal/progress"
	"github.com/valpere/dwgtran/internal/session"
	"github.com/valpere/dwgtran/internal/store"
	"github.com/valpere/dwgtran/internal/validator"
)

var (
	inputFiles  []string
	fileTimeout time.Duration
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate DWG/DXF drawings",
	Long: `Upload drawings to the translation backend, follow each job until it
finishes and save the translated drawing as translated_<name> in the
output directory.

A single input shows a live progress bar. Several inputs run as a batch,
--concurrency files at a time; one failed file does not stop the others.

  dwgtran translate -i plan.dwg
  dwgtran translate -i a.dwg -i b.dxf -o out/ --concurrency 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs := append(append([]string{}, inputFiles...), args...)
		if len(inputs) == 0 {
			return fmt.Errorf("at least one input file is required")
		}

		db, err := historyIfEnabled()
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		cl := newClient()
		if len(inputs) == 1 {
			return translateOne(cmd.Context(), cl, db, inputs[0])
		}
		return translateBatch(cmd.Context(), cl, db, inputs)
	},
}

func translateOne(ctx context.Context, cl *client.Client, db *store.Store, path string) error {
	candidate, err := loadCandidate(path)
	if err != nil {
		return err
	}

	reporter := progress.NewReporter(progress.Options{Label: candidate.Name, Inline: true})
	opts := []session.Option{session.WithObserver(reporter.Observe)}
	var rec *store.Recorder
	if db != nil {
		rec = store.NewRecorder(db, cfg.APIURL)
		defer rec.Close()
		opts = append(opts, session.WithObserver(rec.Observe))
	}

	ctrl := newController(cl, cfg.OutputDir, opts...)

	if err := ctrl.SelectFile(candidate); err != nil {
		return err
	}
	if err := ctrl.SubmitAndTranslate(ctx); err != nil {
		return fmt.Errorf("failed to submit %s: %w", candidate.Name, err)
	}

	snap, err := ctrl.Wait(ctx)
	if err != nil {
		ctrl.Reset()
		return fmt.Errorf("translation of %s interrupted: %w", candidate.Name, err)
	}
	if snap.Phase != session.PhaseCompleted {
		return fmt.Errorf("translation of %s failed: %s", candidate.Name, snap.Error)
	}

	saved, err := ctrl.Download(ctx)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", candidate.Name, err)
	}
	if rec != nil {
		rec.Downloaded(snap.JobID(), saved)
	}

	fmt.Printf("Saved: %s\n", saved)
	return nil
}

func translateBatch(ctx context.Context, cl *client.Client, db *store.Store, paths []string) error {
	var candidates []*validator.Candidate
	for _, p := range paths {
		c, err := loadCandidate(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		candidates = append(candidates, c)
	}

	var (
		mu        sync.Mutex
		recorders []*store.Recorder
	)
	factory := func(name string) *session.Controller {
		reporter := progress.NewReporter(progress.Options{Label: name})
		opts := []session.Option{session.WithObserver(reporter.Observe)}
		if db != nil {
			rec := store.NewRecorder(db, cfg.APIURL)
			mu.Lock()
			recorders = append(recorders, rec)
			mu.Unlock()
			opts = append(opts, session.WithObserver(rec.Observe))
		}
		return newController(cl, cfg.OutputDir, opts...)
	}

	orch := orchestrator.New(factory, orchestrator.OrchestratorConfig{
		Timeout:     fileTimeout,
		Concurrency: cfg.Concurrency,
	})
	result := orch.Execute(ctx, candidates)

	for _, rec := range recorders {
		rec.Close()
	}
	if db != nil {
		for _, f := range result.Files {
			if f.Path == "" {
				continue
			}
			if err := db.MarkDownloaded(context.Background(), f.JobID, f.Path); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to record download of %s: %v\n", f.Name, err)
			}
		}
	}

	for _, f := range result.Files {
		if f.Err != nil {
			fmt.Printf("FAILED  %s: %v\n", f.Name, f.Err)
		} else {
			fmt.Printf("Saved   %s\n", f.Path)
		}
	}
	fmt.Printf("Files translated: %d/%d\n", result.Succeeded, len(candidates))

	if result.Failed > 0 {
		return errors.Join(result.Errors...)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringArrayVarP(&inputFiles, "input", "i", nil, "Drawing to translate (repeatable)")
	translateCmd.Flags().StringP("output-dir", "o", ".", "Directory for translated drawings")
	translateCmd.Flags().Int("concurrency", 2, "Files translated at the same time in a batch")
	translateCmd.Flags().DurationVar(&fileTimeout, "file-timeout", 0, "Upper bound for one file from upload to download (0 = none)")
}
