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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valpere/dwgtran/internal/downloader"
	"github.com/valpere/dwgtran/internal/store"
)

var downloadName string

var downloadCmd = &cobra.Command{
	Use:   "download <job-id>",
	Short: "Save the translated drawing of a completed job",
	Long: `Fetch the translated drawing of a completed job and save it as
translated_<name> in the output directory. --name is the original file
name; it defaults to the name recorded in the job history.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID := args[0]
		ctx := cmd.Context()

		db, err := historyIfEnabled()
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		name := downloadName
		if name == "" && db != nil {
			if rec, err := db.FindByJobID(ctx, jobID); err == nil {
				name = rec.FileName
			}
		}
		if name == "" {
			return fmt.Errorf("--name is required when the job is not in the history")
		}

		d := downloader.New(newClient(), downloader.DirSaver{Dir: cfg.OutputDir})
		saved, err := d.Download(ctx, jobID, name)
		if err != nil {
			return fmt.Errorf("failed to download job %s: %w", jobID, err)
		}

		if db != nil {
			if err := db.MarkDownloaded(ctx, jobID, saved); err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("failed to record download: %w", err)
			}
		}

		fmt.Printf("Saved: %s\n", saved)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVar(&downloadName, "name", "", "Original file name of the drawing")
	downloadCmd.Flags().StringP("output-dir", "o", ".", "Directory for the translated drawing")
}
