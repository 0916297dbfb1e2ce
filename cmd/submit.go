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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valpere/dwgtran/internal"
	"github.com/valpere/dwgtran/internal/validator"
)

var submitInput string

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Upload a drawing and print its job ID without waiting",
	Long: `Validate and upload a drawing, then print the job ID assigned by the backend.
Follow the job with "dwgtran status <job-id>" and fetch the result with
"dwgtran download <job-id> --name <file>".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		candidate, err := loadCandidate(submitInput)
		if err != nil {
			return err
		}
		file, err := validator.New(cfg.AllowedExtensions).Validate(candidate)
		if err != nil {
			return err
		}

		handle, err := newClient().Submit(cmd.Context(), file)
		if err != nil {
			return fmt.Errorf("failed to submit %s: %w", file.Name, err)
		}

		db, err := historyIfEnabled()
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
			rec := &internal.JobRecord{
				JobID:     handle.ID,
				FileName:  file.Name,
				Extension: file.Extension,
				SizeBytes: file.Size(),
				APIURL:    cfg.APIURL,
				Phase:     "processing",
			}
			if err := db.SaveRecord(cmd.Context(), rec); err != nil {
				return fmt.Errorf("failed to record job: %w", err)
			}
		}

		fmt.Println(handle.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVarP(&submitInput, "input", "i", "", "Drawing to upload (required)")
	submitCmd.MarkFlagRequired("input")
}
