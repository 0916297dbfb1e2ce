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
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusOutput string

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the current state of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := newClient().JobStatus(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get job status: %w", err)
		}

		return printStructured(os.Stdout, statusOutput, j, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, "JOB ID\tSTATUS\tPROGRESS\tERROR")
			fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\n", j.ID, j.Status, j.Progress, orDash(j.ErrorMessage))
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusOutput, "output", "table", "Output format: table, json or yaml")
}
