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

var jobsOutput string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the jobs known to the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := newClient().ListJobs(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		if len(jobs) == 0 && (jobsOutput == "" || jobsOutput == "table") {
			fmt.Println("No jobs on the backend.")
			return nil
		}

		return printStructured(os.Stdout, jobsOutput, jobs, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, "JOB ID\tSTATUS\tPROGRESS\tCREATED\tCOMPLETED\tFILE")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\t%s\t%s\n",
					j.JobID, j.Status, j.Progress, orDash(j.CreatedAt), orDash(j.CompletedAt), j.Filename)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().StringVar(&jobsOutput, "output", "table", "Output format: table, json or yaml")
}
