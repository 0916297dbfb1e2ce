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
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/dwgtran/internal"
	"github.com/valpere/dwgtran/internal/progress"
)

var (
	historyLimit  int
	historyOutput string
	historyName   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage the local job history",
	Long: `List, inspect, and clear the SQLite job history. Jobs are recorded when
history is enabled with --history or DWGTRAN_HISTORY_ENABLED=true.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory(cfg.History.DB)
		if err != nil {
			return err
		}
		defer db.Close()

		var records []internal.JobRecord
		if historyName != "" {
			records, err = db.FindByFileName(context.Background(), historyName)
		} else {
			records, err = db.ListRecords(context.Background(), historyLimit)
		}
		if err != nil {
			return fmt.Errorf("failed to list history: %w", err)
		}

		if len(records) == 0 && (historyOutput == "" || historyOutput == "table") {
			fmt.Println("No jobs in history.")
			return nil
		}

		return printStructured(os.Stdout, historyOutput, records, func(w *tabwriter.Writer) {
			fmt.Fprintln(w, "ID\tJOB ID\tPHASE\tPROGRESS\tSIZE\tCREATED\tSAVED\tFILE")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%s\t%s\t%s\t%s\n",
					r.ID, r.JobID, r.Phase, r.Progress, progress.FormatBytes(r.SizeBytes),
					r.CreatedAt.Local().Format("2006-01-02 15:04"), orDash(r.SavedPath), r.FileName)
			}
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one recorded job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory(cfg.History.DB)
		if err != nil {
			return err
		}
		defer db.Close()

		r, err := db.FindByJobID(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to find job %s: %w", args[0], err)
		}

		return printStructured(os.Stdout, historyOutput, r, func(w *tabwriter.Writer) {
			fmt.Fprintf(w, "Job ID:\t%s\n", r.JobID)
			fmt.Fprintf(w, "File:\t%s (%s)\n", r.FileName, progress.FormatBytes(r.SizeBytes))
			fmt.Fprintf(w, "Backend:\t%s\n", r.APIURL)
			fmt.Fprintf(w, "Phase:\t%s (%d%%)\n", r.Phase, r.Progress)
			fmt.Fprintf(w, "Error:\t%s\n", orDash(r.Error))
			fmt.Fprintf(w, "Created:\t%s\n", r.CreatedAt.Local().Format(time.DateTime))
			fmt.Fprintf(w, "Updated:\t%s\n", r.UpdatedAt.Local().Format(time.DateTime))
			if r.DownloadedAt != nil {
				fmt.Fprintf(w, "Saved:\t%s at %s\n", r.SavedPath, r.DownloadedAt.Local().Format(time.DateTime))
			}
		})
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job history statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory(cfg.History.DB)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Total jobs:    %d\n", stats.Total)
		fmt.Printf("Completed:     %d\n", stats.Completed)
		fmt.Printf("Failed:        %d\n", stats.Failed)
		fmt.Printf("Cancelled:     %d\n", stats.Cancelled)
		fmt.Printf("In progress:   %d\n", stats.InProgress)
		fmt.Printf("Downloaded:    %d\n", stats.Downloaded)
		fmt.Printf("Uploaded size: %s\n", progress.FormatBytes(stats.TotalBytes))
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a history record by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory(cfg.History.DB)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteRecord(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		fmt.Printf("Deleted record: %s\n", args[0])
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all records from the job history",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory(cfg.History.DB)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.ClearRecords(context.Background())
		if err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Printf("Cleared %d records from job history.\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.PersistentFlags().StringVar(&historyOutput, "output", "table", "Output format: table, json or yaml")
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of records (0 = all)")
	historyListCmd.Flags().StringVar(&historyName, "name", "", "Only jobs for this file name")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
}
