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
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/dwgtran/internal/mockserver"
)

var (
	mockAddr         string
	mockFailJobs     string
	mockFailUploads  bool
	mockStatusErrors int
	mockBodyLimit    string
)

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run a local stand-in for the translation backend",
	Long: `Serve the backend's HTTP API locally. Jobs walk through the stages
uploaded, extracting, translating, replacing and completed, one stage per
status query, and the "translated" drawing is the uploaded file itself.

Failure injection:
  --fail-jobs <msg>      fail every job at the translating stage
  --fail-uploads         reject every upload with HTTP 500
  --status-errors <n>    answer the first n status queries with HTTP 503`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := mockserver.New(mockserver.Options{
			FailUploads:  mockFailUploads,
			FailJobs:     mockFailJobs,
			StatusErrors: mockStatusErrors,
			Extensions:   cfg.AllowedExtensions,
			BodyLimit:    mockBodyLimit,
		})

		errCh := make(chan error, 1)
		go func() {
			fmt.Printf("Mock backend listening on %s\n", mockAddr)
			errCh <- srv.Start(mockAddr)
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("mock server failed: %w", err)
		case <-cmd.Context().Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop mock server: %w", err)
		}
		fmt.Println("Mock backend stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mockServerCmd)

	mockServerCmd.Flags().StringVar(&mockAddr, "addr", ":8000", "Listen address")
	mockServerCmd.Flags().StringVar(&mockFailJobs, "fail-jobs", "", "Fail every job with this message")
	mockServerCmd.Flags().BoolVar(&mockFailUploads, "fail-uploads", false, "Reject every upload")
	mockServerCmd.Flags().IntVar(&mockStatusErrors, "status-errors", 0, "Number of status queries answered with 503")
	mockServerCmd.Flags().StringVar(&mockBodyLimit, "body-limit", "50M", "Maximum upload size")
}
