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
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the translation backend is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newClient().Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("backend at %s is not reachable: %w", cfg.APIURL, err)
		}

		fmt.Printf("Backend: %s\n", cfg.APIURL)
		fmt.Printf("Status:  %s\n", h.Status)
		if h.Timestamp != "" {
			fmt.Printf("Time:    %s\n", h.Timestamp)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
