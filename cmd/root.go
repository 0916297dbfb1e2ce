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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/dwgtran/internal/config"
	"github.com/valpere/dwgtran/internal/logger"
)

var version = "0.1.0"

var (
	cfgFile string
	vcfg    *viper.Viper
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dwgtran",
	Short: "Client for the asynchronous DWG/DXF translation service",
	Long: `A CLI client that uploads DWG and DXF drawings to the translation backend,
follows each job until it finishes and saves the translated drawing.

Settings come from flags, DWGTRAN_* environment variables and an optional
dwgtran.yaml in the working or home directory.

Use "dwgtran translate --help" for translation options.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		vcfg = config.New()
		if err := config.BindFlags(vcfg, cmd.Flags()); err != nil {
			return err
		}
		loaded, err := config.Load(vcfg, cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger.Init(&loaded.Log, os.Stderr)
		cfg = loaded
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: dwgtran.yaml in . or $HOME)")
	pf.String("api-url", "http://localhost:8000", "Translation backend base URL")
	pf.StringSlice("extensions", []string{"dwg", "dxf"}, "Accepted file extensions")
	pf.Duration("poll-interval", config.DefaultPollInterval, "Delay between status queries")
	pf.Int("max-poll-failures", 3, "Consecutive failed status queries tolerated before giving up")
	pf.Duration("timeout", config.DefaultRequestTimeout, "Timeout of a single backend request")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")
	pf.Bool("history", false, "Record jobs in the local history database")
	pf.String("db", "./data/dwgtran.db", "History database path")
}
