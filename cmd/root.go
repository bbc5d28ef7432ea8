// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd defines the dcjob command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"devcloud-jobs/pkg/artifactstore"
	"devcloud-jobs/pkg/config"
	"devcloud-jobs/pkg/handlestore"
	"devcloud-jobs/pkg/logging"
	"devcloud-jobs/pkg/orchestrator"
	"devcloud-jobs/pkg/orchestrator/pbs"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgFile string
	verbose bool

	// Resolved by the root command before any subcommand runs.
	cfg config.Config
	// started is set once argument validation has passed.
	started bool

	appFs = afero.NewOsFs()

	newOrchestrator = func(opts pbs.Options) (orchestrator.Orchestrator, error) {
		return pbs.NewPBSOrchestrator(opts)
	}
)

// flagKeys maps command flags onto the configuration keys they override.
var flagKeys = map[string]string{
	"max-attempts": "poll.max_attempts",
	"interval":     "poll.interval",
	"timeout":      "fetch.timeout",
	"backoff":      "fetch.backoff",
	"dest":         "fetch.dest",
	"name":         "queue.job_name",
}

var rootCmd = &cobra.Command{
	Use:   "dcjob",
	Short: "Submit batch jobs to a PBS queue and collect their results.",
	Long: `dcjob submits job scripts to a PBS/Torque queue such as the Intel DevCloud,
polls their status, retrieves their output archives and unpacks them locally.

Settings are read from dcjob.yaml (or --config), DCJOB_* environment variables
and command flags, in increasing order of precedence.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file (default is ./"+config.DefaultFile+" if present).")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print debug output.")
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return usageError{err}
	})
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	started = true
	logging.SetVerbose(verbose)

	v := config.NewViper(appFs)
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	var err error
	cfg, err = config.Load(v, appFs, cfgFile)
	return err
}

func handleStore() *handlestore.Store {
	return handlestore.New(appFs, cfg.HandlesFile)
}

func artifactStore() (orchestrator.ArtifactStore, error) {
	return artifactstore.New(cfg.Store, appFs)
}

// Execute runs the command line and exits with the code matching its outcome.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}
	if !started {
		err = usageError{err}
	}
	logging.Error("%v", err)
	if _, ok := err.(usageError); ok {
		fmt.Fprintln(os.Stderr, "Run 'dcjob --help' for usage.")
	}
	stop()
	os.Exit(ExitCode(err))
}
