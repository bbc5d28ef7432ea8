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

package cmd

import (
	"fmt"

	"devcloud-jobs/pkg/jobs"
	"devcloud-jobs/pkg/logging"
	"devcloud-jobs/pkg/run"

	"github.com/spf13/cobra"
)

var (
	runFilename    string
	runOnly        []string
	runKeepArchive bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("name", "N", "", "Job name passed to the queue (qsub -N).")
	runCmd.Flags().StringVarP(&runFilename, "filename", "f", jobs.DefaultFilename, "Archive the job leaves behind.")
	runCmd.Flags().StringP("dest", "d", ".", "Directory to extract the job's output into.")
	runCmd.Flags().Int("max-attempts", jobs.DefaultMaxAttempts, "Maximum number of status queries.")
	runCmd.Flags().Duration("interval", jobs.DefaultInterval, "Pause between status queries.")
	runCmd.Flags().Duration("timeout", 0, "Upper bound on waiting for the archive once the job has finished (default from fetch.timeout).")
	runCmd.Flags().StringArrayVar(&runOnly, "only", nil, "Extract only entries matching this pattern (repeatable).")
	runCmd.Flags().BoolVar(&runKeepArchive, "keep-archive", false, "Keep the downloaded archive next to the extracted files.")
	runCmd.Flags().SetInterspersed(false)
}

var runCmd = &cobra.Command{
	Use:   "run [flags] <script> <resource-selector> [args...]",
	Short: "Submits a job, waits for it and unpacks its output.",
	Long: `The 'run' command performs the whole workflow in one step: it submits the job
script, polls the queue until the job finishes, waits for its output archive,
downloads it and extracts it into the destination directory.

Flags must come before the script so arguments meant for it are not parsed.`,
	Args: usageArgs(cobra.MinimumNArgs(2)),
	RunE: runRunCmd,
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	logging.Info("Executing dcjob run...")

	spec, err := parseJobSpec(args)
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(cfg.Queue)
	if err != nil {
		return err
	}
	store, err := artifactStore()
	if err != nil {
		return err
	}

	pipeline := run.NewPipeline(orch, store, appFs, handleStore())
	pipeline.OnObserve = func(obs jobs.Observation) {
		if obs.Err != nil {
			logging.Warn("%v", obs.Err)
			return
		}
		logging.Info("Status: %s (attempt %d/%d)", obs.Status, obs.Attempt, cfg.Poll.MaxAttempts)
	}

	res, err := pipeline.Execute(cmd.Context(), run.Options{
		Spec:        spec,
		Filename:    runFilename,
		Dest:        cfg.Fetch.Dest,
		MaxAttempts: cfg.Poll.MaxAttempts,
		Interval:    cfg.Poll.Interval,
		Fetch:       jobs.FetchOptions{Timeout: cfg.Fetch.Timeout, Backoff: cfg.Fetch.Backoff},
		Include:     runOnly,
		KeepArchive: runKeepArchive,
	})
	if err != nil {
		if res.Handle.ID != "" {
			return fmt.Errorf("job %s: %w", res.Handle.ID, err)
		}
		return err
	}
	for _, f := range res.Files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	logging.Info("dcjob run completed.")
	return nil
}
