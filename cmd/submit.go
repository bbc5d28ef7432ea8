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
	"devcloud-jobs/pkg/orchestrator"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringP("name", "N", "", "Job name passed to the queue (qsub -N).")
	submitCmd.Flags().SetInterspersed(false)
}

var submitCmd = &cobra.Command{
	Use:   "submit [flags] <script> <resource-selector> [args...]",
	Short: "Submits a job script to the queue and prints its job id.",
	Long: `The 'submit' command queues a job script on the nodes described by the
resource selector, for example 'nodes=1:idc001skl:tank-870:i5-6500te', passing
any remaining arguments to the script. The job id is printed on stdout and
recorded so later 'status' and 'fetch' calls can refer to it.

Flags must come before the script so arguments meant for it are not parsed.`,
	Args: usageArgs(cobra.MinimumNArgs(2)),
	RunE: runSubmitCmd,
}

// usageArgs marks argument validation failures as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// parseJobSpec builds a JobSpec from a script, a selector and script arguments.
func parseJobSpec(args []string) (orchestrator.JobSpec, error) {
	res, err := orchestrator.ParseResourceSelector(args[1])
	if err != nil {
		return orchestrator.JobSpec{}, err
	}
	spec := orchestrator.NewJobSpec(args[0], res, args[2:]...)
	return spec, spec.Validate()
}

func runSubmitCmd(cmd *cobra.Command, args []string) error {
	spec, err := parseJobSpec(args)
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(cfg.Queue)
	if err != nil {
		return err
	}

	handle, err := jobs.NewSubmitter(orch).Submit(cmd.Context(), spec)
	if err != nil {
		return err
	}
	if err := handleStore().Save(handle); err != nil {
		logging.Warn("Could not record job %s: %v", handle.ID, err)
	}
	logging.Debug("Submitted %s as job %s", spec.Script(), handle.ID)
	fmt.Fprintln(cmd.OutOrStdout(), handle.ID)
	return nil
}
