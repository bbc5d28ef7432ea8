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

	"github.com/spf13/cobra"
)

var fetchBlocking bool

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().BoolVarP(&fetchBlocking, "blocking", "b", false, "Wait for the artifact to appear instead of failing if it is not there yet.")
	fetchCmd.Flags().Duration("timeout", 0, "Upper bound on a blocking fetch (default from fetch.timeout).")
	fetchCmd.Flags().Duration("backoff", jobs.DefaultBackoff, "Pause between attempts of a blocking fetch.")
	fetchCmd.Flags().StringP("dest", "d", ".", "Directory to save the artifact into.")
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <job-id> [filename]",
	Short: "Downloads an output artifact of a job.",
	Long: `The 'fetch' command retrieves a file a job left behind, '` + jobs.DefaultFilename + `' unless
another name is given, and saves it into the destination directory. Without
--blocking it makes a single attempt and exits with status 3 if the file is
not available yet.`,
	Args: usageArgs(cobra.RangeArgs(1, 2)),
	RunE: runFetchCmd,
}

func runFetchCmd(cmd *cobra.Command, args []string) error {
	filename := jobs.DefaultFilename
	if len(args) == 2 {
		filename = args[1]
	}
	handle, err := handleStore().Resolve(args[0])
	if err != nil {
		return err
	}
	store, err := artifactStore()
	if err != nil {
		return err
	}

	opts := jobs.FetchOptions{
		Blocking: fetchBlocking,
		Timeout:  cfg.Fetch.Timeout,
		Backoff:  cfg.Fetch.Backoff,
	}
	if fetchBlocking {
		logging.Info("Waiting up to %s for %s of job %s...", opts.Timeout, filename, handle.ID)
	}
	artifact, err := jobs.NewFetcher(store).Fetch(cmd.Context(), handle, filename, opts)
	if err != nil {
		return err
	}
	saved, err := artifact.Save(appFs, cfg.Fetch.Dest)
	if err != nil {
		return err
	}
	logging.Debug("Saved %d bytes", len(saved.Data))
	fmt.Fprintln(cmd.OutOrStdout(), saved.Path)
	return nil
}
