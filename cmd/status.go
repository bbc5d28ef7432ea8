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
	"io"
	"strconv"
	"time"

	"devcloud-jobs/pkg/jobs"
	"devcloud-jobs/pkg/logging"
	"devcloud-jobs/pkg/orchestrator"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Int("max-attempts", jobs.DefaultMaxAttempts, "Maximum number of status queries per job.")
	statusCmd.Flags().Duration("interval", jobs.DefaultInterval, "Pause between status queries.")
}

var statusCmd = &cobra.Command{
	Use:   "status [job-id...]",
	Short: "Polls jobs until they finish or the attempt budget runs out.",
	Long: `The 'status' command polls each job concurrently, logging every status change,
and prints a summary table once all jobs have settled. Without arguments it polls
the most recently submitted job.`,
	RunE: runStatusCmd,
}

// jobReport is the settled state of one polled job.
type jobReport struct {
	handle orchestrator.JobHandle
	last   jobs.Observation
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	handles, err := resolveHandles(args)
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(cfg.Queue)
	if err != nil {
		return err
	}
	poller := jobs.NewPoller(orch)

	reports := make([]jobReport, len(handles))
	g, ctx := errgroup.WithContext(cmd.Context())
	for i, h := range handles {
		reports[i].handle = h
		g.Go(func() error {
			last, err := poller.Wait(ctx, h, cfg.Poll.MaxAttempts, cfg.Poll.Interval, logObservation(h, cfg.Poll.MaxAttempts))
			reports[i].last = last
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := renderReports(cmd.OutOrStdout(), reports); err != nil {
		return err
	}
	for _, r := range reports {
		if err := jobs.Settled(r.handle.ID, r.last); err != nil {
			return err
		}
	}
	return nil
}

// resolveHandles looks ids up in the handle store so jobs submitted by dcjob
// keep their submission time. No ids means the latest submission.
func resolveHandles(ids []string) ([]orchestrator.JobHandle, error) {
	store := handleStore()
	if len(ids) == 0 {
		h, ok, err := store.Latest()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, usageError{fmt.Errorf("no job id given and no job recorded in %s", store.Path())}
		}
		return []orchestrator.JobHandle{h}, nil
	}

	handles := make([]orchestrator.JobHandle, 0, len(ids))
	for _, id := range ids {
		h, err := store.Resolve(id)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func logObservation(h orchestrator.JobHandle, maxAttempts int) func(jobs.Observation) {
	var previous orchestrator.JobStatus = -1
	return func(obs jobs.Observation) {
		switch {
		case obs.Err != nil:
			logging.Warn("Job %s: %v", h.ID, obs.Err)
		case obs.Status != previous:
			logging.Info("Job %s is %s (attempt %d/%d)", h.ID, obs.Status, obs.Attempt, maxAttempts)
		default:
			logging.Debug("Job %s is still %s (attempt %d/%d)", h.ID, obs.Status, obs.Attempt, maxAttempts)
		}
		previous = obs.Status
	}
}

func renderReports(w io.Writer, reports []jobReport) error {
	table := tablewriter.NewWriter(w)
	table.Header("Job", "Status", "Attempts", "Checked", "Detail")
	for _, r := range reports {
		checked := ""
		if !r.last.Time.IsZero() {
			checked = r.last.Time.Format(time.TimeOnly)
		}
		detail := r.last.Detail
		if r.last.Err != nil {
			detail = r.last.Err.Error()
		}
		if err := table.Append([]string{
			r.handle.ID,
			statusColor(r.last.Status).Sprint(r.last.Status),
			strconv.Itoa(r.last.Attempt),
			checked,
			detail,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func statusColor(s orchestrator.JobStatus) *color.Color {
	switch s {
	case orchestrator.StatusFinished:
		return color.New(color.FgGreen)
	case orchestrator.StatusQueued, orchestrator.StatusRunning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
