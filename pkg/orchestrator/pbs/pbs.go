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

// Package pbs talks to a PBS/Torque queue (such as Intel DevCloud) through
// the qsub and qstat command line tools.
package pbs

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"devcloud-jobs/pkg/logging"
	"devcloud-jobs/pkg/orchestrator"
	"devcloud-jobs/pkg/shell"
)

// Runner executes a queue command. It exists so tests can stand in for qsub
// and qstat.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) shell.CommandResult
}

type shellRunner struct {
	dir string
}

func (r shellRunner) Run(ctx context.Context, name string, args ...string) shell.CommandResult {
	cmd := shell.NewCommand(name, args...)
	cmd.SetDir(r.dir)
	return cmd.ExecuteContext(ctx)
}

// Options configures the queue commands.
type Options struct {
	SubmitCommand string
	StatusCommand string
	// WorkDir is passed to qsub -d and is where the job runs.
	WorkDir string
	// JobName is passed to qsub -N when set. Some DevCloud integrations
	// reject -N, so it is empty by default.
	JobName string
}

// PBSOrchestrator implements the Orchestrator interface for PBS/Torque.
type PBSOrchestrator struct {
	opts   Options
	runner Runner
}

// NewPBSOrchestrator creates an orchestrator that shells out to the real
// queue commands.
func NewPBSOrchestrator(opts Options) (*PBSOrchestrator, error) {
	return NewPBSOrchestratorWithRunner(opts, shellRunner{})
}

// NewPBSOrchestratorWithRunner creates an orchestrator using runner to
// execute queue commands.
func NewPBSOrchestratorWithRunner(opts Options, runner Runner) (*PBSOrchestrator, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner must not be nil")
	}
	if opts.SubmitCommand == "" {
		opts.SubmitCommand = "qsub"
	}
	if opts.StatusCommand == "" {
		opts.StatusCommand = "qstat"
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	if strings.ContainsAny(opts.JobName, " \t\n") {
		return nil, fmt.Errorf("job name %q must not contain whitespace", opts.JobName)
	}
	return &PBSOrchestrator{opts: opts, runner: runner}, nil
}

// Submit runs qsub once and returns the job identifier it prints.
func (p *PBSOrchestrator) Submit(ctx context.Context, spec orchestrator.JobSpec) (string, error) {
	args := p.SubmitArgs(spec)
	logging.Debug("Submitting %s with %s %s", spec.Script(), p.opts.SubmitCommand, strings.Join(args, " "))

	res := p.runner.Run(ctx, p.opts.SubmitCommand, args...)
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s failed with exit code %d: %s", p.opts.SubmitCommand, res.ExitCode, diagnostic(res))
	}

	jobID := firstLine(res.Stdout)
	if jobID == "" {
		return "", fmt.Errorf("%s succeeded but printed no job id", p.opts.SubmitCommand)
	}
	return jobID, nil
}

// SubmitArgs builds the qsub argument list for spec:
// <script> -d <workdir> -l <selector> [-F "<args>"] [-N <name>].
func (p *PBSOrchestrator) SubmitArgs(spec orchestrator.JobSpec) []string {
	args := []string{spec.Script(), "-d", p.opts.WorkDir, "-l", spec.Resources().String()}
	if jobArgs := spec.Args(); len(jobArgs) > 0 {
		args = append(args, "-F", joinJobArgs(jobArgs))
	}
	if p.opts.JobName != "" {
		args = append(args, "-N", p.opts.JobName)
	}
	return args
}

// joinJobArgs joins script arguments for qsub -F, which splits on
// whitespace. Arguments containing whitespace are double quoted.
func joinJobArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t") {
			a = `"` + strings.ReplaceAll(a, `"`, `\"`) + `"`
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}

// Status runs qstat -f for jobID. DevCloud drops jobs from qstat once they
// finish, so an unknown job is reported as StateAbsent rather than an error.
func (p *PBSOrchestrator) Status(ctx context.Context, jobID string) (orchestrator.StatusReport, error) {
	res := p.runner.Run(ctx, p.opts.StatusCommand, "-f", jobID)
	if res.ExitCode != 0 {
		if isUnknownJob(res.Stderr) {
			return orchestrator.StatusReport{State: orchestrator.StateAbsent}, nil
		}
		return orchestrator.StatusReport{}, fmt.Errorf("%s failed with exit code %d: %s", p.opts.StatusCommand, res.ExitCode, diagnostic(res))
	}
	return ParseFullStatus(res.Stdout)
}

// ParseFullStatus parses the output of qstat -f for a single job.
func ParseFullStatus(out string) (orchestrator.StatusReport, error) {
	attrs := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		attrs[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return orchestrator.StatusReport{}, fmt.Errorf("failed to read qstat output: %w", err)
	}

	stateCode, ok := attrs["job_state"]
	if !ok {
		if strings.TrimSpace(out) == "" {
			return orchestrator.StatusReport{State: orchestrator.StateAbsent}, nil
		}
		return orchestrator.StatusReport{}, fmt.Errorf("qstat output has no job_state attribute")
	}

	report := orchestrator.StatusReport{Detail: statusDetail(attrs)}
	switch stateCode {
	case "Q", "H", "W", "T":
		report.State = orchestrator.StateQueued
	case "R", "E", "S":
		report.State = orchestrator.StateRunning
	case "C", "F", "X":
		report.State = orchestrator.StateCompleted
	default:
		return orchestrator.StatusReport{}, fmt.Errorf("unknown job_state %q", stateCode)
	}
	return report, nil
}

func statusDetail(attrs map[string]string) string {
	var parts []string
	if q := attrs["queue"]; q != "" {
		parts = append(parts, "queue="+q)
	}
	if h := attrs["exec_host"]; h != "" {
		parts = append(parts, "host="+h)
	}
	return strings.Join(parts, " ")
}

func isUnknownJob(stderr string) bool {
	return strings.Contains(stderr, "Unknown Job Id") || strings.Contains(stderr, "Job has finished")
}

func diagnostic(res shell.CommandResult) string {
	if msg := strings.TrimSpace(res.Stderr); msg != "" {
		return msg
	}
	return strings.TrimSpace(res.Stdout)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
