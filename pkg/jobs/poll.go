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

package jobs

import (
	"context"
	"iter"
	"time"

	"devcloud-jobs/pkg/logging"
	"devcloud-jobs/pkg/orchestrator"

	"github.com/pkg/errors"
)

const (
	// DefaultMaxAttempts matches the fixed budget of DevCloud's liveQStat.
	DefaultMaxAttempts = 10
	DefaultInterval    = 5 * time.Second
)

// Observation is one element of a polling sequence.
type Observation struct {
	Attempt int
	Status  orchestrator.JobStatus
	Time    time.Time
	Detail  string
	// Err is set when Status is StatusPollError.
	Err error
}

// Poller queries a job's status on demand. It keeps no state between calls
// to Poll and may be shared across goroutines polling different handles.
type Poller struct {
	source orchestrator.StatusSource
	now    func() time.Time
}

// NewPoller returns a Poller reading from source.
func NewPoller(source orchestrator.StatusSource) *Poller {
	return &Poller{source: source, now: time.Now}
}

// Poll returns a lazy sequence of at most maxAttempts observations of handle,
// spaced interval apart. Each poll happens only when the consumer asks for
// the next element, on the consumer's goroutine. The sequence ends early at
// the first Finished or NotFound observation, when the consumer stops
// ranging, or when ctx is done. A failed query is yielded as a PollError
// observation and counts as an attempt. Every call starts a fresh sequence.
func (p *Poller) Poll(ctx context.Context, handle orchestrator.JobHandle, maxAttempts int, interval time.Duration) (iter.Seq[Observation], error) {
	if handle.ID == "" {
		return nil, errors.Wrap(orchestrator.ErrInvalidSpec, "job handle has no id")
	}
	if maxAttempts < 1 {
		return nil, errors.Wrapf(orchestrator.ErrInvalidSpec, "max attempts must be at least 1, got %d", maxAttempts)
	}
	if interval < 0 {
		return nil, errors.Wrapf(orchestrator.ErrInvalidSpec, "poll interval must not be negative, got %s", interval)
	}

	return func(yield func(Observation) bool) {
		// A job that was ever seen (or that we know we created) and is now
		// absent from the queue has finished.
		seen := handle.Known()
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			if attempt > 1 && !sleep(ctx, interval) {
				return
			}
			if ctx.Err() != nil {
				return
			}

			report, err := p.source.Status(ctx, handle.ID)
			if err != nil && ctx.Err() != nil {
				return
			}
			obs := Observation{Attempt: attempt, Time: p.now(), Detail: report.Detail}
			if err != nil {
				obs.Status = orchestrator.StatusPollError
				obs.Err = errors.Wrapf(orchestrator.ErrPoll, "attempt %d for job %s: %v", attempt, handle.ID, err)
				obs.Detail = ""
				logging.Debug("Poll %d/%d of job %s failed: %v", attempt, maxAttempts, handle.ID, err)
			} else {
				obs.Status = toJobStatus(report.State, seen)
				if report.State == orchestrator.StateQueued || report.State == orchestrator.StateRunning {
					seen = true
				}
			}

			if !yield(obs) || obs.Status.IsTerminal() {
				return
			}
		}
	}, nil
}

// Wait drains a polling sequence and returns its last observation. onObserve,
// if not nil, is called for every observation as it arrives.
func (p *Poller) Wait(ctx context.Context, handle orchestrator.JobHandle, maxAttempts int, interval time.Duration, onObserve func(Observation)) (Observation, error) {
	seq, err := p.Poll(ctx, handle, maxAttempts, interval)
	if err != nil {
		return Observation{}, err
	}
	var last Observation
	for obs := range seq {
		if onObserve != nil {
			onObserve(obs)
		}
		last = obs
	}
	if err := ctx.Err(); err != nil {
		return last, errors.Wrapf(err, "polling job %s interrupted", handle.ID)
	}
	return last, nil
}

// Settled turns the last observation of a sequence into an error unless the
// job finished: NotFound gives ErrJobNotFound, a failed final poll its
// ErrPoll error, and a job still queued or running ErrPollExhausted.
func Settled(jobID string, last Observation) error {
	switch last.Status {
	case orchestrator.StatusFinished:
		return nil
	case orchestrator.StatusNotFound:
		return errors.Wrapf(orchestrator.ErrJobNotFound, "job %s", jobID)
	case orchestrator.StatusPollError:
		if last.Err != nil {
			return last.Err
		}
		return errors.Wrapf(orchestrator.ErrPoll, "job %s", jobID)
	default:
		return errors.Wrapf(orchestrator.ErrPollExhausted, "job %s is %s after %d attempts", jobID, last.Status, last.Attempt)
	}
}

func toJobStatus(state orchestrator.RemoteState, seen bool) orchestrator.JobStatus {
	switch state {
	case orchestrator.StateQueued:
		return orchestrator.StatusQueued
	case orchestrator.StateRunning:
		return orchestrator.StatusRunning
	case orchestrator.StateCompleted:
		return orchestrator.StatusFinished
	default:
		if seen {
			return orchestrator.StatusFinished
		}
		return orchestrator.StatusNotFound
	}
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
