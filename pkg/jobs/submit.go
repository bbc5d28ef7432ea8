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

// Package jobs implements the client side of a batch job's life: submission,
// status polling and artifact retrieval.
package jobs

import (
	"context"
	"strings"
	"time"

	"devcloud-jobs/pkg/logging"
	"devcloud-jobs/pkg/orchestrator"

	"github.com/pkg/errors"
)

// Submitter submits JobSpecs to a queue.
type Submitter struct {
	queue orchestrator.Queue
	now   func() time.Time
}

// NewSubmitter returns a Submitter for queue.
func NewSubmitter(queue orchestrator.Queue) *Submitter {
	return &Submitter{queue: queue, now: time.Now}
}

// Submit validates spec and submits it exactly once. Failures are never
// retried here: submission is not idempotent and a retry could duplicate the
// job.
func (s *Submitter) Submit(ctx context.Context, spec orchestrator.JobSpec) (orchestrator.JobHandle, error) {
	if err := spec.Validate(); err != nil {
		return orchestrator.JobHandle{}, err
	}

	id, err := s.queue.Submit(ctx, spec)
	if err != nil {
		return orchestrator.JobHandle{}, &orchestrator.SubmissionError{Script: spec.Script(), Err: err}
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return orchestrator.JobHandle{}, &orchestrator.SubmissionError{
			Script: spec.Script(),
			Err:    errors.New("queue returned an empty job id"),
		}
	}

	handle := orchestrator.JobHandle{ID: id, SubmittedAt: s.now()}
	logging.Info("Submitted %s to %s as job %s", spec.Script(), spec.Resources(), handle.ID)
	return handle, nil
}
