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

package orchestrator

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidSpec marks bad local input. Not retryable.
	ErrInvalidSpec = errors.New("invalid job spec")
	// ErrSubmission marks a failed submission; the caller may resubmit.
	ErrSubmission = errors.New("job submission failed")
	// ErrPoll marks a single failed status query.
	ErrPoll = errors.New("status poll failed")
	// ErrJobNotFound marks a job the queue has no record of.
	ErrJobNotFound = errors.New("job not found")
	// ErrPollExhausted marks a poll budget spent before the job finished.
	ErrPollExhausted = errors.New("job still pending after poll budget")
	// ErrNotReady is returned by a non-blocking fetch of a missing artifact.
	ErrNotReady = errors.New("artifact not ready")
	// ErrFetchTimeout is returned when a blocking fetch runs out of time.
	ErrFetchTimeout = errors.New("timed out waiting for artifact")
	// ErrFetch marks a transport failure while retrieving an artifact.
	ErrFetch = errors.New("artifact retrieval failed")
	// ErrArtifactMismatch marks an empty or wrongly named artifact.
	ErrArtifactMismatch = errors.New("artifact mismatch")
	// ErrUnsafeArchiveEntry marks an archive entry resolving outside the
	// extraction directory.
	ErrUnsafeArchiveEntry = errors.New("unsafe archive entry")
)

// SubmissionError carries the queue's diagnostic for a failed submission.
type SubmissionError struct {
	Script string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrSubmission, e.Script, e.Err)
}

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmission }

func (e *SubmissionError) Unwrap() error { return e.Err }

// FetchError carries the store's diagnostic for a failed retrieval.
type FetchError struct {
	JobID    string
	Filename string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s of job %s: %v", ErrFetch, e.Filename, e.JobID, e.Err)
}

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

func (e *FetchError) Unwrap() error { return e.Err }
