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
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ResourceSelector describes the nodes a job asks for, e.g.
// nodes=1:tank-870:i5-6500te:iei-mustang-f100-a10.
type ResourceSelector struct {
	Quantity int
	NodeType string
	Devices  []string
}

// ParseResourceSelector parses the PBS "nodes=" form. A leading quantity is
// optional and defaults to 1.
func ParseResourceSelector(s string) (ResourceSelector, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ResourceSelector{}, errors.Wrap(ErrInvalidSpec, "resource selector is empty")
	}
	body, ok := strings.CutPrefix(s, "nodes=")
	if !ok {
		return ResourceSelector{}, errors.Wrapf(ErrInvalidSpec, "resource selector %q must start with \"nodes=\"", s)
	}

	parts := strings.Split(body, ":")
	sel := ResourceSelector{Quantity: 1}
	if n, err := strconv.Atoi(parts[0]); err == nil {
		if n < 1 {
			return ResourceSelector{}, errors.Wrapf(ErrInvalidSpec, "node quantity must be positive, got %d", n)
		}
		sel.Quantity = n
		parts = parts[1:]
	}
	for _, p := range parts {
		if p == "" {
			return ResourceSelector{}, errors.Wrapf(ErrInvalidSpec, "resource selector %q has an empty property", s)
		}
	}
	if len(parts) > 0 {
		sel.NodeType = parts[0]
	}
	if len(parts) > 1 {
		sel.Devices = append([]string(nil), parts[1:]...)
	}
	return sel, nil
}

// IsZero reports whether the selector requests nothing.
func (r ResourceSelector) IsZero() bool {
	return r.Quantity == 0 && r.NodeType == "" && len(r.Devices) == 0
}

func (r ResourceSelector) String() string {
	if r.IsZero() {
		return ""
	}
	quantity := r.Quantity
	if quantity == 0 {
		quantity = 1
	}
	parts := []string{strconv.Itoa(quantity)}
	if r.NodeType != "" {
		parts = append(parts, r.NodeType)
	}
	parts = append(parts, r.Devices...)
	return "nodes=" + strings.Join(parts, ":")
}

// JobSpec holds everything needed to submit a job. It is immutable: the
// constructor and accessors copy slices.
type JobSpec struct {
	script    string
	resources ResourceSelector
	args      []string
}

// NewJobSpec builds a JobSpec. It does not validate; Validate does.
func NewJobSpec(script string, resources ResourceSelector, args ...string) JobSpec {
	resources.Devices = append([]string(nil), resources.Devices...)
	return JobSpec{
		script:    script,
		resources: resources,
		args:      append([]string(nil), args...),
	}
}

func (s JobSpec) Script() string { return s.script }

func (s JobSpec) Resources() ResourceSelector {
	r := s.resources
	r.Devices = append([]string(nil), r.Devices...)
	return r
}

func (s JobSpec) Args() []string { return append([]string(nil), s.args...) }

// Validate checks that the script reference and resource selector are set.
func (s JobSpec) Validate() error {
	if strings.TrimSpace(s.script) == "" {
		return errors.Wrap(ErrInvalidSpec, "script reference is empty")
	}
	if s.resources.IsZero() {
		return errors.Wrap(ErrInvalidSpec, "resource selector is empty")
	}
	if s.resources.Quantity < 0 {
		return errors.Wrapf(ErrInvalidSpec, "node quantity must be positive, got %d", s.resources.Quantity)
	}
	return nil
}

// JobHandle identifies a submitted job. It is passed by value and never
// mutated.
type JobHandle struct {
	ID          string    `yaml:"id"`
	SubmittedAt time.Time `yaml:"submitted_at"`
}

// Known reports whether the handle came from a successful submission (as
// opposed to a bare job ID typed in by a user).
func (h JobHandle) Known() bool {
	return !h.SubmittedAt.IsZero()
}

func (h JobHandle) String() string {
	return h.ID
}

// JobStatus is the caller-facing state of a job as seen by one poll.
type JobStatus int

const (
	StatusQueued JobStatus = iota
	StatusRunning
	StatusFinished
	StatusNotFound
	StatusPollError
)

func (s JobStatus) String() string {
	switch s {
	case StatusQueued:
		return "Queued"
	case StatusRunning:
		return "Running"
	case StatusFinished:
		return "Finished"
	case StatusNotFound:
		return "NotFound"
	case StatusPollError:
		return "PollError"
	default:
		return fmt.Sprintf("JobStatus(%d)", int(s))
	}
}

// IsTerminal reports whether polling should stop at this status.
func (s JobStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusNotFound
}

// RemoteState is the raw state reported by the queue's status interface.
type RemoteState int

const (
	StateQueued RemoteState = iota
	StateRunning
	StateCompleted
	StateAbsent
)

func (s RemoteState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAbsent:
		return "absent"
	default:
		return fmt.Sprintf("RemoteState(%d)", int(s))
	}
}

// StatusReport is one answer from the status interface. Detail carries
// optional metadata such as the queue name or execution host.
type StatusReport struct {
	State  RemoteState
	Detail string
}

// RemoteArtifact is an artifact as returned by a store, before verification.
type RemoteArtifact struct {
	Name string
	Data []byte
}

// Queue is the submission interface of a remote job queue. Submit must create
// at most one remote job per call and return its identifier.
type Queue interface {
	Submit(ctx context.Context, spec JobSpec) (string, error)
}

// StatusSource is the status interface of a remote job queue.
type StatusSource interface {
	Status(ctx context.Context, jobID string) (StatusReport, error)
}

// ArtifactStore is the artifact-retrieval interface. Retrieve returns an
// error wrapping ErrNotReady when the artifact does not exist yet.
type ArtifactStore interface {
	Retrieve(ctx context.Context, jobID, filename string) (RemoteArtifact, error)
}

// Orchestrator defines the interface for submitting and monitoring jobs on a
// cluster queue.
type Orchestrator interface {
	Queue
	StatusSource
}
