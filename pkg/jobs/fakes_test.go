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
	"errors"
	"sync"
	"time"

	"devcloud-jobs/pkg/orchestrator"
)

type fakeQueue struct {
	id    string
	err   error
	calls int
}

func (q *fakeQueue) Submit(_ context.Context, _ orchestrator.JobSpec) (string, error) {
	q.calls++
	return q.id, q.err
}

type statusResult struct {
	report orchestrator.StatusReport
	err    error
}

// scriptedStatus replays results in order, then reports the job as absent.
type scriptedStatus struct {
	mu      sync.Mutex
	results []statusResult
	calls   int
}

func newScriptedStatus(states ...orchestrator.RemoteState) *scriptedStatus {
	s := &scriptedStatus{}
	for _, st := range states {
		s.results = append(s.results, statusResult{report: orchestrator.StatusReport{State: st}})
	}
	return s
}

func (s *scriptedStatus) Status(_ context.Context, _ string) (orchestrator.StatusReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return orchestrator.StatusReport{State: orchestrator.StateAbsent}, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.report, r.err
}

// slowStore is not ready for the first notReady calls, then returns artifact.
type slowStore struct {
	mu       sync.Mutex
	notReady int
	artifact orchestrator.RemoteArtifact
	err      error
	delay    time.Duration
	calls    int
}

func (s *slowStore) Retrieve(ctx context.Context, _ string, _ string) (orchestrator.RemoteArtifact, error) {
	s.mu.Lock()
	s.calls++
	calls := s.calls
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return orchestrator.RemoteArtifact{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return orchestrator.RemoteArtifact{}, s.err
	}
	if calls <= s.notReady {
		return orchestrator.RemoteArtifact{}, orchestrator.ErrNotReady
	}
	return s.artifact, nil
}

func (s *slowStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var errTransport = errors.New("connection refused")
