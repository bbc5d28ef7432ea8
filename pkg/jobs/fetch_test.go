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
	"testing"
	"time"

	"devcloud-jobs/pkg/orchestrator"
)

var testHandle = orchestrator.JobHandle{ID: "12345.v-qsvr-1"}

func readyArtifact() orchestrator.RemoteArtifact {
	return orchestrator.RemoteArtifact{Name: "output.tgz", Data: []byte("tarball")}
}

func TestFetchNonBlocking(t *testing.T) {
	store := &slowStore{notReady: 1, artifact: readyArtifact()}
	f := NewFetcher(store)

	_, err := f.Fetch(context.Background(), testHandle, "output.tgz", FetchOptions{})
	if !errors.Is(err, orchestrator.ErrNotReady) {
		t.Fatalf("Fetch() error = %v, want ErrNotReady", err)
	}
	if store.callCount() != 1 {
		t.Errorf("non-blocking fetch made %d attempts, want 1", store.callCount())
	}

	a, err := f.Fetch(context.Background(), testHandle, "output.tgz", FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if a.Handle != testHandle || a.Filename != "output.tgz" || string(a.Data) != "tarball" {
		t.Errorf("Fetch() = %+v", a)
	}
}

func TestFetchBlockingEventuallySucceeds(t *testing.T) {
	store := &slowStore{notReady: 3, artifact: readyArtifact()}
	a, err := NewFetcher(store).Fetch(context.Background(), testHandle, "output.tgz", FetchOptions{
		Blocking: true,
		Timeout:  5 * time.Second,
		Backoff:  5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if string(a.Data) != "tarball" {
		t.Errorf("unexpected payload %q", a.Data)
	}
	if store.callCount() != 4 {
		t.Errorf("blocking fetch made %d attempts, want 4", store.callCount())
	}
}

func TestFetchBlockingTimeout(t *testing.T) {
	tests := []struct {
		name  string
		store *slowStore
	}{
		{name: "never ready", store: &slowStore{notReady: 1 << 30}},
		{name: "slow in-flight attempt", store: &slowStore{notReady: 1 << 30, delay: time.Hour}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const timeout = 50 * time.Millisecond
			start := time.Now()
			_, err := NewFetcher(tt.store).Fetch(context.Background(), testHandle, "output.tgz", FetchOptions{
				Blocking: true,
				Timeout:  timeout,
				Backoff:  10 * time.Millisecond,
			})
			elapsed := time.Since(start)

			if !errors.Is(err, orchestrator.ErrFetchTimeout) {
				t.Fatalf("Fetch() error = %v, want ErrFetchTimeout", err)
			}
			if elapsed < timeout {
				t.Errorf("Fetch() gave up after %s, before the %s timeout", elapsed, timeout)
			}
			if elapsed > timeout+time.Second {
				t.Errorf("Fetch() took %s, far beyond the %s timeout", elapsed, timeout)
			}
		})
	}
}

func TestFetchBlockingCancelledByCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := NewFetcher(&slowStore{notReady: 1 << 30}).Fetch(ctx, testHandle, "output.tgz", FetchOptions{
		Blocking: true,
		Timeout:  time.Hour,
		Backoff:  5 * time.Millisecond,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, orchestrator.ErrFetchTimeout) {
		t.Errorf("caller cancellation must not be reported as a timeout")
	}
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name      string
		store     *slowStore
		filename  string
		opts      FetchOptions
		wantErr   error
		wantCalls int
	}{
		{
			name:      "empty payload",
			store:     &slowStore{artifact: orchestrator.RemoteArtifact{Name: "output.tgz"}},
			filename:  "output.tgz",
			wantErr:   orchestrator.ErrArtifactMismatch,
			wantCalls: 1,
		},
		{
			name:      "wrong name",
			store:     &slowStore{artifact: orchestrator.RemoteArtifact{Name: "stale.tgz", Data: []byte("x")}},
			filename:  "output.tgz",
			opts:      FetchOptions{Blocking: true, Timeout: time.Second, Backoff: time.Millisecond},
			wantErr:   orchestrator.ErrArtifactMismatch,
			wantCalls: 1,
		},
		{
			name:      "transport error is not retried",
			store:     &slowStore{err: errTransport},
			filename:  "output.tgz",
			opts:      FetchOptions{Blocking: true, Timeout: time.Second, Backoff: time.Millisecond},
			wantErr:   orchestrator.ErrFetch,
			wantCalls: 1,
		},
		{
			name:     "path in filename",
			store:    &slowStore{},
			filename: "../output.tgz",
			wantErr:  orchestrator.ErrInvalidSpec,
		},
		{
			name:     "blocking without timeout",
			store:    &slowStore{},
			filename: "output.tgz",
			opts:     FetchOptions{Blocking: true},
			wantErr:  orchestrator.ErrInvalidSpec,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFetcher(tt.store).Fetch(context.Background(), testHandle, tt.filename, tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Fetch() error = %v, want %v", err, tt.wantErr)
			}
			if tt.store.callCount() != tt.wantCalls {
				t.Errorf("store called %d times, want %d", tt.store.callCount(), tt.wantCalls)
			}
		})
	}

	_, err := NewFetcher(&slowStore{}).Fetch(context.Background(), orchestrator.JobHandle{}, "output.tgz", FetchOptions{})
	if !errors.Is(err, orchestrator.ErrInvalidSpec) {
		t.Errorf("Fetch() with empty handle error = %v, want ErrInvalidSpec", err)
	}
}
