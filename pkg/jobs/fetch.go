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
	"strings"
	"time"

	"devcloud-jobs/pkg/logging"
	"devcloud-jobs/pkg/orchestrator"

	"github.com/pkg/errors"
)

const (
	// DefaultBackoff is the pause between attempts of a blocking fetch.
	DefaultBackoff = 2 * time.Second
	// DefaultFilename is the archive DevCloud jobs leave in their work directory.
	DefaultFilename = "output.tgz"
)

// FetchOptions controls a single Fetch call.
type FetchOptions struct {
	// Blocking makes Fetch wait for the artifact instead of failing with
	// ErrNotReady.
	Blocking bool
	// Timeout bounds a blocking fetch. Required when Blocking is set.
	Timeout time.Duration
	// Backoff is the fixed pause between blocking attempts.
	Backoff time.Duration
}

// Fetcher retrieves job artifacts from a store.
type Fetcher struct {
	store orchestrator.ArtifactStore
}

// NewFetcher returns a Fetcher reading from store.
func NewFetcher(store orchestrator.ArtifactStore) *Fetcher {
	return &Fetcher{store: store}
}

// Fetch retrieves filename for handle. A non-blocking fetch makes exactly
// one attempt and fails with ErrNotReady if the artifact is missing. A
// blocking fetch retries every opts.Backoff until the artifact appears or
// opts.Timeout elapses (ErrFetchTimeout); the in-flight attempt is cancelled
// with it. Cancelling ctx aborts either mode with ctx's error.
func (f *Fetcher) Fetch(ctx context.Context, handle orchestrator.JobHandle, filename string, opts FetchOptions) (orchestrator.Artifact, error) {
	if err := validateFetch(handle, filename); err != nil {
		return orchestrator.Artifact{}, err
	}
	if !opts.Blocking {
		return f.attempt(ctx, handle, filename)
	}
	if opts.Timeout <= 0 {
		return orchestrator.Artifact{}, errors.Wrapf(orchestrator.ErrInvalidSpec, "blocking fetch needs a positive timeout, got %s", opts.Timeout)
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		artifact, err := f.attempt(waitCtx, handle, filename)
		if err == nil {
			return artifact, nil
		}
		if waitCtx.Err() != nil {
			break
		}
		if !errors.Is(err, orchestrator.ErrNotReady) {
			return orchestrator.Artifact{}, err
		}
		logging.Debug("Attempt %d: %s of job %s not ready, retrying in %s", attempt, filename, handle.ID, backoff)
		if !sleep(waitCtx, backoff) {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return orchestrator.Artifact{}, errors.Wrapf(err, "fetch of %s for job %s interrupted", filename, handle.ID)
	}
	return orchestrator.Artifact{}, errors.Wrapf(orchestrator.ErrFetchTimeout, "%s of job %s not available after %s", filename, handle.ID, opts.Timeout)
}

func (f *Fetcher) attempt(ctx context.Context, handle orchestrator.JobHandle, filename string) (orchestrator.Artifact, error) {
	remote, err := f.store.Retrieve(ctx, handle.ID, filename)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNotReady) {
			return orchestrator.Artifact{}, err
		}
		return orchestrator.Artifact{}, &orchestrator.FetchError{JobID: handle.ID, Filename: filename, Err: err}
	}

	if len(remote.Data) == 0 {
		return orchestrator.Artifact{}, errors.Wrapf(orchestrator.ErrArtifactMismatch, "%s of job %s is empty", filename, handle.ID)
	}
	if remote.Name != filename {
		return orchestrator.Artifact{}, errors.Wrapf(orchestrator.ErrArtifactMismatch, "requested %s of job %s but the store returned %q", filename, handle.ID, remote.Name)
	}

	logging.Debug("Fetched %s of job %s (%d bytes)", filename, handle.ID, len(remote.Data))
	return orchestrator.Artifact{Handle: handle, Filename: filename, Data: remote.Data}, nil
}

func validateFetch(handle orchestrator.JobHandle, filename string) error {
	if handle.ID == "" {
		return errors.Wrap(orchestrator.ErrInvalidSpec, "job handle has no id")
	}
	if filename == "" || filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) {
		return errors.Wrapf(orchestrator.ErrInvalidSpec, "artifact filename %q must be a plain file name", filename)
	}
	return nil
}
