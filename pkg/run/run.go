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

// Package run chains submission, polling, retrieval and extraction into the
// single workflow behind `dcjob run`.
package run

import (
	"context"
	"time"

	"devcloud-jobs/pkg/archive"
	"devcloud-jobs/pkg/handlestore"
	"devcloud-jobs/pkg/jobs"
	"devcloud-jobs/pkg/logging"
	"devcloud-jobs/pkg/orchestrator"

	"github.com/spf13/afero"
)

// Options holds all the parameters of one end-to-end job run.
type Options struct {
	Spec        orchestrator.JobSpec
	Filename    string // defaults to jobs.DefaultFilename
	Dest        string // receives the archive and its contents
	MaxAttempts int
	Interval    time.Duration
	// Fetch is always blocking; Blocking is ignored.
	Fetch   jobs.FetchOptions
	Include []string
	// KeepArchive leaves the downloaded archive next to the extracted files.
	KeepArchive bool
}

// Result describes a completed run.
type Result struct {
	Handle   orchestrator.JobHandle
	Final    jobs.Observation
	Artifact orchestrator.Artifact
	Files    []string
}

// Pipeline runs jobs from submission to extracted output.
type Pipeline struct {
	submitter *jobs.Submitter
	poller    *jobs.Poller
	fetcher   *jobs.Fetcher
	fs        afero.Fs
	handles   *handlestore.Store

	// OnObserve, if set, receives every status observation as it arrives.
	OnObserve func(jobs.Observation)
}

// NewPipeline wires a pipeline. handles may be nil to skip recording.
func NewPipeline(orch orchestrator.Orchestrator, store orchestrator.ArtifactStore, fs afero.Fs, handles *handlestore.Store) *Pipeline {
	return &Pipeline{
		submitter: jobs.NewSubmitter(orch),
		poller:    jobs.NewPoller(orch),
		fetcher:   jobs.NewFetcher(store),
		fs:        fs,
		handles:   handles,
	}
}

// Execute submits opts.Spec, waits for the job to finish, fetches its
// archive and extracts it into opts.Dest. On failure the returned Result
// holds whatever was reached, so the caller can report the job handle.
func (p *Pipeline) Execute(ctx context.Context, opts Options) (Result, error) {
	var res Result
	if opts.Filename == "" {
		opts.Filename = jobs.DefaultFilename
	}
	if opts.Dest == "" {
		opts.Dest = "."
	}
	// Bad include patterns must fail before a job is created.
	extractor, err := archive.NewExtractor(p.fs, opts.Include)
	if err != nil {
		return res, err
	}

	logging.Info("Submitting %s with %s...", opts.Spec.Script(), opts.Spec.Resources())
	res.Handle, err = p.submitter.Submit(ctx, opts.Spec)
	if err != nil {
		return res, err
	}
	logging.Info("Submitted job %s", res.Handle.ID)
	if p.handles != nil {
		if err := p.handles.Save(res.Handle); err != nil {
			logging.Warn("Could not record job %s in %s: %v", res.Handle.ID, p.handles.Path(), err)
		}
	}

	res.Final, err = p.poller.Wait(ctx, res.Handle, opts.MaxAttempts, opts.Interval, p.OnObserve)
	if err != nil {
		return res, err
	}
	if err := jobs.Settled(res.Handle.ID, res.Final); err != nil {
		return res, err
	}

	logging.Info("Job %s finished, fetching %s...", res.Handle.ID, opts.Filename)
	fetchOpts := opts.Fetch
	fetchOpts.Blocking = true
	artifact, err := p.fetcher.Fetch(ctx, res.Handle, opts.Filename, fetchOpts)
	if err != nil {
		return res, err
	}
	res.Artifact, err = artifact.Save(p.fs, opts.Dest)
	if err != nil {
		return res, err
	}

	res.Files, err = extractor.Extract(res.Artifact, opts.Dest)
	if err != nil {
		return res, err
	}
	logging.Info("Extracted %d files from %s into %s", len(res.Files), opts.Filename, opts.Dest)

	if !opts.KeepArchive {
		if err := res.Artifact.Discard(p.fs); err != nil {
			logging.Warn("%v", err)
		} else {
			res.Artifact.Path = ""
		}
	}
	return res, nil
}
