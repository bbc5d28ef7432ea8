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

// Package handlestore persists job handles between dcjob invocations so a
// job submitted in one session can be polled and fetched in another.
package handlestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"devcloud-jobs/pkg/orchestrator"
	"devcloud-jobs/pkg/shell"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultPath is relative to the working directory, next to the job scripts.
const DefaultPath = ".dcjob/handles.yaml"

type document struct {
	Jobs []orchestrator.JobHandle `yaml:"jobs"`
}

// Store is a YAML file of job handles.
type Store struct {
	fs   afero.Fs
	path string
}

func New(fs afero.Fs, path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{fs: fs, path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// List returns all stored handles, oldest submission first.
func (s *Store) List() ([]orchestrator.JobHandle, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Jobs, nil
}

// Save records h, replacing any handle with the same ID. The file is never
// left half written, but Save does not lock it: when two processes save at
// the same time the last writer wins and the other handle is lost.
func (s *Store) Save(h orchestrator.JobHandle) error {
	doc, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range doc.Jobs {
		if doc.Jobs[i].ID == h.ID {
			doc.Jobs[i] = h
			replaced = true
		}
	}
	if !replaced {
		doc.Jobs = append(doc.Jobs, h)
	}
	sort.SliceStable(doc.Jobs, func(i, j int) bool {
		return doc.Jobs[i].SubmittedAt.Before(doc.Jobs[j].SubmittedAt)
	})
	return s.write(doc)
}

// Lookup returns the stored handle for id.
func (s *Store) Lookup(id string) (orchestrator.JobHandle, bool, error) {
	doc, err := s.load()
	if err != nil {
		return orchestrator.JobHandle{}, false, err
	}
	for _, h := range doc.Jobs {
		if h.ID == id {
			return h, true, nil
		}
	}
	return orchestrator.JobHandle{}, false, nil
}

// Resolve returns the stored handle for id, or a bare handle if the job was
// not submitted through this store.
func (s *Store) Resolve(id string) (orchestrator.JobHandle, error) {
	h, ok, err := s.Lookup(id)
	if err != nil {
		return orchestrator.JobHandle{}, err
	}
	if !ok {
		return orchestrator.JobHandle{ID: id}, nil
	}
	return h, nil
}

// Latest returns the most recently submitted handle.
func (s *Store) Latest() (orchestrator.JobHandle, bool, error) {
	doc, err := s.load()
	if err != nil || len(doc.Jobs) == 0 {
		return orchestrator.JobHandle{}, false, err
	}
	return doc.Jobs[len(doc.Jobs)-1], true, nil
}

func (s *Store) load() (document, error) {
	var doc document
	data, err := afero.ReadFile(s.fs, s.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("failed to read handle store %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse handle store %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *Store) write(doc document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode handle store: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", s.path, err)
	}
	tmp := fmt.Sprintf("%s.%s.tmp", s.path, shell.RandomString(8))
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
