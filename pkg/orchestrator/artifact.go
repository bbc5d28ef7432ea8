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
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Artifact is a named output file of a finished job. Data holds the payload
// once fetched; Path is set once the payload has been written locally.
type Artifact struct {
	Handle   JobHandle
	Filename string
	Data     []byte
	Path     string
}

// Save writes the payload into dir and returns a copy of the artifact with
// Path set. The file is written under a temporary name and renamed into
// place, so readers never observe a partial artifact.
func (a Artifact) Save(fs afero.Fs, dir string) (Artifact, error) {
	if len(a.Data) == 0 {
		return a, fmt.Errorf("artifact %s of job %s has no payload to save", a.Filename, a.Handle.ID)
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return a, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	target := filepath.Join(dir, filepath.Base(a.Filename))
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(a.Filename), uuid.NewString()))
	if err := afero.WriteFile(fs, tmp, a.Data, 0o644); err != nil {
		return a, fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, target); err != nil {
		_ = fs.Remove(tmp)
		return a, fmt.Errorf("failed to move artifact into place at %s: %w", target, err)
	}

	saved := a
	saved.Path = target
	return saved, nil
}

// Discard removes the locally saved copy, if any.
func (a Artifact) Discard(fs afero.Fs) error {
	if a.Path == "" {
		return nil
	}
	if err := fs.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact %s: %w", a.Path, err)
	}
	return nil
}
