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

package artifactstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"devcloud-jobs/pkg/orchestrator"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// LocalStore reads artifacts from a directory tree, typically the shared
// home directory a PBS job writes its output into.
type LocalStore struct {
	fs      afero.Fs
	root    string
	locator *Locator
}

// NewLocalStore returns a store rooted at root. pathTemplate is rendered
// relative to root; empty means DefaultPathTemplate.
func NewLocalStore(fs afero.Fs, root, pathTemplate string) (*LocalStore, error) {
	locator, err := NewLocator(pathTemplate)
	if err != nil {
		return nil, err
	}
	if root == "" {
		root = "."
	}
	return &LocalStore{fs: fs, root: root, locator: locator}, nil
}

// Retrieve reads the artifact. A missing file is reported as ErrNotReady.
// The artifact is named filename regardless of the rendered path.
func (s *LocalStore) Retrieve(ctx context.Context, jobID, filename string) (orchestrator.RemoteArtifact, error) {
	if err := ctx.Err(); err != nil {
		return orchestrator.RemoteArtifact{}, err
	}
	rel, err := s.locator.Render(jobID, filename)
	if err != nil {
		return orchestrator.RemoteArtifact{}, err
	}
	rel = filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return orchestrator.RemoteArtifact{}, fmt.Errorf("artifact location %q escapes store root %s", rel, s.root)
	}
	path := filepath.Join(s.root, rel)

	info, err := s.fs.Stat(path)
	if os.IsNotExist(err) {
		return orchestrator.RemoteArtifact{}, errors.Wrapf(orchestrator.ErrNotReady, "%s does not exist yet", path)
	}
	if err != nil {
		return orchestrator.RemoteArtifact{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return orchestrator.RemoteArtifact{}, fmt.Errorf("artifact location %s is a directory", path)
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return orchestrator.RemoteArtifact{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return orchestrator.RemoteArtifact{Name: filename, Data: data}, nil
}
