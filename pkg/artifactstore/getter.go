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
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"devcloud-jobs/pkg/logging"
	"devcloud-jobs/pkg/orchestrator"

	getter "github.com/hashicorp/go-getter"
	"github.com/pkg/errors"
)

// GetterStore downloads artifacts from any source go-getter understands
// (http(s), s3, gcs, file) using a URL template such as
// https://results.example.com/{{.JobID}}/{{.Filename}}.
type GetterStore struct {
	locator *Locator
	// Getters overrides go-getter's protocol table when set.
	Getters map[string]getter.Getter
}

// NewGetterStore returns a store downloading from urlTemplate.
func NewGetterStore(urlTemplate string) (*GetterStore, error) {
	if strings.TrimSpace(urlTemplate) == "" {
		return nil, fmt.Errorf("getter store needs a URL template")
	}
	locator, err := NewLocator(urlTemplate)
	if err != nil {
		return nil, err
	}
	return &GetterStore{locator: locator}, nil
}

// Retrieve downloads the artifact into a scratch directory and returns its
// contents. Missing sources are reported as ErrNotReady.
func (s *GetterStore) Retrieve(ctx context.Context, jobID, filename string) (orchestrator.RemoteArtifact, error) {
	src, err := s.locator.Render(jobID, filename)
	if err != nil {
		return orchestrator.RemoteArtifact{}, err
	}

	scratch, err := os.MkdirTemp("", "dcjob-fetch-*")
	if err != nil {
		return orchestrator.RemoteArtifact{}, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logging.Debug("Failed to clean up %s: %v", scratch, err)
		}
	}()

	pwd, err := os.Getwd()
	if err != nil {
		return orchestrator.RemoteArtifact{}, fmt.Errorf("failed to get working directory: %w", err)
	}

	dst := filepath.Join(scratch, filepath.Base(filename))
	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,
		// Artifacts are handed over as-is; unpacking is the extractor's job.
		Decompressors: map[string]getter.Decompressor{},
		Getters:       s.Getters,
	}

	logging.Debug("Downloading %s", src)
	if err := client.Get(); err != nil {
		if isMissing(err) {
			return orchestrator.RemoteArtifact{}, errors.Wrapf(orchestrator.ErrNotReady, "%s: %v", src, err)
		}
		return orchestrator.RemoteArtifact{}, fmt.Errorf("failed to download %s: %w", src, err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		return orchestrator.RemoteArtifact{}, fmt.Errorf("failed to read downloaded artifact: %w", err)
	}
	// The source was rendered from filename, so the download is filename
	// whatever the URL's last element looks like.
	return orchestrator.RemoteArtifact{Name: filename, Data: data}, nil
}

// isMissing recognises "not there yet" answers from the getters in use.
func isMissing(err error) bool {
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{
		"bad response code: 404",
		"no such file or directory",
		"NoSuchKey",
		"object doesn't exist",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
