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

// Package archive unpacks fetched job artifacts (tar, optionally gzipped).
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"devcloud-jobs/pkg/logging"
	"devcloud-jobs/pkg/orchestrator"

	"github.com/moby/patternmatcher"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Extractor unpacks artifacts onto a filesystem.
type Extractor struct {
	fs      afero.Fs
	include *patternmatcher.PatternMatcher
}

// NewExtractor returns an Extractor writing to fs. When include is not
// empty, only entries matching one of the patterns (.dockerignore syntax,
// relative to the archive root) are extracted.
func NewExtractor(fs afero.Fs, include []string) (*Extractor, error) {
	e := &Extractor{fs: fs}
	if len(include) > 0 {
		matcher, err := patternmatcher.New(include)
		if err != nil {
			return nil, fmt.Errorf("failed to create pattern matcher: %w", err)
		}
		e.include = matcher
	}
	return e, nil
}

type entry struct {
	name  string
	isDir bool
	mode  int64
	data  []byte
}

// Extract unpacks artifact into dest and returns the extracted file paths,
// relative to dest and sorted. Every entry is validated before anything is
// written, so an unsafe archive leaves dest untouched. Extracting the same
// artifact again overwrites the earlier files.
func (e *Extractor) Extract(artifact orchestrator.Artifact, dest string) ([]string, error) {
	payload, err := e.payload(artifact)
	if err != nil {
		return nil, err
	}

	if err := e.fs.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination %s: %w", dest, err)
	}
	dir, err := e.fs.Open(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to open destination %s: %w", dest, err)
	}
	defer dir.Close()
	if info, err := dir.Stat(); err != nil {
		return nil, fmt.Errorf("failed to stat destination %s: %w", dest, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("destination %s is not a directory", dest)
	}

	entries, err := e.readEntries(payload)
	if err != nil {
		return nil, err
	}
	if lstater, ok := e.fs.(afero.Lstater); ok {
		for _, ent := range entries {
			if err := checkExistingPath(lstater, dest, ent.name); err != nil {
				return nil, err
			}
		}
	}

	root := afero.NewBasePathFs(e.fs, dest)
	written := map[string]struct{}{}
	for _, ent := range entries {
		target := filepath.FromSlash(ent.name)
		if ent.isDir {
			if err := root.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", ent.name, err)
			}
			continue
		}
		if err := root.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", ent.name, err)
		}
		if err := afero.WriteFile(root, target, ent.data, fileMode(ent.mode)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", ent.name, err)
		}
		written[ent.name] = struct{}{}
	}

	files := make([]string, 0, len(written))
	for name := range written {
		files = append(files, name)
	}
	sort.Strings(files)
	logging.Debug("Extracted %d files from %s into %s", len(files), artifact.Filename, dest)
	return files, nil
}

func (e *Extractor) payload(artifact orchestrator.Artifact) ([]byte, error) {
	if len(artifact.Data) > 0 {
		return artifact.Data, nil
	}
	if artifact.Path == "" {
		return nil, fmt.Errorf("artifact %s has neither a payload nor a local path", artifact.Filename)
	}
	data, err := afero.ReadFile(e.fs, artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", artifact.Path, err)
	}
	return data, nil
}

// readEntries parses and validates the whole archive before returning.
func (e *Extractor) readEntries(payload []byte) ([]entry, error) {
	var reader io.Reader = bytes.NewReader(payload)
	if bytes.HasPrefix(payload, gzipMagic) {
		gz, err := gzip.NewReader(bufio.NewReader(reader))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	var entries []entry
	tarReader := tar.NewReader(reader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}

		name, err := safeName(header.Name)
		if err != nil {
			return nil, err
		}
		if name == "" {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if e.included(name, true) {
				entries = append(entries, entry{name: name, isDir: true})
			}
		case tar.TypeReg:
			if !e.included(name, false) {
				logging.Debug("Skipping %q, not matched by include patterns", name)
				continue
			}
			data, err := io.ReadAll(tarReader)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s from archive: %w", name, err)
			}
			entries = append(entries, entry{name: name, mode: header.Mode, data: data})
		case tar.TypeSymlink, tar.TypeLink:
			if err := checkLinkTarget(name, header); err != nil {
				return nil, err
			}
			logging.Warn("Skipping link %q -> %q, links are not extracted", name, header.Linkname)
		default:
			logging.Debug("Skipping %q with unsupported type %q", name, string(header.Typeflag))
		}
	}
	return entries, nil
}

func (e *Extractor) included(name string, isDir bool) bool {
	if e.include == nil {
		return true
	}
	candidate := name
	if isDir {
		candidate += "/"
	}
	matched, err := e.include.MatchesOrParentMatches(candidate)
	if err != nil {
		logging.Warn("Failed to match %q against include patterns: %v", name, err)
		return false
	}
	return matched
}

// safeName normalises an archive entry name to a slash-separated path
// relative to the extraction root, rejecting anything that could land
// outside it.
func safeName(name string) (string, error) {
	normalized := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(normalized, "/") || filepath.IsAbs(name) || strings.Contains(normalized, "\x00") {
		return "", errors.Wrapf(orchestrator.ErrUnsafeArchiveEntry, "absolute path %q", name)
	}
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return "", errors.Wrapf(orchestrator.ErrUnsafeArchiveEntry, "path traversal in %q", name)
		}
	}
	clean := path.Clean(normalized)
	if clean == "." {
		return "", nil
	}
	return clean, nil
}

func checkLinkTarget(name string, header *tar.Header) error {
	target := strings.ReplaceAll(header.Linkname, `\`, "/")
	if strings.HasPrefix(target, "/") {
		return errors.Wrapf(orchestrator.ErrUnsafeArchiveEntry, "link %q points to absolute path %q", name, header.Linkname)
	}
	if header.Typeflag == tar.TypeSymlink {
		target = path.Join(path.Dir(name), target)
	}
	if clean := path.Clean(target); clean == ".." || strings.HasPrefix(clean, "../") {
		return errors.Wrapf(orchestrator.ErrUnsafeArchiveEntry, "link %q points outside the destination (%q)", name, header.Linkname)
	}
	return nil
}

// checkExistingPath rejects an entry whose path under dest already passes
// through a symlink. BasePathFs only checks names, so writing through such a
// link would land outside dest.
func checkExistingPath(lstater afero.Lstater, dest, name string) error {
	current := dest
	for _, segment := range strings.Split(name, "/") {
		current = filepath.Join(current, segment)
		info, _, err := lstater.LstatIfPossible(current)
		if err != nil {
			// Nothing below a missing component exists yet.
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return errors.Wrapf(orchestrator.ErrUnsafeArchiveEntry, "%q would be written through the symlink %s", name, current)
		}
	}
	return nil
}

func fileMode(mode int64) os.FileMode {
	perm := os.FileMode(mode) & 0o777
	if perm == 0 {
		return 0o644
	}
	return perm | 0o600
}
