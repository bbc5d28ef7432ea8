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

package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"devcloud-jobs/pkg/orchestrator"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

type tarEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func buildTar(t *testing.T, gzipped bool, entries ...tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	var gzipWriter *gzip.Writer
	var tarWriter *tar.Writer
	if gzipped {
		gzipWriter = gzip.NewWriter(&buf)
		tarWriter = tar.NewWriter(gzipWriter)
	} else {
		tarWriter = tar.NewWriter(&buf)
	}

	for _, e := range entries {
		typeflag := e.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		header := &tar.Header{Name: e.name, Typeflag: typeflag, Mode: 0o644, Linkname: e.linkname}
		if typeflag == tar.TypeReg {
			header.Size = int64(len(e.body))
		}
		if typeflag == tar.TypeDir {
			header.Mode = 0o755
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			t.Fatalf("failed to write tar header for %q: %v", e.name, err)
		}
		if typeflag == tar.TypeReg {
			if _, err := tarWriter.Write([]byte(e.body)); err != nil {
				t.Fatalf("failed to write tar body for %q: %v", e.name, err)
			}
		}
	}
	if err := tarWriter.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			t.Fatalf("failed to close gzip writer: %v", err)
		}
	}
	return buf.Bytes()
}

func outputArtifact(data []byte) orchestrator.Artifact {
	return orchestrator.Artifact{
		Handle:   orchestrator.JobHandle{ID: "12345.v-qsvr-1"},
		Filename: "output.tgz",
		Data:     data,
	}
}

func newTestExtractor(t *testing.T, fs afero.Fs, include ...string) *Extractor {
	t.Helper()
	e, err := NewExtractor(fs, include)
	if err != nil {
		t.Fatalf("NewExtractor() unexpected error: %v", err)
	}
	return e
}

func assertFile(t *testing.T, fs afero.Fs, path, want string) {
	t.Helper()
	got, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	if string(got) != want {
		t.Errorf("%s = %q, want %q", path, got, want)
	}
}

func TestExtractJobOutput(t *testing.T) {
	for _, gzipped := range []bool{true, false} {
		fs := afero.NewMemMapFs()
		data := buildTar(t, gzipped,
			tarEntry{name: "stdout.log", body: "Time taken to load model on FPGA = 1.2 seconds\n"},
			tarEntry{name: "stderr.log", body: ""},
		)

		files, err := newTestExtractor(t, fs).Extract(outputArtifact(data), "/work/out")
		if err != nil {
			t.Fatalf("Extract(gzipped=%v) unexpected error: %v", gzipped, err)
		}
		if diff := cmp.Diff([]string{"stderr.log", "stdout.log"}, files); diff != "" {
			t.Errorf("extracted files mismatch (-want +got):\n%s", diff)
		}
		assertFile(t, fs, "/work/out/stdout.log", "Time taken to load model on FPGA = 1.2 seconds\n")
		assertFile(t, fs, "/work/out/stderr.log", "")
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := newTestExtractor(t, fs)
	artifact := outputArtifact(buildTar(t, true,
		tarEntry{name: "logs/", typeflag: tar.TypeDir},
		tarEntry{name: "logs/stdout.log", body: "out"},
		tarEntry{name: "./result.txt", body: "42"},
	))

	first, err := e.Extract(artifact, "/work/out")
	if err != nil {
		t.Fatalf("first Extract() unexpected error: %v", err)
	}
	if err := afero.WriteFile(fs, "/work/out/result.txt", []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := e.Extract(artifact, "/work/out")
	if err != nil {
		t.Fatalf("second Extract() unexpected error: %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("re-extraction returned a different file set (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"logs/stdout.log", "result.txt"}, second); diff != "" {
		t.Errorf("extracted files mismatch (-want +got):\n%s", diff)
	}
	assertFile(t, fs, "/work/out/result.txt", "42")
}

func TestExtractRejectsUnsafeEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []tarEntry
	}{
		{
			name:    "parent traversal",
			entries: []tarEntry{{name: "../escape.txt", body: "x"}},
		},
		{
			name: "traversal after a safe entry",
			entries: []tarEntry{
				{name: "stdout.log", body: "ok"},
				{name: "nested/../../escape.txt", body: "x"},
			},
		},
		{
			name:    "absolute path",
			entries: []tarEntry{{name: "/etc/passwd", body: "x"}},
		},
		{
			name:    "symlink out of the destination",
			entries: []tarEntry{{name: "link", typeflag: tar.TypeSymlink, linkname: "../../etc"}},
		},
		{
			name:    "absolute hard link",
			entries: []tarEntry{{name: "link", typeflag: tar.TypeLink, linkname: "/etc/shadow"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			_, err := newTestExtractor(t, fs).Extract(outputArtifact(buildTar(t, true, tt.entries...)), "/work/out")
			if !errors.Is(err, orchestrator.ErrUnsafeArchiveEntry) {
				t.Fatalf("Extract() error = %v, want ErrUnsafeArchiveEntry", err)
			}

			for _, p := range []string{"/work/escape.txt", "/escape.txt", "/work/out/stdout.log", "/etc/passwd"} {
				if ok, _ := afero.Exists(fs, p); ok {
					t.Errorf("%s was written despite the unsafe archive", p)
				}
			}
			entries, err := afero.ReadDir(fs, "/work/out")
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 0 {
				t.Errorf("destination has %d entries after a rejected archive, want 0", len(entries))
			}
		})
	}
}

func TestExtractSkipsLinksInsideDestination(t *testing.T) {
	fs := afero.NewMemMapFs()
	files, err := newTestExtractor(t, fs).Extract(outputArtifact(buildTar(t, false,
		tarEntry{name: "stdout.log", body: "out"},
		tarEntry{name: "latest.log", typeflag: tar.TypeSymlink, linkname: "stdout.log"},
	)), "/work/out")
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"stdout.log"}, files); diff != "" {
		t.Errorf("extracted files mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractIncludePatterns(t *testing.T) {
	archive := buildTar(t, true,
		tarEntry{name: "stdout.log", body: "out"},
		tarEntry{name: "model.xml", body: "<net/>"},
		tarEntry{name: "logs/", typeflag: tar.TypeDir},
		tarEntry{name: "logs/inference.log", body: "fps=30"},
		tarEntry{name: "temp/", typeflag: tar.TypeDir},
		tarEntry{name: "temp/scratch.bin", body: "x"},
	)

	tests := []struct {
		name    string
		include []string
		want    []string
	}{
		{
			name:    "root level only",
			include: []string{"*.log"},
			want:    []string{"stdout.log"},
		},
		{
			name:    "double star",
			include: []string{"**/*.log"},
			want:    []string{"logs/inference.log", "stdout.log"},
		},
		{
			name:    "whole directory",
			include: []string{"logs"},
			want:    []string{"logs/inference.log"},
		},
		{
			name:    "negation",
			include: []string{"*", "!model.xml"},
			want:    []string{"logs/inference.log", "stdout.log", "temp/scratch.bin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			files, err := newTestExtractor(t, fs, tt.include...).Extract(outputArtifact(archive), "/out")
			if err != nil {
				t.Fatalf("Extract() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, files); diff != "" {
				t.Errorf("extracted files mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractFromSavedPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	saved, err := outputArtifact(buildTar(t, true, tarEntry{name: "stdout.log", body: "out"})).Save(fs, "/work")
	if err != nil {
		t.Fatal(err)
	}
	saved.Data = nil

	files, err := newTestExtractor(t, fs).Extract(saved, "/work/out")
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"stdout.log"}, files); diff != "" {
		t.Errorf("extracted files mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := newTestExtractor(t, fs)

	if _, err := e.Extract(orchestrator.Artifact{Filename: "output.tgz"}, "/out"); err == nil {
		t.Errorf("expected error for artifact without payload or path")
	}
	if _, err := e.Extract(outputArtifact([]byte{0x1f, 0x8b, 0x00}), "/out"); err == nil {
		t.Errorf("expected error for corrupt gzip data")
	}
	if err := afero.WriteFile(fs, "/file", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Extract(outputArtifact(buildTar(t, false, tarEntry{name: "a", body: "b"})), "/file"); err == nil {
		t.Errorf("expected error when destination is a file")
	}
	if _, err := NewExtractor(fs, []string{"[invalid"}); err == nil {
		t.Errorf("expected error for malformed include pattern")
	}
}

func TestExtractRejectsWritesThroughExistingSymlinks(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dest, outside string)
		entry string
	}{
		{
			name: "symlinked directory",
			setup: func(t *testing.T, dest, outside string) {
				if err := os.Symlink(outside, filepath.Join(dest, "out")); err != nil {
					t.Fatal(err)
				}
			},
			entry: "out/x",
		},
		{
			name: "symlinked file",
			setup: func(t *testing.T, dest, outside string) {
				target := filepath.Join(outside, "x")
				if err := os.WriteFile(target, []byte("keep"), 0o644); err != nil {
					t.Fatal(err)
				}
				if err := os.Symlink(target, filepath.Join(dest, "stderr.log")); err != nil {
					t.Fatal(err)
				}
			},
			entry: "stderr.log",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dest, outside := t.TempDir(), t.TempDir()
			tc.setup(t, dest, outside)
			data := buildTar(t, true,
				tarEntry{name: "stdout.log", body: "done\n"},
				tarEntry{name: tc.entry, body: "overwritten"},
			)

			_, err := newTestExtractor(t, afero.NewOsFs()).Extract(outputArtifact(data), dest)
			if !errors.Is(err, orchestrator.ErrUnsafeArchiveEntry) {
				t.Fatalf("Extract() error = %v, want ErrUnsafeArchiveEntry", err)
			}
			if _, err := os.Stat(filepath.Join(dest, "stdout.log")); !os.IsNotExist(err) {
				t.Errorf("stdout.log should not be written when the archive is rejected")
			}
			if got, err := os.ReadFile(filepath.Join(outside, "x")); err == nil && string(got) == "overwritten" {
				t.Errorf("entry was written outside the destination")
			}
		})
	}
}
