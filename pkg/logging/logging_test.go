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

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetVerbose(false)
	})
	return &buf
}

func TestPrefixes(t *testing.T) {
	buf := captureOutput(t)

	Info("submitted %s", "12345.v-qsvr-1")
	Warn("attempt %d failed", 3)
	Error("boom")

	want := "submitted 12345.v-qsvr-1\nWarning: attempt 3 failed\nError: boom\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected log output:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestDebugRequiresVerbose(t *testing.T) {
	buf := captureOutput(t)

	Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no debug output by default, got %q", buf.String())
	}

	SetVerbose(true)
	Debug("shown %d", 1)
	if !strings.Contains(buf.String(), "Debug: shown 1") {
		t.Errorf("expected debug output once verbose, got %q", buf.String())
	}
}
