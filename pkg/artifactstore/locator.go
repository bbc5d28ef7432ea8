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

// Package artifactstore provides the artifact-retrieval side of a queue:
// where a finished job's output files can be read from.
package artifactstore

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// DefaultPathTemplate places artifacts directly in the store root, which is
// where DevCloud leaves a job's output when it runs with qsub -d.
const DefaultPathTemplate = "{{.Filename}}"

// Location parameterises a path or URL template.
type Location struct {
	JobID string
	// JobNumber is the numeric prefix of JobID ("12345" for
	// "12345.v-qsvr-1").
	JobNumber string
	Filename  string
}

// Locator renders artifact locations from a Go template.
type Locator struct {
	tmpl *template.Template
}

// NewLocator parses text as a template over Location.
func NewLocator(text string) (*Locator, error) {
	if text == "" {
		text = DefaultPathTemplate
	}
	tmpl, err := template.New("location").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse artifact location template %q: %w", text, err)
	}
	return &Locator{tmpl: tmpl}, nil
}

// Render returns the location of filename for jobID.
func (l *Locator) Render(jobID, filename string) (string, error) {
	number, _, _ := strings.Cut(jobID, ".")
	var buf bytes.Buffer
	if err := l.tmpl.Execute(&buf, Location{JobID: jobID, JobNumber: number, Filename: filename}); err != nil {
		return "", fmt.Errorf("failed to render artifact location for job %s: %w", jobID, err)
	}
	return buf.String(), nil
}
