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

// Package shell runs external commands and captures their output.
package shell

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os/exec"
	"strings"
	"time"

	"devcloud-jobs/pkg/logging"
)

// CommandResult holds the outcome of a finished command. ExitCode is -1 when
// the command could not be started or was killed by its context.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Command is a single external command invocation.
type Command struct {
	name string
	args []string
	dir  string
}

// NewCommand prepares a command without running it.
func NewCommand(name string, args ...string) *Command {
	return &Command{name: name, args: args}
}

// SetDir sets the working directory of the command.
func (c *Command) SetDir(dir string) {
	c.dir = dir
}

// String renders the command line for logs.
func (c *Command) String() string {
	return strings.Join(append([]string{c.name}, c.args...), " ")
}

// ExecuteContext runs the command, killing it if ctx is done first.
func (c *Command) ExecuteContext(ctx context.Context) CommandResult {
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	if c.dir != "" {
		cmd.Dir = c.dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug("Executing: %s", c.String())
	err := cmd.Run()
	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		res.ExitCode = exitErr.ExitCode()
		return res
	}
	res.ExitCode = -1
	if res.Stderr == "" {
		res.Stderr = err.Error()
	}
	return res
}

// RandomString returns a lowercase alphanumeric string of the given length.
func RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	return string(b)
}
