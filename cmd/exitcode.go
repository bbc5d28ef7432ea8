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

package cmd

import (
	"context"

	"devcloud-jobs/pkg/config"
	"devcloud-jobs/pkg/orchestrator"

	"github.com/pkg/errors"
)

const (
	ExitOK = iota
	ExitInvalidInput
	ExitRemoteFailure
	ExitTimeout

	ExitInterrupted = 130
)

// usageError marks a malformed command line.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }

func (e usageError) Unwrap() error { return e.err }

// ExitCode maps an error returned by a command to the process exit status.
func ExitCode(err error) int {
	var usage usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &usage),
		errors.Is(err, orchestrator.ErrInvalidSpec),
		errors.Is(err, orchestrator.ErrUnsafeArchiveEntry),
		errors.Is(err, config.ErrInvalidConfig):
		return ExitInvalidInput
	case errors.Is(err, orchestrator.ErrFetchTimeout),
		errors.Is(err, orchestrator.ErrNotReady),
		errors.Is(err, orchestrator.ErrPollExhausted),
		errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitRemoteFailure
	}
}
