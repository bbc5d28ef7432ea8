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

// Package config loads dcjob settings from defaults, an optional YAML file
// and DCJOB_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"devcloud-jobs/pkg/artifactstore"
	"devcloud-jobs/pkg/handlestore"
	"devcloud-jobs/pkg/jobs"
	"devcloud-jobs/pkg/orchestrator/pbs"

	"github.com/agext/levenshtein"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	// DefaultFile is read when present and no file is named explicitly.
	DefaultFile = "dcjob.yaml"
	EnvPrefix   = "DCJOB"

	DefaultFetchTimeout = 60 * time.Second
)

// ErrInvalidConfig is returned for malformed or contradictory settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the resolved configuration of a dcjob invocation.
type Config struct {
	Queue       pbs.Options
	Poll        PollConfig
	Fetch       FetchConfig
	Store       artifactstore.Options
	HandlesFile string
}

type PollConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

type FetchConfig struct {
	Timeout time.Duration
	Backoff time.Duration
	Dest    string
}

var defaults = map[string]any{
	"queue.submit_command": "qsub",
	"queue.status_command": "qstat",
	"queue.workdir":        ".",
	"queue.job_name":       "",
	"poll.max_attempts":    jobs.DefaultMaxAttempts,
	"poll.interval":        jobs.DefaultInterval,
	"fetch.timeout":        DefaultFetchTimeout,
	"fetch.backoff":        jobs.DefaultBackoff,
	"fetch.dest":           ".",
	"store.kind":           artifactstore.KindLocal,
	"store.root":           ".",
	"store.path":           artifactstore.DefaultPathTemplate,
	"store.url":            "",
	"handles.file":         handlestore.DefaultPath,
}

// Keys returns every recognised configuration key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewViper returns a viper instance reading from fs with defaults and the
// DCJOB_ environment bound. Callers may bind command flags before Load.
func NewViper(fs afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file into v and resolves the configuration. An empty file
// means DefaultFile, which may be absent.
func Load(v *viper.Viper, fs afero.Fs, file string) (Config, error) {
	explicit := file != ""
	if !explicit {
		file = DefaultFile
	}
	v.SetConfigFile(file)
	v.SetConfigType("yaml")

	found := true
	if _, err := fs.Stat(file); err != nil {
		if !os.IsNotExist(err) || explicit {
			return Config{}, errors.Wrapf(ErrInvalidConfig, "config file %s: %v", file, err)
		}
		found = false
	}
	if found {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(ErrInvalidConfig, "failed to read %s: %v", file, err)
		}
		if err := checkKeys(v); err != nil {
			return Config{}, errors.Wrap(err, file)
		}
	}

	cfg := Config{
		Queue: pbs.Options{
			SubmitCommand: v.GetString("queue.submit_command"),
			StatusCommand: v.GetString("queue.status_command"),
			WorkDir:       v.GetString("queue.workdir"),
			JobName:       v.GetString("queue.job_name"),
		},
		Poll: PollConfig{
			MaxAttempts: v.GetInt("poll.max_attempts"),
			Interval:    v.GetDuration("poll.interval"),
		},
		Fetch: FetchConfig{
			Timeout: v.GetDuration("fetch.timeout"),
			Backoff: v.GetDuration("fetch.backoff"),
			Dest:    v.GetString("fetch.dest"),
		},
		Store: artifactstore.Options{
			Kind:         v.GetString("store.kind"),
			Root:         v.GetString("store.root"),
			PathTemplate: v.GetString("store.path"),
			URLTemplate:  v.GetString("store.url"),
		},
		HandlesFile: v.GetString("handles.file"),
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and cross-field requirements.
func (c Config) Validate() error {
	switch {
	case c.Poll.MaxAttempts < 1:
		return errors.Wrapf(ErrInvalidConfig, "poll.max_attempts must be at least 1, got %d", c.Poll.MaxAttempts)
	case c.Poll.Interval < 0:
		return errors.Wrapf(ErrInvalidConfig, "poll.interval must not be negative, got %s", c.Poll.Interval)
	case c.Fetch.Timeout <= 0:
		return errors.Wrapf(ErrInvalidConfig, "fetch.timeout must be positive, got %s", c.Fetch.Timeout)
	case c.Fetch.Backoff < 0:
		return errors.Wrapf(ErrInvalidConfig, "fetch.backoff must not be negative, got %s", c.Fetch.Backoff)
	case c.Queue.SubmitCommand == "" || c.Queue.StatusCommand == "":
		return errors.Wrap(ErrInvalidConfig, "queue.submit_command and queue.status_command must be set")
	}

	if !slices.Contains(artifactstore.Kinds, c.Store.Kind) {
		msg := fmt.Sprintf("unknown store.kind %q", c.Store.Kind)
		if s, ok := suggest(c.Store.Kind, artifactstore.Kinds); ok {
			msg += fmt.Sprintf(", did you mean %q?", s)
		}
		return errors.Wrap(ErrInvalidConfig, msg)
	}
	if c.Store.Kind == artifactstore.KindGetter && c.Store.URLTemplate == "" {
		return errors.Wrap(ErrInvalidConfig, "store.url is required when store.kind is getter")
	}
	return nil
}

func checkKeys(v *viper.Viper) error {
	known := Keys()
	for _, k := range v.AllKeys() {
		if slices.Contains(known, k) {
			continue
		}
		msg := fmt.Sprintf("unknown setting %q", k)
		if s, ok := suggest(k, known); ok {
			msg += fmt.Sprintf(", did you mean %q?", s)
		}
		return errors.Wrap(ErrInvalidConfig, msg)
	}
	return nil
}

// suggest returns the candidate closest to s within a small edit distance.
func suggest(s string, candidates []string) (string, bool) {
	const maxDistance = 3
	best, bestDist := "", maxDistance+1
	for _, c := range candidates {
		if d := levenshtein.Distance(s, c, nil); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist <= maxDistance
}
