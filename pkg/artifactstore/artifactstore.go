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
	"fmt"

	"devcloud-jobs/pkg/orchestrator"

	"github.com/spf13/afero"
)

const (
	KindLocal  = "local"
	KindGetter = "getter"
)

// Kinds lists the supported store kinds.
var Kinds = []string{KindLocal, KindGetter}

// Options selects and configures a store.
type Options struct {
	Kind string
	// Root and PathTemplate configure a local store.
	Root         string
	PathTemplate string
	// URLTemplate configures a getter store.
	URLTemplate string
}

// New builds the store described by opts. fs backs local stores.
func New(opts Options, fs afero.Fs) (orchestrator.ArtifactStore, error) {
	switch opts.Kind {
	case KindLocal, "":
		return NewLocalStore(fs, opts.Root, opts.PathTemplate)
	case KindGetter:
		return NewGetterStore(opts.URLTemplate)
	default:
		return nil, fmt.Errorf("unknown artifact store kind %q", opts.Kind)
	}
}
