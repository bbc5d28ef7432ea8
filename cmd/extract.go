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
	"fmt"
	"path/filepath"

	"devcloud-jobs/pkg/archive"
	"devcloud-jobs/pkg/orchestrator"

	"github.com/spf13/cobra"
)

var extractOnly []string

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringArrayVar(&extractOnly, "only", nil, "Extract only entries matching this pattern (.dockerignore syntax, repeatable).")
}

var extractCmd = &cobra.Command{
	Use:   "extract <artifact-path> <dest-dir>",
	Short: "Unpacks a job's output archive.",
	Long: `The 'extract' command unpacks a tar or gzip-compressed tar archive into the
destination directory and lists the extracted files. The archive is checked
in full before anything is written: entries that are absolute, climb out of
the destination or link outside it abort the extraction.`,
	Args: usageArgs(cobra.ExactArgs(2)),
	RunE: runExtractCmd,
}

func runExtractCmd(cmd *cobra.Command, args []string) error {
	extractor, err := archive.NewExtractor(appFs, extractOnly)
	if err != nil {
		return err
	}
	artifact := orchestrator.Artifact{Filename: filepath.Base(args[0]), Path: args[0]}
	files, err := extractor.Extract(artifact, args[1])
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}
