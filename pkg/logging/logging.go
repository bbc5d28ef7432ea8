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

// Package logging is the printf-style logging facade used across dcjob.
// Messages go to stderr so command output on stdout stays parseable.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	logger = logrus.New()

	errorPrefix = color.New(color.FgRed, color.Bold)
	warnPrefix  = color.New(color.FgYellow, color.Bold)
	debugPrefix = color.New(color.FgCyan)
)

func init() {
	logger.SetFormatter(&prefixFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	SetOutput(os.Stderr)
}

// prefixFormatter prints bare messages, marking only warnings, errors and
// debug output with a (possibly coloured) prefix.
type prefixFormatter struct{}

func (f *prefixFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var buf bytes.Buffer
	switch entry.Level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		buf.WriteString(errorPrefix.Sprint("Error: "))
	case logrus.WarnLevel:
		buf.WriteString(warnPrefix.Sprint("Warning: "))
	case logrus.DebugLevel, logrus.TraceLevel:
		buf.WriteString(debugPrefix.Sprint("Debug: "))
	}
	buf.WriteString(entry.Message)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// SetOutput redirects log output. Colour is enabled only for terminals.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	for _, c := range []*color.Color{errorPrefix, warnPrefix, debugPrefix} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// SetVerbose toggles debug output.
func SetVerbose(verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		return
	}
	logger.SetLevel(logrus.InfoLevel)
}

func Debug(format string, a ...any) {
	logger.Debug(fmt.Sprintf(format, a...))
}

func Info(format string, a ...any) {
	logger.Info(fmt.Sprintf(format, a...))
}

func Warn(format string, a ...any) {
	logger.Warn(fmt.Sprintf(format, a...))
}

func Error(format string, a ...any) {
	logger.Error(fmt.Sprintf(format, a...))
}

// Fatal logs the message and exits with status 1.
func Fatal(format string, a ...any) {
	logger.Fatal(fmt.Sprintf(format, a...))
}
