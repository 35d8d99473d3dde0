// Copyright (c) 2026 Obratech Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package snapshot invokes the external snapshot command after a
// successful ETL run. The command records a point-in-time state for one
// company/project/month.
package snapshot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/obratech/ingestor/internal/subproc"
)

// Runner invokes the configured snapshot command with the target
// parameters appended as arguments. The argument list is pre-built —
// nothing from the spreadsheet is ever interpolated into code or shell
// text.
type Runner struct {
	argv    []string
	workdir string
	timeout time.Duration
}

// NewRunner creates a snapshot runner.
func NewRunner(argv []string, workdir string, timeout time.Duration) *Runner {
	return &Runner{
		argv:    argv,
		workdir: workdir,
		timeout: timeout,
	}
}

// Run executes the snapshot command as
//
//	<argv...> <company> <project> <year> <month>
//
// with no stdin, reading output to completion bounded by the timeout.
func (r *Runner) Run(ctx context.Context, company, project string, year, month int) (subproc.Result, error) {
	argv := make([]string, 0, len(r.argv)+4)
	argv = append(argv, r.argv...)
	argv = append(argv, company, project, strconv.Itoa(year), strconv.Itoa(month))

	res, err := subproc.Execute(ctx, argv, r.workdir, r.timeout, nil)
	if err != nil {
		return res, err
	}
	if res.TimedOut() && strings.TrimSpace(res.Stderr) == "" {
		res.Stderr = "SNAPSHOT TIMEOUT"
	}
	return res, nil
}
