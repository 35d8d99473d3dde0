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

// Package etl invokes the external ETL command with the payload serialised
// as JSON on its standard input.
package etl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/obratech/ingestor/internal/models"
	"github.com/obratech/ingestor/internal/subproc"
)

// utf8BOM prefixes the payload for the legacy reader on the ETL side,
// which only accepts BOM-marked input.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Runner invokes the configured ETL command.
type Runner struct {
	argv    []string
	workdir string
	timeout time.Duration
}

// NewRunner creates an ETL runner. argv is the full command line split
// into parts; a zero timeout disables the bound.
func NewRunner(argv []string, workdir string, timeout time.Duration) *Runner {
	return &Runner{
		argv:    argv,
		workdir: workdir,
		timeout: timeout,
	}
}

// Run serialises the payload as BOM-prefixed UTF-8 JSON, writes it to the
// command's stdin and waits for exit. Exit code 0 means the ETL accepted
// the payload; on timeout the result carries subproc.TimeoutExitCode and a
// non-empty stderr. Non-zero exits are classification data, not errors.
func (r *Runner) Run(ctx context.Context, payload *models.Payload) (subproc.Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return subproc.Result{}, fmt.Errorf("marshal payload: %w", err)
	}

	stdin := bytes.NewReader(append(append([]byte{}, utf8BOM...), body...))

	res, err := subproc.Execute(ctx, r.argv, r.workdir, r.timeout, stdin)
	if err != nil {
		return res, fmt.Errorf("etl command: %w", err)
	}
	if res.TimedOut() && strings.TrimSpace(res.Stderr) == "" {
		res.Stderr = "ETL TIMEOUT"
	}
	return res, nil
}
