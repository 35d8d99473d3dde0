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

// Package subproc runs external commands with bounded lifetimes. It is the
// shared primitive under the ETL and snapshot runners: non-zero exits come
// back as data, timeouts kill the process and come back as a sentinel exit
// code rather than a hang.
package subproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// TimeoutExitCode is reported when the command is killed on deadline.
// Matches the convention of coreutils timeout(1).
const TimeoutExitCode = 124

// Result captures one finished command invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// TimedOut reports whether the invocation was killed on deadline.
func (r Result) TimedOut() bool {
	return r.ExitCode == TimeoutExitCode
}

// Execute runs argv in workdir, feeding stdin (may be nil) and capturing
// stdout and stderr to completion. A timeout of zero means no bound.
// Non-zero exits are not errors; an error is returned only when the
// command could not be run at all.
func Execute(ctx context.Context, argv []string, workdir string, timeout time.Duration, stdin io.Reader) (Result, error) {
	if len(argv) == 0 {
		return Result{}, errors.New("empty command")
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = workdir
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	// Deadline expiry wins over the kill-induced exit error.
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.ExitCode = TimeoutExitCode
		return res, nil
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("run %s: %w", argv[0], err)
}
