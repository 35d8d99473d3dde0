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

// Package runlog buffers the log transcript of one message's processing so
// the poller can attach it to a notification mail afterwards.
package runlog

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
)

// Capture collects log records into an in-memory buffer through a slog
// handler. Use Tee to keep records flowing to the service log as well.
type Capture struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	handler slog.Handler
}

// NewCapture creates a capture recording records at or above level.
func NewCapture(level slog.Level) *Capture {
	c := &Capture{}
	c.handler = slog.NewTextHandler(&lockedWriter{c: c}, &slog.HandlerOptions{
		Level: level,
	})
	return c
}

// Handler returns the slog handler feeding this capture.
func (c *Capture) Handler() slog.Handler {
	return c.handler
}

// Text returns the transcript collected so far.
func (c *Capture) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

type lockedWriter struct {
	c *Capture
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	return w.c.buf.Write(p)
}

// Tee fans every record out to both handlers.
func Tee(a, b slog.Handler) slog.Handler {
	return teeHandler{a: a, b: b}
}

type teeHandler struct {
	a, b slog.Handler
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return t.a.Enabled(ctx, level) || t.b.Enabled(ctx, level)
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	if t.a.Enabled(ctx, r.Level) {
		firstErr = t.a.Handle(ctx, r.Clone())
	}
	if t.b.Enabled(ctx, r.Level) {
		if err := t.b.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{a: t.a.WithAttrs(attrs), b: t.b.WithAttrs(attrs)}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{a: t.a.WithGroup(name), b: t.b.WithGroup(name)}
}
