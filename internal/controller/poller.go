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

// Package controller runs the polling loop and maps processing outcomes to
// mailbox effects: folder routing, sender notification and run-log mail.
// The use case decides; the controller acts.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/obratech/ingestor/internal/models"
	"github.com/obratech/ingestor/internal/runlog"
	"github.com/obratech/ingestor/internal/usecase"
)

// Mailbox is the provider surface the poller needs. Implemented by
// graphmail.Client and imapmail.Client.
type Mailbox interface {
	ListUnread(ctx context.Context, limit int) ([]models.MailItem, error)
	Attachments(ctx context.Context, messageID string) ([]models.Attachment, error)
	Move(ctx context.Context, messageID, folderPath string) error
	Send(ctx context.Context, msg models.OutgoingMail) error
}

// Deduper guards against re-dispatching a message whose folder move failed
// in a previous poll.
type Deduper interface {
	IsNew(ctx context.Context, messageID string) (bool, error)
}

// Folders names the destination folder per outcome.
type Folders struct {
	Processed    string
	NotProcessed string
	Error        string
}

// Options wires a Poller.
type Options struct {
	Mailbox    Mailbox
	UseCase    *usecase.ProcessMailUseCase
	Saver      usecase.AttachmentSaver
	Dedup      Deduper // nil disables deduplication
	Folders    Folders
	Interval   time.Duration
	MaxPerLoop int

	// NotifySender replies to the original sender after a processed
	// message, using the first parsed header's project and date.
	NotifySender bool
	// LogRecipient receives the run transcript of every message,
	// whatever the outcome. Empty disables transcript mail.
	LogRecipient string

	// Log is the service's base log handler, teed with the per-message
	// capture while a message is processed. Must not be the stock slog
	// default: that handler writes through the log package, and routing
	// it back into slog re-enters the log mutex. Nil gets a standalone
	// stderr handler.
	Log slog.Handler
}

// Poller drains the inbox one message at a time. Messages are handled in
// list order; one message is fully processed before the next is touched.
type Poller struct {
	opts Options
}

// NewPoller creates a poller.
func NewPoller(opts Options) *Poller {
	if opts.Log == nil {
		opts.Log = slog.NewTextHandler(os.Stderr, nil)
	}
	return &Poller{opts: opts}
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("mail poller starting",
		"interval", p.opts.Interval,
		"max_per_loop", p.opts.MaxPerLoop,
	)

	// Do an initial poll immediately
	p.runOnce(ctx)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("mail poller stopping")
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

// RunOnce performs a single poll cycle.
func (p *Poller) RunOnce(ctx context.Context) error {
	return p.runOnce(ctx)
}

func (p *Poller) runOnce(ctx context.Context) error {
	items, err := p.opts.Mailbox.ListUnread(ctx, p.opts.MaxPerLoop)
	if err != nil {
		slog.Error("failed to list messages", "error", err)
		return err
	}
	if len(items) == 0 {
		slog.Debug("no new messages")
		return nil
	}

	slog.Info("processing messages", "count", len(items))
	for _, item := range items {
		if p.opts.Dedup != nil {
			isNew, err := p.opts.Dedup.IsNew(ctx, item.ID)
			if err != nil {
				// Dedup is a guard, not a gate: on Redis trouble we
				// prefer a possible duplicate run over dropping mail.
				slog.Warn("dedup check failed, processing anyway", "error", err)
			} else if !isNew {
				slog.Info("skipping already dispatched message", "subject", item.Subject)
				continue
			}
		}
		p.processOne(ctx, item)
	}
	return nil
}

// processOne fetches attachments, runs the use case under a log capture,
// routes the message and sends notifications. Every failure is contained
// to this message.
func (p *Poller) processOne(ctx context.Context, item models.MailItem) {
	capture := runlog.NewCapture(slog.LevelInfo)
	prev := slog.Default()
	// Single orchestrator invocation in flight system-wide, so swapping
	// the default logger for the duration of one message is safe.
	slog.SetDefault(slog.New(runlog.Tee(p.opts.Log, capture.Handler())))
	result := p.process(ctx, item)
	slog.SetDefault(prev)

	dest := p.folderFor(result.Outcome)
	if err := p.opts.Mailbox.Move(ctx, item.ID, dest); err != nil {
		slog.Error("failed to move message",
			"subject", item.Subject,
			"dest", dest,
			"error", err,
		)
	} else {
		slog.Info("message routed", "subject", item.Subject, "outcome", result.Outcome, "dest", dest)
	}

	if result.Outcome == models.OutcomeProcessed && p.opts.NotifySender && item.From != "" {
		p.notifySender(ctx, item, result)
	}
	if p.opts.LogRecipient != "" {
		p.sendTranscript(ctx, item, result, capture.Text())
	}
}

func (p *Poller) process(ctx context.Context, item models.MailItem) models.ProcessingResult {
	atts, err := p.opts.Mailbox.Attachments(ctx, item.ID)
	if err != nil {
		slog.Error("failed to fetch attachments", "subject", item.Subject, "error", err)
		return models.ProcessingResult{Outcome: models.OutcomeError, Headers: []models.Header{}}
	}
	item.Attachments = atts

	return p.opts.UseCase.ProcessMail(ctx, item, p.opts.Saver)
}

func (p *Poller) folderFor(outcome models.Outcome) string {
	switch outcome {
	case models.OutcomeProcessed:
		return p.opts.Folders.Processed
	case models.OutcomeNotProcessed:
		return p.opts.Folders.NotProcessed
	default:
		return p.opts.Folders.Error
	}
}

// notifySender confirms a fully processed message to its sender with the
// first recorded header's project and tracking date.
func (p *Poller) notifySender(ctx context.Context, item models.MailItem, result models.ProcessingResult) {
	var body string
	if len(result.Headers) > 0 {
		h := result.Headers[0]
		body = fmt.Sprintf("El seguimiento de %s (%s) se ha procesado correctamente.",
			h.Proyecto, h.FechaSeguimiento)
	} else {
		body = "El seguimiento se ha procesado correctamente."
	}

	msg := models.OutgoingMail{
		To:      item.From,
		Subject: "Re: " + item.Subject,
		Body:    body,
	}
	if err := p.opts.Mailbox.Send(ctx, msg); err != nil {
		slog.Error("failed to notify sender", "to", item.From, "error", err)
	}
}

// sendTranscript mails the run log of one message to the operations
// address, attached as a plain text file.
func (p *Poller) sendTranscript(ctx context.Context, item models.MailItem, result models.ProcessingResult, transcript string) {
	if strings.TrimSpace(transcript) == "" {
		return
	}

	msg := models.OutgoingMail{
		To:      p.opts.LogRecipient,
		Subject: fmt.Sprintf("[ingestor] %s: %s", result.Outcome, item.Subject),
		Body:    "Run log attached.",
		Attachments: []models.Attachment{{
			Filename:    "run.log",
			Content:     []byte(transcript),
			ContentType: "text/plain",
		}},
	}
	if err := p.opts.Mailbox.Send(ctx, msg); err != nil {
		slog.Error("failed to mail run transcript", "to", p.opts.LogRecipient, "error", err)
	}
}
