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

// Package usecase holds the mail processing orchestration: filtering,
// per-attachment payload building, ETL dispatch, conditional snapshot
// dispatch and outcome classification. It performs no mailbox side
// effects itself — it only returns data the caller acts on.
package usecase

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/obratech/ingestor/internal/models"
	"github.com/obratech/ingestor/internal/subproc"
	"github.com/obratech/ingestor/internal/transform"
)

// AttachmentSaver persists attachment bytes and returns a file reference.
// The destination is unique per call regardless of name collisions.
type AttachmentSaver interface {
	Save(nameHint string, data []byte) (string, error)
}

// ETLRunner runs the external ETL command with a payload.
type ETLRunner interface {
	Run(ctx context.Context, payload *models.Payload) (subproc.Result, error)
}

// SnapshotRunner runs the external snapshot command for one
// company/project/month.
type SnapshotRunner interface {
	Run(ctx context.Context, company, project string, year, month int) (subproc.Result, error)
}

// PayloadBuilder builds the ETL payload from a persisted spreadsheet.
type PayloadBuilder func(filePath string) (*models.Payload, error)

// Config carries the filter and dispatch policy for the use case.
type Config struct {
	// AllowedSenders are glob patterns matched case-insensitively against
	// the sender address. Empty means every sender passes.
	AllowedSenders []string
	// SubjectFilters are substrings matched case-insensitively against
	// the subject. Empty means every subject passes.
	SubjectFilters []string
	// AllowedExts is the attachment filename extension whitelist,
	// lowercase with leading dot (".xlsx").
	AllowedExts []string
	// SnapshotEnabled turns on snapshot dispatch after successful ETL runs.
	SnapshotEnabled bool
}

// ProcessMailUseCase orchestrates the processing of one inbound message.
// At most one invocation is in flight system-wide; the struct holds no
// mutable state across calls.
type ProcessMailUseCase struct {
	cfg      Config
	build    PayloadBuilder
	etl      ETLRunner
	snapshot SnapshotRunner
}

// New wires the use case with its injected collaborators. Subject filters
// and extensions are normalised to lowercase here, once; the caller's
// slices are left untouched.
func New(cfg Config, build PayloadBuilder, etl ETLRunner, snapshot SnapshotRunner) *ProcessMailUseCase {
	cfg.SubjectFilters = lowered(cfg.SubjectFilters)
	cfg.AllowedExts = lowered(cfg.AllowedExts)
	return &ProcessMailUseCase{
		cfg:      cfg,
		build:    build,
		etl:      etl,
		snapshot: snapshot,
	}
}

// ProcessMail runs the gates and the per-attachment loop for one message.
// Gates short-circuit to not_processed; once at least one qualifying
// attachment exists, any failure anywhere yields error, never
// not_processed. The returned header list grows with every successfully
// parsed attachment even when later steps fail.
func (u *ProcessMailUseCase) ProcessMail(ctx context.Context, mail models.MailItem, saver AttachmentSaver) models.ProcessingResult {
	result := models.ProcessingResult{
		Outcome: models.OutcomeNotProcessed,
		Headers: []models.Header{},
	}

	if !u.senderOK(mail.From) {
		slog.Info("not processed: sender not allowed", "from", mail.From)
		return result
	}

	if !u.subjectOK(mail.Subject) {
		slog.Info("not processed: subject does not match", "subject", mail.Subject)
		return result
	}

	type savedFile struct {
		name string
		path string
	}
	var files []savedFile
	allOK := true
	for _, att := range mail.Attachments {
		if !u.extOK(att.Filename) {
			continue
		}
		fp, err := saver.Save(att.Filename, att.Content)
		if err != nil {
			// A qualifying attachment we could not even persist counts as
			// a processing failure, not a gate rejection.
			slog.Error("failed to persist attachment", "file", att.Filename, "error", err)
			allOK = false
			continue
		}
		files = append(files, savedFile{name: att.Filename, path: fp})
	}

	if len(files) == 0 && allOK {
		slog.Info("not processed: no qualifying attachments")
		return result
	}

	for _, f := range files {
		if !u.processAttachment(ctx, f.name, f.path, &result.Headers) {
			allOK = false
		}
	}

	if allOK {
		result.Outcome = models.OutcomeProcessed
	} else {
		result.Outcome = models.OutcomeError
	}
	return result
}

// processAttachment takes one persisted spreadsheet through payload
// building, ETL and optional snapshot. Returns false on any failure;
// failures never abort the remaining attachments.
func (u *ProcessMailUseCase) processAttachment(ctx context.Context, name, filePath string, headers *[]models.Header) bool {
	payload, err := u.build(filePath)
	if err != nil {
		slog.Error("payload build failed", "file", name, "error", err)
		return false
	}
	// Recorded before ETL so the caller can report partial progress even
	// when a later step fails.
	*headers = append(*headers, payload.Payload.Header)

	res, err := u.etl.Run(ctx, payload)
	if err != nil {
		slog.Error("etl invocation failed", "file", name, "error", err)
		return false
	}
	if res.ExitCode != 0 {
		slog.Error("etl failed",
			"file", name,
			"exit_code", res.ExitCode,
			"stderr", strings.TrimSpace(res.Stderr),
		)
		// Never snapshot after a failed ETL run.
		return false
	}
	slog.Info("etl ok", "file", name, "stdout", firstLine(res.Stdout))

	if !u.cfg.SnapshotEnabled {
		return true
	}
	return u.runSnapshot(ctx, name, payload.Payload.Header)
}

func (u *ProcessMailUseCase) runSnapshot(ctx context.Context, name string, h models.Header) bool {
	company := strings.TrimSpace(h.Empresa)
	project := strings.TrimSpace(h.Proyecto)
	year, month, ok := transform.YearMonth(h.FechaSeguimiento)
	if company == "" || project == "" || !ok {
		slog.Error("snapshot skipped: header incomplete",
			"file", name,
			"empresa", company,
			"proyecto", project,
			"fecha_seguimiento", h.FechaSeguimiento,
		)
		return false
	}

	res, err := u.snapshot.Run(ctx, company, project, year, month)
	if err != nil {
		slog.Error("snapshot invocation failed", "file", name, "error", err)
		return false
	}
	if res.ExitCode != 0 {
		slog.Error("snapshot failed",
			"file", name,
			"exit_code", res.ExitCode,
			"stderr", strings.TrimSpace(res.Stderr),
		)
		return false
	}
	slog.Info("snapshot ok",
		"file", name,
		"empresa", company,
		"proyecto", project,
		"year", year,
		"month", month,
	)
	return true
}

func (u *ProcessMailUseCase) senderOK(from string) bool {
	if len(u.cfg.AllowedSenders) == 0 {
		return true
	}
	f := strings.ToLower(strings.TrimSpace(from))
	for _, pat := range u.cfg.AllowedSenders {
		if ok, err := path.Match(strings.ToLower(pat), f); err == nil && ok {
			return true
		}
	}
	return false
}

func (u *ProcessMailUseCase) subjectOK(subject string) bool {
	if len(u.cfg.SubjectFilters) == 0 {
		return true
	}
	s := strings.ToLower(subject)
	for _, token := range u.cfg.SubjectFilters {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

func (u *ProcessMailUseCase) extOK(filename string) bool {
	name := strings.ToLower(filename)
	for _, ext := range u.cfg.AllowedExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func lowered(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
