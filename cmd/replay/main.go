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

// Obratech Ingestor — Spreadsheet Replay Command
//
// Standalone CLI tool that feeds saved .xlsx files straight through payload
// building and, optionally, the ETL command — without touching the mailbox.
// Intended for template debugging and re-running failed attachments.
//
// Usage:
//
//	go run ./cmd/replay/ --file seguimiento.xlsx            # print payload JSON
//	go run ./cmd/replay/ --dir ./_tmp --run                 # run ETL per file
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/obratech/ingestor/internal/config"
	"github.com/obratech/ingestor/internal/etl"
	"github.com/obratech/ingestor/internal/sheet"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	fileFlag := flag.String("file", "", "Path to a single .xlsx file")
	dirFlag := flag.String("dir", "", "Directory of .xlsx files to replay")
	runFlag := flag.Bool("run", false, "Run the configured ETL command instead of printing the payload")
	flag.Parse()

	files, err := collectFiles(*fileFlag, *dirFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	var runner *etl.Runner
	if *runFlag {
		cfg, err := config.Load()
		if err != nil {
			slog.Error("failed to load configuration", "error", err)
			os.Exit(1)
		}
		runner = etl.NewRunner(cfg.ETLCommand, cfg.ETLWorkdir, cfg.ETLTimeout)
	}

	ctx := context.Background()
	failed := 0
	for _, fp := range files {
		if err := replay(ctx, fp, runner); err != nil {
			slog.Error("replay failed", "file", fp, "error", err)
			failed++
		}
	}

	slog.Info("replay finished", "files", len(files), "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func replay(ctx context.Context, fp string, runner *etl.Runner) error {
	payload, err := sheet.BuildPayload(fp)
	if err != nil {
		return err
	}

	if runner == nil {
		out, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	res, err := runner.Run(ctx, payload)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("etl exit code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	slog.Info("etl ok", "file", filepath.Base(fp))
	return nil
}

func collectFiles(file, dir string) ([]string, error) {
	switch {
	case file != "" && dir != "":
		return nil, fmt.Errorf("--file and --dir are mutually exclusive")
	case file != "":
		return []string{file}, nil
	case dir != "":
		matches, err := filepath.Glob(filepath.Join(dir, "*.xlsx"))
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no .xlsx files in %s", dir)
		}
		return matches, nil
	default:
		return nil, fmt.Errorf("--file or --dir is required")
	}
}
