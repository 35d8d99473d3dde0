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

// Obratech Ingestor — Mail-to-ETL Service
//
// Entry point for the ingestor service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to Redis for message deduplication (optional)
//  3. Builds the mailbox provider (Microsoft Graph or IMAP)
//  4. Wires the payload builder, ETL and snapshot runners into the use case
//  5. Runs the polling loop until shutdown
//  6. Serves a health check endpoint
//  7. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/obratech/ingestor/internal/config"
	"github.com/obratech/ingestor/internal/controller"
	"github.com/obratech/ingestor/internal/dedup"
	"github.com/obratech/ingestor/internal/etl"
	"github.com/obratech/ingestor/internal/graphmail"
	"github.com/obratech/ingestor/internal/imapmail"
	"github.com/obratech/ingestor/internal/sheet"
	"github.com/obratech/ingestor/internal/snapshot"
	"github.com/obratech/ingestor/internal/storage"
	"github.com/obratech/ingestor/internal/usecase"
)

func main() {
	// Structured JSON logging
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(logHandler))

	slog.Info("starting Obratech ingestor service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"provider", cfg.Provider,
		"poll_interval", cfg.PollInterval,
		"snapshot_enabled", cfg.SnapshotEnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Dedup Filter (optional) ---
	var filter *dedup.Filter
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid redis URL", "error", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		filter = dedup.NewFilter(rdb)
		if err := filter.Ping(ctx); err != nil {
			slog.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to Redis")
	} else {
		slog.Warn("no redis URL configured, running without message dedup")
	}

	// --- Mailbox Provider ---
	mailbox, err := buildMailbox(ctx, cfg)
	if err != nil {
		slog.Error("failed to build mailbox provider", "error", err)
		os.Exit(1)
	}

	// --- Attachment Storage ---
	tmp, err := storage.NewTemp(cfg.TempDir)
	if err != nil {
		slog.Error("failed to initialise attachment storage", "error", err)
		os.Exit(1)
	}

	// --- Use Case ---
	uc := usecase.New(
		usecase.Config{
			AllowedSenders:  cfg.AllowedSenders,
			SubjectFilters:  cfg.SubjectFilters,
			AllowedExts:     cfg.AttachmentExts,
			SnapshotEnabled: cfg.SnapshotEnabled,
		},
		sheet.BuildPayload,
		etl.NewRunner(cfg.ETLCommand, cfg.ETLWorkdir, cfg.ETLTimeout),
		snapshot.NewRunner(cfg.SnapshotCommand, cfg.SnapshotWorkdir, cfg.SnapshotTimeout),
	)

	// --- Poller ---
	var deduper controller.Deduper
	if filter != nil {
		deduper = filter
	}
	poller := controller.NewPoller(controller.Options{
		Mailbox: mailbox,
		UseCase: uc,
		Saver:   tmp,
		Dedup:   deduper,
		Folders: controller.Folders{
			Processed:    cfg.Folders.Processed,
			NotProcessed: cfg.Folders.NotProcessed,
			Error:        cfg.Folders.Error,
		},
		Interval:     cfg.PollInterval,
		MaxPerLoop:   cfg.MaxMailsPerLoop,
		NotifySender: cfg.NotifySender,
		LogRecipient: cfg.LogRecipient,
		Log:          logHandler,
	})

	go poller.Run(ctx)

	// --- Health Check Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if filter != nil {
			if err := filter.Ping(r.Context()); err != nil {
				http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		cancel() // Stop the polling loop

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		if rdb != nil {
			rdb.Close()
		}
	}()

	slog.Info("ingestor service listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("ingestor service stopped")
}

// buildMailbox constructs the configured mailbox provider.
func buildMailbox(ctx context.Context, cfg *config.Config) (controller.Mailbox, error) {
	switch cfg.Provider {
	case "graph":
		creds := &clientcredentials.Config{
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.Graph.TenantID),
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		}
		return graphmail.NewClient(creds.Client(ctx), cfg.Graph.BaseURL, cfg.Graph.UserID, cfg.Folders.Inbox), nil
	case "imap":
		return imapmail.NewClient(imapmail.Config{
			Host:     cfg.IMAP.Host,
			Port:     cfg.IMAP.Port,
			Username: cfg.IMAP.Username,
			Password: cfg.IMAP.Password,
			TLS:      cfg.IMAP.TLS,
			Inbox:    cfg.Folders.Inbox,
			SMTPHost: cfg.IMAP.SMTPHost,
			SMTPPort: cfg.IMAP.SMTPPort,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
