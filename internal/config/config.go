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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GraphConfig holds Microsoft Graph credentials for the mailbox.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	UserID       string
	BaseURL      string
}

// IMAPConfig holds the IMAP/SMTP endpoint for the fallback provider.
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
	SMTPHost string
	SMTPPort int
}

// FoldersConfig names the mailbox folders the poller routes into.
type FoldersConfig struct {
	Inbox        string
	Processed    string
	NotProcessed string
	Error        string
}

// Config holds all configuration for the ingestor service.
type Config struct {
	Provider string // "graph" or "imap"
	Graph    GraphConfig
	IMAP     IMAPConfig
	Folders  FoldersConfig

	// Filters
	AllowedSenders []string
	SubjectFilters []string
	AttachmentExts []string

	// ETL
	ETLCommand []string
	ETLWorkdir string
	ETLTimeout time.Duration

	// Snapshot
	SnapshotEnabled bool
	SnapshotCommand []string
	SnapshotWorkdir string
	SnapshotTimeout time.Duration

	// Notifications
	NotifySender bool
	LogRecipient string

	// Infrastructure
	TempDir  string
	RedisURL string

	// Polling
	PollInterval    time.Duration
	MaxMailsPerLoop int

	// Server (health check only)
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Provider string `yaml:"provider"`
	Graph    struct {
		TenantID     string `yaml:"tenant_id"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		UserID       string `yaml:"user_id"`
		BaseURL      string `yaml:"base_url"`
	} `yaml:"graph"`
	IMAP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		TLS      *bool  `yaml:"tls"`
		SMTPHost string `yaml:"smtp_host"`
		SMTPPort int    `yaml:"smtp_port"`
	} `yaml:"imap"`
	Folders struct {
		Inbox        string `yaml:"inbox"`
		Processed    string `yaml:"processed"`
		NotProcessed string `yaml:"not_processed"`
		Error        string `yaml:"error"`
	} `yaml:"folders"`
	Filters struct {
		AllowedSenders  string `yaml:"allowed_senders"`
		SubjectContains string `yaml:"subject_contains"`
		AttachmentExts  string `yaml:"attachment_exts"`
	} `yaml:"filters"`
	ETL struct {
		Command string `yaml:"command"`
		Workdir string `yaml:"workdir"`
		Timeout string `yaml:"timeout"`
	} `yaml:"etl"`
	Snapshot struct {
		Enabled bool   `yaml:"enabled"`
		Command string `yaml:"command"`
		Workdir string `yaml:"workdir"`
		Timeout string `yaml:"timeout"`
	} `yaml:"snapshot"`
	Notify struct {
		SenderOnProcessed bool   `yaml:"sender_on_processed"`
		LogRecipient      string `yaml:"log_recipient"`
	} `yaml:"notify"`
	TempDir string `yaml:"temp_dir"`
	Redis   struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		Provider: strings.ToLower(firstNonEmpty(raw.Provider, "graph")),
		Graph: GraphConfig{
			TenantID:     raw.Graph.TenantID,
			ClientID:     raw.Graph.ClientID,
			ClientSecret: raw.Graph.ClientSecret,
			UserID:       raw.Graph.UserID,
			BaseURL:      firstNonEmpty(raw.Graph.BaseURL, "https://graph.microsoft.com/v1.0"),
		},
		IMAP: IMAPConfig{
			Host:     firstNonEmpty(raw.IMAP.Host, "outlook.office365.com"),
			Port:     intOrDefault(raw.IMAP.Port, 993),
			Username: raw.IMAP.Username,
			Password: raw.IMAP.Password,
			TLS:      raw.IMAP.TLS == nil || *raw.IMAP.TLS,
			SMTPHost: firstNonEmpty(raw.IMAP.SMTPHost, "smtp.office365.com"),
			SMTPPort: intOrDefault(raw.IMAP.SMTPPort, 587),
		},
		Folders: FoldersConfig{
			Inbox:        firstNonEmpty(raw.Folders.Inbox, "Inbox"),
			Processed:    firstNonEmpty(raw.Folders.Processed, "Inbox/Procesados"),
			NotProcessed: firstNonEmpty(raw.Folders.NotProcessed, "Inbox/Not_Processed"),
			Error:        firstNonEmpty(raw.Folders.Error, "Inbox/Errores"),
		},
		AllowedSenders: splitList(raw.Filters.AllowedSenders),
		SubjectFilters: splitList(raw.Filters.SubjectContains),
		AttachmentExts: splitList(firstNonEmpty(raw.Filters.AttachmentExts, ".xlsx")),

		ETLCommand: strings.Fields(raw.ETL.Command),
		ETLWorkdir: raw.ETL.Workdir,
		ETLTimeout: durationOrDefault(raw.ETL.Timeout, 15*time.Minute),

		SnapshotEnabled: raw.Snapshot.Enabled,
		SnapshotCommand: strings.Fields(raw.Snapshot.Command),
		SnapshotWorkdir: raw.Snapshot.Workdir,
		SnapshotTimeout: durationOrDefault(raw.Snapshot.Timeout, 15*time.Minute),

		NotifySender: raw.Notify.SenderOnProcessed,
		LogRecipient: raw.Notify.LogRecipient,

		TempDir:  firstNonEmpty(raw.TempDir, "./_tmp"),
		RedisURL: firstNonEmpty(raw.Redis.URL, os.Getenv("REDIS_URL")),

		PollInterval:    envOrDefaultDuration("POLL_INTERVAL", 30*time.Second),
		MaxMailsPerLoop: envOrDefaultInt("MAX_MAILS_PER_LOOP", 20),
		Port:            envOrDefaultInt("PORT", 8080),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Provider {
	case "graph":
		if c.Graph.TenantID == "" || c.Graph.ClientID == "" || c.Graph.ClientSecret == "" || c.Graph.UserID == "" {
			return fmt.Errorf("provider is graph but graph credentials are incomplete (check config.yaml and environment variables)")
		}
	case "imap":
		if c.IMAP.Username == "" || c.IMAP.Password == "" {
			return fmt.Errorf("provider is imap but imap credentials are incomplete")
		}
	default:
		return fmt.Errorf("unknown provider %q (expected graph or imap)", c.Provider)
	}

	if len(c.ETLCommand) == 0 {
		return fmt.Errorf("etl.command is required")
	}
	if c.SnapshotEnabled && len(c.SnapshotCommand) == 0 {
		return fmt.Errorf("snapshot.enabled is true but snapshot.command is empty")
	}
	return nil
}

// splitList splits a comma-separated list, trimming and dropping empties.
func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func durationOrDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func intOrDefault(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
