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

// Package imapmail provides mailbox access over IMAP for deployments
// without a Graph application registration. Each operation opens its own
// short-lived connection; the service processes a handful of messages per
// poll, so connection reuse buys nothing.
package imapmail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/obratech/ingestor/internal/models"
)

// Config carries IMAP and SMTP endpoint settings for one mailbox.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
	Inbox    string

	SMTPHost string
	SMTPPort int
}

// Client implements the poller's Mailbox interface over IMAP/SMTP.
type Client struct {
	cfg Config
}

// NewClient creates an IMAP mailbox client.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) connect() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	var (
		cl  *imapclient.Client
		err error
	)
	if c.cfg.TLS {
		cl, err = imapclient.DialTLS(addr, nil)
	} else {
		cl, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to IMAP %s: %w", addr, err)
	}

	if err := cl.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = cl.Logout().Wait()
		return nil, fmt.Errorf("IMAP login for %s: %w", c.cfg.Username, err)
	}
	return cl, nil
}

// ListUnread returns up to limit unseen messages from the inbox, ascending
// by UID. Attachments are fetched separately.
func (c *Client) ListUnread(ctx context.Context, limit int) ([]models.MailItem, error) {
	cl, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = cl.Logout().Wait() }()

	if _, err := cl.Select(c.cfg.Inbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", c.cfg.Inbox, err)
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	searchData, err := cl.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	fetchCmd := cl.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	})
	defer fetchCmd.Close()

	var items []models.MailItem
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		item := models.MailItem{
			ID: strconv.FormatUint(uint64(buf.UID), 10),
		}
		if buf.Envelope != nil {
			item.Subject = buf.Envelope.Subject
			item.Received = buf.Envelope.Date.Format(time.RFC3339)
			if len(buf.Envelope.From) > 0 {
				item.From = buf.Envelope.From[0].Addr()
			}
		}
		items = append(items, item)
	}

	if err := fetchCmd.Close(); err != nil {
		return items, fmt.Errorf("fetch envelopes: %w", err)
	}
	return items, nil
}

// Attachments fetches one message and extracts its attachment parts.
func (c *Client) Attachments(ctx context.Context, messageID string) ([]models.Attachment, error) {
	uid, err := parseUID(messageID)
	if err != nil {
		return nil, err
	}

	cl, err := c.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = cl.Logout().Wait() }()

	if _, err := cl.Select(c.cfg.Inbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("select %s: %w", c.cfg.Inbox, err)
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := cl.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}
	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collect message: %w", err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, nil
	}
	return extractAttachments(raw), nil
}

// Move moves a message to the named folder via the IMAP MOVE extension.
func (c *Client) Move(ctx context.Context, messageID, folderPath string) error {
	uid, err := parseUID(messageID)
	if err != nil {
		return err
	}

	cl, err := c.connect()
	if err != nil {
		return err
	}
	defer func() { _ = cl.Logout().Wait() }()

	if _, err := cl.Select(c.cfg.Inbox, nil).Wait(); err != nil {
		return fmt.Errorf("select %s: %w", c.cfg.Inbox, err)
	}

	if _, err := cl.Move(imap.UIDSetNum(uid), folderPath).Wait(); err != nil {
		return fmt.Errorf("move UID %d to %s: %w", uid, folderPath, err)
	}
	return nil
}

func parseUID(messageID string) (imap.UID, error) {
	n, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid IMAP message id %q: %w", messageID, err)
	}
	return imap.UID(n), nil
}

// extractAttachments walks the MIME parts of a raw RFC 2822 message and
// collects attachment parts. Parse failures yield no attachments rather
// than an error; the gate in the use case treats that as "no qualifying
// attachments".
func extractAttachments(raw []byte) []models.Attachment {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	defer mr.Close()

	var atts []models.Attachment
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, _ := h.Filename()
		ctype, _, _ := h.ContentType()
		content, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		atts = append(atts, models.Attachment{
			Filename:    filename,
			Content:     content,
			ContentType: ctype,
		})
	}
	return atts
}
