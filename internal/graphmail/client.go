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

// Package graphmail provides mailbox access over the Microsoft Graph API:
// listing unread candidate messages, fetching attachments, moving messages
// between folders and sending notification mail. The http.Client must
// already handle authentication (oauth2 client credentials).
package graphmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/obratech/ingestor/internal/models"
)

// DefaultBaseURL is the Graph API root.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Client talks to one user's mailbox through the Graph API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userID     string
	inboxPath  string

	// folder path → Graph folder ID, resolved lazily
	folderIDs map[string]string
}

// NewClient creates a Graph mailbox client for the given user. inboxPath
// is the folder listed by ListUnread (e.g. "Inbox").
func NewClient(httpClient *http.Client, baseURL, userID, inboxPath string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		inboxPath:  inboxPath,
		folderIDs:  make(map[string]string),
	}
}

// ListUnread returns up to limit unread messages from the inbox folder,
// ascending by arrival time. Attachments are not included; fetch them per
// message with Attachments.
func (c *Client) ListUnread(ctx context.Context, limit int) ([]models.MailItem, error) {
	folderID, err := c.folderID(ctx, c.inboxPath)
	if err != nil {
		return nil, fmt.Errorf("resolve inbox folder: %w", err)
	}

	u := fmt.Sprintf("%s/users/%s/mailFolders/%s/messages?%s",
		c.baseURL, url.PathEscape(c.userID), folderID,
		"$filter="+url.QueryEscape("isRead eq false")+
			"&$orderby="+url.QueryEscape("receivedDateTime asc")+
			fmt.Sprintf("&$top=%d", limit)+
			"&$select=id,subject,from,receivedDateTime,hasAttachments")

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	defer body.Close()

	return parseMessageList(body)
}

// Attachments fetches and decodes the file attachments of one message.
// Non-file attachments (calendar items, referenced files) are skipped.
func (c *Client) Attachments(ctx context.Context, messageID string) ([]models.Attachment, error) {
	u := fmt.Sprintf("%s/users/%s/messages/%s/attachments",
		c.baseURL, url.PathEscape(c.userID), url.PathEscape(messageID))

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer body.Close()

	return parseAttachmentList(body)
}

// Move moves a message into the folder named by path, creating missing
// child folders on the way.
func (c *Client) Move(ctx context.Context, messageID, folderPath string) error {
	destID, err := c.folderID(ctx, folderPath)
	if err != nil {
		return fmt.Errorf("resolve folder %q: %w", folderPath, err)
	}

	u := fmt.Sprintf("%s/users/%s/messages/%s/move",
		c.baseURL, url.PathEscape(c.userID), url.PathEscape(messageID))

	payload := map[string]string{"destinationId": destID}
	if err := c.post(ctx, u, payload, nil); err != nil {
		return fmt.Errorf("move message: %w", err)
	}
	return nil
}

// Send sends a notification mail from the mailbox user.
func (c *Client) Send(ctx context.Context, msg models.OutgoingMail) error {
	u := fmt.Sprintf("%s/users/%s/sendMail", c.baseURL, url.PathEscape(c.userID))

	if err := c.post(ctx, u, buildSendMailRequest(msg), nil); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// wellKnownFolders are the Graph well-known folder names accepted as the
// first path segment without a displayName lookup.
var wellKnownFolders = map[string]bool{
	"inbox":        true,
	"sentitems":    true,
	"drafts":       true,
	"deleteditems": true,
	"archive":      true,
	"junkemail":    true,
	"outbox":       true,
}

// folderID resolves a slash-separated folder path ("Inbox/Procesados") to
// a Graph folder ID. The first segment resolves against well-known names
// or root display names; deeper segments resolve against child folders and
// are created when missing. Results are cached per path.
func (c *Client) folderID(ctx context.Context, folderPath string) (string, error) {
	if id, ok := c.folderIDs[folderPath]; ok {
		return id, nil
	}

	var parts []string
	for _, p := range strings.Split(folderPath, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("empty folder path")
	}

	currentID, err := c.rootFolderID(ctx, parts[0])
	if err != nil {
		return "", err
	}

	for _, name := range parts[1:] {
		childID, err := c.childFolderID(ctx, currentID, name)
		if err != nil {
			return "", err
		}
		currentID = childID
	}

	c.folderIDs[folderPath] = currentID
	return currentID, nil
}

func (c *Client) rootFolderID(ctx context.Context, segment string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(segment))
	if wellKnownFolders[lower] {
		u := fmt.Sprintf("%s/users/%s/mailFolders('%s')", c.baseURL, url.PathEscape(c.userID), lower)
		body, err := c.get(ctx, u)
		if err != nil {
			return "", fmt.Errorf("well-known folder %q: %w", segment, err)
		}
		defer body.Close()
		return parseFolderID(body)
	}

	u := fmt.Sprintf("%s/users/%s/mailFolders", c.baseURL, url.PathEscape(c.userID))
	body, err := c.get(ctx, u)
	if err != nil {
		return "", fmt.Errorf("list root folders: %w", err)
	}
	defer body.Close()

	id, err := findFolderByName(body, segment)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("root folder %q not found", segment)
	}
	return id, nil
}

// childFolderID finds a child folder by display name, creating it when it
// does not exist yet.
func (c *Client) childFolderID(ctx context.Context, parentID, name string) (string, error) {
	u := fmt.Sprintf("%s/users/%s/mailFolders/%s/childFolders",
		c.baseURL, url.PathEscape(c.userID), parentID)

	body, err := c.get(ctx, u)
	if err != nil {
		return "", fmt.Errorf("list child folders: %w", err)
	}
	id, err := findFolderByName(body, name)
	body.Close()
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	slog.Info("creating mail folder", "name", name)
	var created struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, u, map[string]string{"displayName": name}, &created); err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("create folder %q: empty id in response", name)
	}
	return created.ID, nil
}

func (c *Client) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("graph API returned HTTP %d: %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, u string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graph API returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
