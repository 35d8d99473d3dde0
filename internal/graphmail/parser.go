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

package graphmail

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/obratech/ingestor/internal/models"
)

// graphMessage represents the relevant fields of a Graph API message.
type graphMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    struct {
		EmailAddress struct {
			Address string `json:"address"`
			Name    string `json:"name"`
		} `json:"emailAddress"`
	} `json:"from"`
	ReceivedDateTime string `json:"receivedDateTime"`
	HasAttachments   bool   `json:"hasAttachments"`
}

// parseMessageList converts a Graph message list response into MailItems
// (without attachment content).
func parseMessageList(body io.Reader) ([]models.MailItem, error) {
	var resp struct {
		Value []graphMessage `json:"value"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode message list: %w", err)
	}

	items := make([]models.MailItem, 0, len(resp.Value))
	for _, m := range resp.Value {
		items = append(items, models.MailItem{
			ID:       m.ID,
			Subject:  m.Subject,
			From:     m.From.EmailAddress.Address,
			Received: m.ReceivedDateTime,
		})
	}
	return items, nil
}

// graphAttachment represents one entry of a message's attachment list.
type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
}

// parseAttachmentList decodes the file attachments of an attachment list
// response. Attachments whose content fails to decode are skipped with a
// warning rather than failing the message.
func parseAttachmentList(body io.Reader) ([]models.Attachment, error) {
	var resp struct {
		Value []graphAttachment `json:"value"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode attachment list: %w", err)
	}

	var atts []models.Attachment
	for _, a := range resp.Value {
		if !strings.HasSuffix(a.ODataType, "fileAttachment") || a.ContentBytes == "" {
			continue
		}
		content, err := base64.StdEncoding.DecodeString(a.ContentBytes)
		if err != nil {
			slog.Warn("skipping attachment with undecodable content",
				"name", a.Name,
				"error", err,
			)
			continue
		}
		ctype := a.ContentType
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		atts = append(atts, models.Attachment{
			Filename:    a.Name,
			Content:     content,
			ContentType: ctype,
		})
	}
	return atts, nil
}

// parseFolderID extracts the id of a single folder response.
func parseFolderID(body io.Reader) (string, error) {
	var folder struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(body).Decode(&folder); err != nil {
		return "", fmt.Errorf("decode folder: %w", err)
	}
	if folder.ID == "" {
		return "", fmt.Errorf("folder response has no id")
	}
	return folder.ID, nil
}

// findFolderByName scans a folder list response for a case-insensitive
// displayName match. Returns "" when not found.
func findFolderByName(body io.Reader, name string) (string, error) {
	var resp struct {
		Value []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
		} `json:"value"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decode folder list: %w", err)
	}
	for _, f := range resp.Value {
		if strings.EqualFold(f.DisplayName, name) {
			return f.ID, nil
		}
	}
	return "", nil
}

// buildSendMailRequest shapes an OutgoingMail into the Graph sendMail
// request body.
func buildSendMailRequest(msg models.OutgoingMail) map[string]any {
	recipients := []map[string]any{
		{"emailAddress": map[string]string{"address": msg.To}},
	}

	var attachments []map[string]any
	for _, a := range msg.Attachments {
		attachments = append(attachments, map[string]any{
			"@odata.type":  "#microsoft.graph.fileAttachment",
			"name":         a.Filename,
			"contentType":  a.ContentType,
			"contentBytes": base64.StdEncoding.EncodeToString(a.Content),
		})
	}

	message := map[string]any{
		"subject": msg.Subject,
		"body": map[string]string{
			"contentType": "Text",
			"content":     msg.Body,
		},
		"toRecipients": recipients,
	}
	if len(attachments) > 0 {
		message["attachments"] = attachments
	}

	return map[string]any{
		"message":         message,
		"saveToSentItems": true,
	}
}
