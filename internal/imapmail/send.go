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

package imapmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/obratech/ingestor/internal/models"
)

const mimeBoundary = "----=_ingestor_0001"

// Send delivers a notification over SMTP with the mailbox credentials.
func (c *Client) Send(ctx context.Context, msg models.OutgoingMail) error {
	addr := fmt.Sprintf("%s:%d", c.cfg.SMTPHost, c.cfg.SMTPPort)
	auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.SMTPHost)

	body := buildMIME(c.cfg.Username, msg)
	if err := smtp.SendMail(addr, auth, c.cfg.Username, []string{msg.To}, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// buildMIME assembles a multipart/mixed message with a plain text body and
// base64-encoded attachments.
func buildMIME(from string, msg models.OutgoingMail) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q\r\n", mimeBoundary))
	b.WriteString("\r\n")

	b.WriteString(fmt.Sprintf("--%s\r\n", mimeBoundary))
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	for _, a := range msg.Attachments {
		b.WriteString(fmt.Sprintf("--%s\r\n", mimeBoundary))
		b.WriteString(fmt.Sprintf("Content-Type: %s\r\n", a.ContentType))
		b.WriteString("Content-Transfer-Encoding: base64\r\n")
		b.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n", a.Filename))
		b.WriteString("\r\n")

		encoded := base64.StdEncoding.EncodeToString(a.Content)
		for len(encoded) > 76 {
			b.WriteString(encoded[:76])
			b.WriteString("\r\n")
			encoded = encoded[76:]
		}
		b.WriteString(encoded)
		b.WriteString("\r\n")
	}
	b.WriteString(fmt.Sprintf("--%s--\r\n", mimeBoundary))

	return []byte(b.String())
}
