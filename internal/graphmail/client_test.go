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
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/obratech/ingestor/internal/models"
)

const testUser = "ingest@obratech.example"

func TestListUnread(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/"+testUser+"/mailFolders('inbox')", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "inbox-id"})
	})
	mux.HandleFunc("/users/"+testUser+"/mailFolders/inbox-id/messages", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("$filter") != "isRead eq false" {
			t.Errorf("unexpected $filter: %q", q.Get("$filter"))
		}
		if q.Get("$orderby") != "receivedDateTime asc" {
			t.Errorf("unexpected $orderby: %q", q.Get("$orderby"))
		}
		if q.Get("$top") != "5" {
			t.Errorf("unexpected $top: %q", q.Get("$top"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{
					"id":      "msg-1",
					"subject": "Seguimiento agosto",
					"from": map[string]any{
						"emailAddress": map[string]string{"address": "obras@vendor.com"},
					},
					"receivedDateTime": "2025-08-17T09:30:00Z",
					"hasAttachments":   true,
				},
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, testUser, "Inbox")
	items, err := c.ListUnread(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListUnread: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	got := items[0]
	if got.ID != "msg-1" || got.From != "obras@vendor.com" || got.Subject != "Seguimiento agosto" {
		t.Errorf("unexpected item: %+v", got)
	}
}

func TestAttachments(t *testing.T) {
	content := base64.StdEncoding.EncodeToString([]byte("workbook bytes"))
	mux := http.NewServeMux()
	mux.HandleFunc("/users/"+testUser+"/messages/msg-1/attachments", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{
					"@odata.type":  "#microsoft.graph.fileAttachment",
					"name":         "obra.xlsx",
					"contentType":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
					"contentBytes": content,
				},
				{
					"@odata.type": "#microsoft.graph.itemAttachment",
					"name":        "meeting.ics",
				},
				{
					"@odata.type":  "#microsoft.graph.fileAttachment",
					"name":         "broken.bin",
					"contentBytes": "%%not-base64%%",
				},
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, testUser, "Inbox")
	atts, err := c.Attachments(context.Background(), "msg-1")
	if err != nil {
		t.Fatalf("Attachments: %v", err)
	}
	if len(atts) != 1 {
		t.Fatalf("attachments = %d, want 1 (non-file and undecodable skipped)", len(atts))
	}
	if atts[0].Filename != "obra.xlsx" {
		t.Errorf("filename = %q", atts[0].Filename)
	}
	if string(atts[0].Content) != "workbook bytes" {
		t.Errorf("content = %q", atts[0].Content)
	}
}

// TestMove_CreatesMissingChildFolder resolves "Inbox/Procesados" where the
// child does not exist yet: the client must create it, move into it, and
// cache the resolved ID so a second move skips resolution entirely.
func TestMove_CreatesMissingChildFolder(t *testing.T) {
	var (
		mu           sync.Mutex
		childLists   int
		created      string
		destinations []string
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/users/"+testUser+"/mailFolders('inbox')", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "inbox-id"})
	})
	mux.HandleFunc("/users/"+testUser+"/mailFolders/inbox-id/childFolders", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			childLists++
			json.NewEncoder(w).Encode(map[string]any{
				"value": []map[string]string{
					{"id": "other-id", "displayName": "Errores"},
				},
			})
		case http.MethodPost:
			var body struct {
				DisplayName string `json:"displayName"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			created = body.DisplayName
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "proc-id"})
		}
	})
	mux.HandleFunc("/users/"+testUser+"/messages/", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			DestinationID string `json:"destinationId"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		destinations = append(destinations, body.DestinationID)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("{}"))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, testUser, "Inbox")
	if err := c.Move(context.Background(), "msg-1", "Inbox/Procesados"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if err := c.Move(context.Background(), "msg-2", "Inbox/Procesados"); err != nil {
		t.Fatalf("second Move: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if created != "Procesados" {
		t.Errorf("created folder = %q, want Procesados", created)
	}
	if childLists != 1 {
		t.Errorf("child folder lookups = %d, want 1 (second move must hit the cache)", childLists)
	}
	if len(destinations) != 2 || destinations[0] != "proc-id" || destinations[1] != "proc-id" {
		t.Errorf("move destinations = %v, want [proc-id proc-id]", destinations)
	}
}

func TestSend(t *testing.T) {
	var captured map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/users/"+testUser+"/sendMail", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusAccepted)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, testUser, "Inbox")
	err := c.Send(context.Background(), models.OutgoingMail{
		To:      "obras@vendor.com",
		Subject: "procesado",
		Body:    "El seguimiento se ha procesado correctamente.",
		Attachments: []models.Attachment{
			{Filename: "run.log", Content: []byte("log text"), ContentType: "text/plain"},
		},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, ok := captured["message"].(map[string]any)
	if !ok {
		t.Fatalf("request has no message: %v", captured)
	}
	if msg["subject"] != "procesado" {
		t.Errorf("subject = %v", msg["subject"])
	}
	atts, ok := msg["attachments"].([]any)
	if !ok || len(atts) != 1 {
		t.Fatalf("attachments = %v", msg["attachments"])
	}
	att := atts[0].(map[string]any)
	if att["contentBytes"] != base64.StdEncoding.EncodeToString([]byte("log text")) {
		t.Errorf("contentBytes = %v", att["contentBytes"])
	}
	if captured["saveToSentItems"] != true {
		t.Errorf("saveToSentItems = %v", captured["saveToSentItems"])
	}
}

// TestListUnread_HTTPError surfaces non-200 responses as errors carrying
// the status code.
func TestListUnread_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"InvalidAuthenticationToken"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, testUser, "Inbox")
	if _, err := c.ListUnread(context.Background(), 5); err == nil {
		t.Fatal("expected an error for HTTP 401")
	}
}
