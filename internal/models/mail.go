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

// Package models defines the data structures shared across the ingestor service.
package models

// Attachment is a file attached to an inbound message. Immutable value.
type Attachment struct {
	Filename    string
	Content     []byte
	ContentType string
}

// MailItem is one inbound message as handed to the processing use case.
// It is constructed by a mailbox provider and never mutated afterwards.
type MailItem struct {
	ID          string
	Subject     string
	From        string
	Received    string
	Attachments []Attachment
}
