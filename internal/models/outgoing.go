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

package models

// OutgoingMail is a notification the poller sends through the mailbox
// provider: a processed-confirmation to the original sender, or the run
// transcript to the operations address.
type OutgoingMail struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}
