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

// Outcome classifies what happened to one message.
type Outcome string

const (
	// OutcomeProcessed — every qualifying attachment went through ETL
	// (and snapshot, when enabled) end to end.
	OutcomeProcessed Outcome = "processed"
	// OutcomeNotProcessed — the message was rejected by the sender,
	// subject or attachment gates before any work started.
	OutcomeNotProcessed Outcome = "not_processed"
	// OutcomeError — at least one qualifying attachment existed and some
	// step failed for any of them.
	OutcomeError Outcome = "error"
)

// ProcessingResult is returned by the use case for one message. Headers
// holds one entry per successfully parsed attachment, in attachment order,
// regardless of downstream ETL or snapshot failures — callers can report
// partial progress.
type ProcessingResult struct {
	Outcome Outcome
	Headers []Header
}
