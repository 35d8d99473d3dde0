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

// Package transform converts spreadsheet content into the ETL payload.
// The spreadsheets arrive with Spanish-locale formatting: "." groups
// thousands and "," marks the decimal point.
package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NormalizeNumber parses a locale-formatted numeric string. Thousands dots
// are stripped and the decimal comma becomes a dot. A blank or unparseable
// string has no value (ok == false) — never an error; the templates contain
// free text in numeric columns more often than anyone would like.
func NormalizeNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// numberPtr is NormalizeNumber shaped for the payload structs: absent
// values become nil and serialise as JSON null.
func numberPtr(s string) *float64 {
	f, ok := NormalizeNumber(s)
	if !ok {
		return nil
	}
	return &f
}

// FirstOfMonth renders a "YYYY-MM…" month key as "01/MM/YYYY" — the
// first-of-month convention the ETL expects. Anything that does not look
// like a month key passes through unchanged (already-formatted dates flow
// through verbatim).
func FirstOfMonth(s string) string {
	t := strings.TrimSpace(s)
	if len(t) >= 7 && t[4] == '-' {
		year, errY := strconv.Atoi(t[:4])
		month, errM := strconv.Atoi(t[5:7])
		if errY == nil && errM == nil {
			return fmt.Sprintf("01/%02d/%04d", month, year)
		}
	}
	return t
}

// YearMonth parses a canonical DD/MM/YYYY tracking date into its year and
// month. ok is false when the date does not parse.
func YearMonth(fecha string) (year, month int, ok bool) {
	t, err := time.Parse("02/01/2006", strings.TrimSpace(fecha))
	if err != nil {
		return 0, 0, false
	}
	return t.Year(), int(t.Month()), true
}
