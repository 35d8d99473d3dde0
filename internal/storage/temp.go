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

// Package storage persists attachment bytes to a scratch directory,
// handing back a unique path per call regardless of name collisions.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Temp stores attachment bytes under a base directory with uuid-based
// file names. Only the original extension survives from the name hint.
type Temp struct {
	base string
}

// NewTemp creates the base directory if needed.
func NewTemp(base string) (*Temp, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolve temp dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir %s: %w", abs, err)
	}
	return &Temp{base: abs}, nil
}

// Save writes data to a fresh uniquely named file and returns its path.
func (t *Temp) Save(nameHint string, data []byte) (string, error) {
	u := uuid.New()
	name := fmt.Sprintf("%x%s", u[:], suffixes(nameHint))
	path := filepath.Join(t.base, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write attachment %s: %w", path, err)
	}
	return path, nil
}

// suffixes returns everything from the first dot of the base name, so a
// hint of "datos.seguimiento.xlsx" keeps ".seguimiento.xlsx".
func suffixes(nameHint string) string {
	base := filepath.Base(nameHint)
	if i := strings.Index(base, "."); i >= 0 {
		return base[i:]
	}
	return ""
}
