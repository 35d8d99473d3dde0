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

package storage

import (
	"os"
	"strings"
	"testing"
)

func TestSave_UniquePathsForSameHint(t *testing.T) {
	st, err := NewTemp(t.TempDir())
	if err != nil {
		t.Fatalf("NewTemp: %v", err)
	}

	p1, err := st.Save("obra.xlsx", []byte("one"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	p2, err := st.Save("obra.xlsx", []byte("two"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if p1 == p2 {
		t.Fatalf("colliding hints produced the same path %s", p1)
	}

	got, err := os.ReadFile(p2)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "two" {
		t.Errorf("content = %q, want two", got)
	}
}

func TestSave_KeepsExtension(t *testing.T) {
	st, err := NewTemp(t.TempDir())
	if err != nil {
		t.Fatalf("NewTemp: %v", err)
	}

	cases := []struct {
		hint string
		want string
	}{
		{"obra.xlsx", ".xlsx"},
		{"datos.seguimiento.xlsx", ".seguimiento.xlsx"},
		{"../../escape.xlsx", ".xlsx"},
		{"noext", ""},
	}
	for _, c := range cases {
		p, err := st.Save(c.hint, []byte("x"))
		if err != nil {
			t.Fatalf("Save(%q): %v", c.hint, err)
		}
		if !strings.HasSuffix(p, c.want) {
			t.Errorf("Save(%q) = %s, want suffix %q", c.hint, p, c.want)
		}
		if !strings.HasPrefix(p, st.base) {
			t.Errorf("Save(%q) escaped the base dir: %s", c.hint, p)
		}
	}
}
