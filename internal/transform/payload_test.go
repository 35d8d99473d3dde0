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

package transform

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

// fakeSource serves in-memory grids keyed by sheet name. Sheets absent
// from the map return an error, like a workbook missing that sheet.
type fakeSource struct {
	sheets map[string][][]string
}

func (f *fakeSource) Grid(name string) ([][]string, error) {
	grid, ok := f.sheets[name]
	if !ok {
		return nil, fmt.Errorf("sheet %s does not exist", name)
	}
	return grid, nil
}

func fullWorkbook() *fakeSource {
	return &fakeSource{sheets: map[string][][]string{
		SheetInicio: {
			{"", "Seguimiento mensual"},
			{"", "Mes_Clave (auto)", "2025-08"},
			{"Empresa", "Obratech SL"},
			{"", "", "Proyecto", "Torre Norte"},
		},
		SheetProduccion: {
			{"Mes", "Capitulo", "Codigo", "Certificacion", "Resto", "Obs"},
			{"2025-08", "Cimentacion", "C01", "1.234,56", "500", "ok"},
			{"2025-08", "Estructura", "C02", "", "abc", ""},
			{"2025-08", "", "", "99", "", "trailing blank chapter"},
			{"2025-08", "Fachada", "C03", "10", "20"},
		},
		SheetPendientes: {
			{"Mes", "Capitulo", "Codigo", "Proveedor", "Coste", "Obs"},
			{"2025-08", "Cimentacion", "C01", "Aceros SA", "3.000,10", "pend"},
		},
	}}
}

func TestBuildPayload_Full(t *testing.T) {
	p, err := BuildPayload(fullWorkbook())
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}

	h := p.Payload.Header
	if h.FechaSeguimiento != "01/08/2025" {
		t.Errorf("fecha_seguimiento = %q, want 01/08/2025", h.FechaSeguimiento)
	}
	if h.Empresa != "Obratech SL" {
		t.Errorf("empresa = %q, want Obratech SL", h.Empresa)
	}
	if h.Proyecto != "Torre Norte" {
		t.Errorf("proyecto = %q, want Torre Norte", h.Proyecto)
	}

	// Row 3 has a blank chapter and must be skipped; the rows after it
	// still count.
	if len(p.Payload.Seguimiento) != 3 {
		t.Fatalf("seguimiento rows = %d, want 3", len(p.Payload.Seguimiento))
	}
	first := p.Payload.Seguimiento[0]
	if first.Capitulo != "Cimentacion" || first.CapituloCodigo != "C01" {
		t.Errorf("unexpected first row: %+v", first)
	}
	if first.CertificacionPendiente == nil || *first.CertificacionPendiente != 1234.56 {
		t.Errorf("certificacion_pendiente = %v, want 1234.56", first.CertificacionPendiente)
	}
	second := p.Payload.Seguimiento[1]
	if second.CertificacionPendiente != nil {
		t.Error("blank numeric cell should carry no value")
	}
	if second.RestoProduccion != nil {
		t.Error("unparseable numeric cell should carry no value")
	}
	// Ragged last row: observaciones column missing entirely.
	if p.Payload.Seguimiento[2].Observaciones != "" {
		t.Errorf("ragged row observaciones = %q, want empty",
			p.Payload.Seguimiento[2].Observaciones)
	}

	if len(p.Payload.Pendientes) != 1 {
		t.Fatalf("pendientes rows = %d, want 1", len(p.Payload.Pendientes))
	}
	pend := p.Payload.Pendientes[0]
	if pend.Proveedor != "Aceros SA" {
		t.Errorf("proveedor = %q, want Aceros SA", pend.Proveedor)
	}
	if pend.CostePendiente == nil || *pend.CostePendiente != 3000.10 {
		t.Errorf("coste_pendiente = %v, want 3000.10", pend.CostePendiente)
	}
}

// TestBuildPayload_MissingLabelSheet verifies that without the label sheet
// no payload can be produced.
func TestBuildPayload_MissingLabelSheet(t *testing.T) {
	src := &fakeSource{sheets: map[string][][]string{
		SheetProduccion: {{"h"}, {"2025-08", "Cap", "C", "1", "2", ""}},
	}}
	if _, err := BuildPayload(src); err == nil {
		t.Fatal("expected an error when the label sheet is missing")
	}
}

// TestBuildPayload_MissingTabularSheets verifies the degraded path: label
// sheet present, data sheets absent, payload still produced with empty lists.
func TestBuildPayload_MissingTabularSheets(t *testing.T) {
	src := &fakeSource{sheets: map[string][][]string{
		SheetInicio: {{"Empresa", "Obratech SL"}},
	}}
	p, err := BuildPayload(src)
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}
	if p.Payload.Seguimiento == nil || len(p.Payload.Seguimiento) != 0 {
		t.Errorf("seguimiento = %#v, want empty non-nil slice", p.Payload.Seguimiento)
	}
	if p.Payload.Pendientes == nil || len(p.Payload.Pendientes) != 0 {
		t.Errorf("pendientes = %#v, want empty non-nil slice", p.Payload.Pendientes)
	}

	// The wire contract demands [] here, never null.
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"seguimiento":[]`) {
		t.Errorf("payload missing empty seguimiento list: %s", raw)
	}
	if !strings.Contains(string(raw), `"pendientes":[]`) {
		t.Errorf("payload missing empty pendientes list: %s", raw)
	}
	if !strings.Contains(string(raw), `"selected_cases":["seguimiento","pendientes"]`) {
		t.Errorf("unexpected selected_cases: %s", raw)
	}
}

// TestFindRight covers label lookup corner cases: padded labels, labels in
// the last column, and labels that never appear.
func TestFindRight(t *testing.T) {
	grid := [][]string{
		{"noise", "  Empresa  ", "Obratech SL"},
		{"Proyecto"},
	}
	if got := findRight(grid, "Empresa"); got != "Obratech SL" {
		t.Errorf("findRight(Empresa) = %q, want Obratech SL", got)
	}
	if got := findRight(grid, "Proyecto"); got != "" {
		t.Errorf("label in last column should yield empty, got %q", got)
	}
	if got := findRight(grid, "Mes_Clave (auto)"); got != "" {
		t.Errorf("absent label should yield empty, got %q", got)
	}
}
