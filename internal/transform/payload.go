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
	"fmt"
	"log/slog"
	"strings"

	"github.com/obratech/ingestor/internal/models"
)

// Sheet and label names fixed by the tracking template. The header labels
// are matched by text, not by cell address — the template shifts cells
// between revisions but never renames the labels.
const (
	SheetInicio     = "Inicio"
	SheetProduccion = "Produccion"
	SheetPendientes = "Pendientes"

	labelMesClave = "Mes_Clave (auto)"
	labelEmpresa  = "Empresa"
	labelProyecto = "Proyecto"
)

// SheetSource yields the cell grid of a named sheet as rows of cell text.
// Rows may be ragged; a missing cell reads as empty. Representing sheets
// this way keeps the payload builder testable without a spreadsheet engine.
type SheetSource interface {
	Grid(name string) ([][]string, error)
}

// BuildPayload reads the template's three logical sheets and assembles the
// ETL payload. A tabular sheet that is missing or unreadable degrades to an
// empty row list — partial data beats total refusal. Only the label sheet
// is required: without it no payload is possible at all.
func BuildPayload(src SheetSource) (*models.Payload, error) {
	ini, err := src.Grid(SheetInicio)
	if err != nil {
		return nil, fmt.Errorf("read label sheet %q: %w", SheetInicio, err)
	}

	mesClave := findRight(ini, labelMesClave)
	empresa := findRight(ini, labelEmpresa)
	proyecto := findRight(ini, labelProyecto)

	payload := &models.Payload{
		SelectedCases: []string{"seguimiento", "pendientes"},
		Payload: models.PayloadBody{
			Header: models.Header{
				FechaSeguimiento: strings.TrimSpace(FirstOfMonth(mesClave)),
				Empresa:          strings.TrimSpace(empresa),
				Proyecto:         strings.TrimSpace(proyecto),
			},
			Seguimiento: productionRows(src),
			Pendientes:  pendingRows(src),
		},
	}
	return payload, nil
}

// findRight scans the grid row-major for the first cell whose trimmed text
// equals label (case-sensitive) and returns the cell immediately to its
// right. Label in the last column, or not found at all, yields "".
func findRight(grid [][]string, label string) string {
	for _, row := range grid {
		for c, val := range row {
			if strings.TrimSpace(val) != label {
				continue
			}
			if c+1 < len(row) {
				return row[c+1]
			}
			return ""
		}
	}
	return ""
}

// tabular returns a sheet's data rows with the header row discarded.
// Unreadable sheets degrade to no rows.
func tabular(src SheetSource, name string) [][]string {
	grid, err := src.Grid(name)
	if err != nil {
		slog.Warn("tabular sheet unavailable, continuing with no rows",
			"sheet", name,
			"error", err,
		)
		return nil
	}
	if len(grid) < 2 {
		return nil
	}
	return grid[1:]
}

// cell reads column i of a possibly ragged row, blank on missing.
func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// Column positions in both tabular sheets. Header text is untrusted;
// columns are mapped by position and anything past the sixth is ignored.
const (
	colMes = iota
	colCapitulo
	colCapituloCod
	colMetric      // Certificacion (production) / Proveedor (pending)
	colSecondary   // RestoProd (production) / CostePend (pending)
	colObservacion
)

func productionRows(src SheetSource) []models.ProductionRow {
	rows := tabular(src, SheetProduccion)
	out := make([]models.ProductionRow, 0, len(rows))
	for _, row := range rows {
		// Blank chapter is the sheet's end-of-data sentinel, not an error.
		if strings.TrimSpace(cell(row, colCapitulo)) == "" {
			continue
		}
		out = append(out, models.ProductionRow{
			FechaProduccion:        FirstOfMonth(cell(row, colMes)),
			Capitulo:               cell(row, colCapitulo),
			CapituloCodigo:         cell(row, colCapituloCod),
			CertificacionPendiente: numberPtr(cell(row, colMetric)),
			RestoProduccion:        numberPtr(cell(row, colSecondary)),
			Observaciones:          cell(row, colObservacion),
		})
	}
	return out
}

func pendingRows(src SheetSource) []models.PendingRow {
	rows := tabular(src, SheetPendientes)
	out := make([]models.PendingRow, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(cell(row, colCapitulo)) == "" {
			continue
		}
		out = append(out, models.PendingRow{
			FechaProduccion: FirstOfMonth(cell(row, colMes)),
			Capitulo:        cell(row, colCapitulo),
			CapituloCodigo:  cell(row, colCapituloCod),
			Proveedor:       cell(row, colMetric),
			CostePendiente:  numberPtr(cell(row, colSecondary)),
			Observaciones:   cell(row, colObservacion),
		})
	}
	return out
}
