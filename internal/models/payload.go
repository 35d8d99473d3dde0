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

// Header is the three-field summary extracted from a spreadsheet's label
// sheet. Any field may legitimately be empty when the label is not found.
// FechaSeguimiento is always the canonical DD/MM/YYYY form.
type Header struct {
	FechaSeguimiento string `json:"fecha_seguimiento"`
	Empresa          string `json:"empresa"`
	Proyecto         string `json:"proyecto"`
}

// ProductionRow is one line item from the production sheet.
//
// Numeric fields are pointers: a cell that is blank or fails locale-aware
// parsing carries no value and serialises as JSON null.
type ProductionRow struct {
	FechaProduccion        string   `json:"fecha_produccion"`
	Capitulo               string   `json:"capitulo"`
	CapituloCodigo         string   `json:"capitulo_codigo"`
	CertificacionPendiente *float64 `json:"certificacion_pendiente"`
	RestoProduccion        *float64 `json:"resto_produccion"`
	Observaciones          string   `json:"observaciones"`
}

// PendingRow is one line item from the pending-costs sheet.
type PendingRow struct {
	FechaProduccion string   `json:"fecha_produccion"`
	Capitulo        string   `json:"capitulo"`
	CapituloCodigo  string   `json:"capitulo_codigo"`
	Proveedor       string   `json:"proveedor"`
	CostePendiente  *float64 `json:"coste_pendiente"`
	Observaciones   string   `json:"observaciones"`
}

// PayloadBody groups the header and the two row sets.
type PayloadBody struct {
	Header      Header          `json:"header"`
	Seguimiento []ProductionRow `json:"seguimiento"`
	Pendientes  []PendingRow    `json:"pendientes"`
}

// Payload is the unit of work submitted to the ETL process.
//
// This struct's JSON serialisation MUST match what the Python ETL reader
// expects on its standard input: field names stay in Spanish, selected_cases
// always lists both cases, and row lists are [] rather than null when empty.
type Payload struct {
	SelectedCases []string    `json:"selected_cases"`
	Payload       PayloadBody `json:"payload"`
}
