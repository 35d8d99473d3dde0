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

// Package sheet adapts xlsx workbooks to the transform.SheetSource
// interface using excelize. The payload builder itself only ever sees 2D
// string grids.
package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/obratech/ingestor/internal/models"
	"github.com/obratech/ingestor/internal/transform"
)

// Workbook is an open xlsx file exposing its sheets as cell grids.
type Workbook struct {
	f *excelize.File
}

// Open opens an xlsx workbook. Failure to open the container is fatal for
// the attachment — unlike a missing sheet, no payload is possible at all.
func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return &Workbook{f: f}, nil
}

// Grid returns the named sheet as rows of formatted cell text. Rows are
// ragged: trailing empty cells are not padded.
func (w *Workbook) Grid(name string) ([][]string, error) {
	rows, err := w.f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	return rows, nil
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// BuildPayload opens the workbook at path and assembles the ETL payload
// from it. This is the payload builder the use case is wired with.
func BuildPayload(path string) (*models.Payload, error) {
	wb, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return transform.BuildPayload(wb)
}
