package views

import (
	"fmt"
	"slices"

	"body-measure/models"
)

// ExportKind identifies one of the per-session CSV exports.
type ExportKind int

const (
	ExportSamples ExportKind = iota
	ExportFinals
)

var exportNames = map[ExportKind]string{
	ExportSamples: "samples",
	ExportFinals:  "finals",
}

func (k ExportKind) String() string {
	if n, ok := exportNames[k]; ok {
		return n
	}
	return "unknown"
}

// FileName is the CSV file name for this export inside a session directory.
func (k ExportKind) FileName() string {
	return k.String() + ".csv"
}

// SchemaColumns is the single source of truth for export column order.
var SchemaColumns = map[ExportKind][]string{
	ExportSamples: models.SampleRecord{}.CSVHeader(),
	ExportFinals:  models.FinalRecord{}.CSVHeader(),
}

// ValidateRow checks a row against the export's column count, so a model
// that drifts from its header is caught before it reaches disk.
func ValidateRow(k ExportKind, row []string) error {
	cols, ok := SchemaColumns[k]
	if !ok {
		return fmt.Errorf("unknown export %d", k)
	}
	if len(row) != len(cols) {
		return fmt.Errorf("%s row has %d fields, want %d (%v)", k, len(row), len(cols), cols)
	}
	return nil
}

// Header returns a copy of the export's header.
func Header(k ExportKind) []string {
	return slices.Clone(SchemaColumns[k])
}
