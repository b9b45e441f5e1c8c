package views

import (
	"fmt"
	"os"
	"sync"

	"body-measure/models"
)

// MeasurementLog is the append-only, human-readable measurement record.
// Each Append opens the file in append mode, writes one line and closes it,
// so concurrent sessions and crashes never lose earlier lines.
type MeasurementLog struct {
	mu        sync.Mutex
	path      string
	precision int
}

// NewMeasurementLog creates a record writer for path; nothing is opened
// until the first Append.
func NewMeasurementLog(path string, precision int) *MeasurementLog {
	if precision < 0 {
		precision = 2
	}
	return &MeasurementLog{path: path, precision: precision}
}

// Path returns the record location.
func (l *MeasurementLog) Path() string { return l.path }

// Append writes "<label>: <value> cm\n".
func (l *MeasurementLog) Append(label string, valueCm float64) error {
	line := fmt.Sprintf("%s: %.*f cm\n", label, l.precision, models.Round(valueCm, l.precision))

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &models.IOFailure{Op: "open", Path: l.path, Err: err}
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return &models.IOFailure{Op: "write", Path: l.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &models.IOFailure{Op: "close", Path: l.path, Err: err}
	}
	return nil
}
