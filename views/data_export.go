package views

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"body-measure/models"
)

// CSVWriter is a concurrency-safe, buffered CSV writer for per-session
// exports. Flush is driven by the recording controller so the capture loop
// never waits on disk.
type CSVWriter struct {
	mu   sync.Mutex
	kind ExportKind
	path string
	file *os.File
	buf  *bufio.Writer
	csv  *csv.Writer
	rows uint64
}

// NewCSVWriter creates path and writes the export's header row.
func NewCSVWriter(path string, kind ExportKind, bufSizeBytes int, writeHeader bool) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv create %s: %w", path, err)
	}

	if bufSizeBytes <= 0 {
		bufSizeBytes = 64 * 1024
	}

	bw := bufio.NewWriterSize(f, bufSizeBytes)
	cw := csv.NewWriter(bw)

	w := &CSVWriter{
		kind: kind,
		path: path,
		file: f,
		buf:  bw,
		csv:  cw,
	}

	if writeHeader {
		if err := cw.Write(Header(kind)); err != nil {
			f.Close()
			return nil, fmt.Errorf("csv write header: %w", err)
		}
	}

	return w, nil
}

// WriteRow appends a single CSV row after checking it against the schema.
func (w *CSVWriter) WriteRow(row []string) error {
	if err := ValidateRow(w.kind, row); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("csv write %s: %w", w.path, err)
	}
	w.rows++
	return nil
}

// Write appends one model's row.
func (w *CSVWriter) Write(rec models.CSVRowWriter) error {
	return w.WriteRow(rec.CSVRow())
}

// Flush pushes the buffered data to the OS.
func (w *CSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("csv flush %s: %w", w.path, err)
	}
	return w.buf.Flush()
}

// Close flushes remaining data and closes the file.
func (w *CSVWriter) Close() error {
	ferr := w.Flush()
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return err
	}
	return ferr
}

// Rows returns the number of data rows written (excludes header).
func (w *CSVWriter) Rows() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Path is the file being written.
func (w *CSVWriter) Path() string { return w.path }
