package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hazardscope/hazardscope/pkg/fault"
)

// RowError describes a row that was skipped during a load.
type RowError struct {
	Line   int    `json:"line"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) String() string {
	if e.ID != "" {
		return fmt.Sprintf("line %d (%s): %s", e.Line, e.ID, e.Reason)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// LoadReport summarises one load of a source.
type LoadReport struct {
	Source  string     `json:"source"`
	Rows    int        `json:"rows"`
	Loaded  int        `json:"loaded"`
	Skipped []RowError `json:"skipped,omitempty"`
}

// Loader accumulates decoded records in arrival order, skipping malformed
// rows and duplicate identifiers.
type Loader[T Keyed] struct {
	codec  Codec[T]
	report *LoadReport
	seen   map[string]bool
	items  []T
}

// NewLoader returns a Loader reporting against source.
func NewLoader[T Keyed](source string, codec Codec[T]) *Loader[T] {
	return &Loader[T]{
		codec:  codec,
		report: &LoadReport{Source: source},
		seen:   make(map[string]bool),
	}
}

// Add decodes one row. line is the 1-based position used in warnings.
func (l *Loader[T]) Add(line int, fields map[string]string) {
	l.report.Rows++
	item, err := l.codec.Decode(fields)
	if err != nil {
		l.Skip(line, strings.TrimSpace(fields[FieldID]), err.Error())
		return
	}
	key := item.Key()
	if l.seen[key] {
		l.Skip(line, key, "duplicate id")
		return
	}
	l.seen[key] = true
	l.items = append(l.items, item)
	l.report.Loaded++
}

// Skip records a row that could not be read at all.
func (l *Loader[T]) Skip(line int, id, reason string) {
	l.report.Skipped = append(l.report.Skipped, RowError{Line: line, ID: id, Reason: reason})
}

// Result returns the decoded records and the report.
func (l *Loader[T]) Result() ([]T, *LoadReport) {
	return l.items, l.report
}

// ReadCSV decodes a delimited file with a header row. A missing required
// column or an unreadable stream is a DataLoad error naming source; bad rows
// are skipped and listed in the report.
func ReadCSV[T Keyed](r io.Reader, source string, codec Codec[T]) ([]T, *LoadReport, error) {
	const op = "record.ReadCSV"

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fault.DataLoad(op, source, errors.New("empty file, no header row"))
	}
	if err != nil {
		return nil, nil, fault.DataLoad(op, source, fmt.Errorf("read header: %w", err))
	}

	columns := make([]string, len(header))
	present := make(map[string]bool)
	for i, h := range header {
		if name, ok := codec.Canonical(h); ok && !present[name] {
			columns[i] = name
			present[name] = true
		}
	}
	for _, req := range codec.Required() {
		if !present[req] {
			return nil, nil, fault.DataLoad(op, source, fmt.Errorf("missing required %s column %q", codec.Kind(), req))
		}
	}

	loader := NewLoader(source, codec)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				loader.report.Rows++
				loader.Skip(perr.Line, "", perr.Err.Error())
				continue
			}
			return nil, nil, fault.DataLoad(op, source, fmt.Errorf("read row: %w", err))
		}
		if isBlank(row) {
			continue
		}
		line, _ := cr.FieldPos(0)

		fields := make(map[string]string, len(columns))
		for i, v := range row {
			if i < len(columns) && columns[i] != "" {
				fields[columns[i]] = v
			}
		}
		loader.Add(line, fields)
	}

	items, report := loader.Result()
	return items, report, nil
}

// WriteCSV writes items with a header of the codec's canonical columns.
func WriteCSV[T any](w io.Writer, codec Codec[T], items []T) error {
	cw := csv.NewWriter(w)
	cols := codec.Columns()
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(cols))
	for _, item := range items {
		fields := codec.Encode(item)
		for i, c := range cols {
			row[i] = fields[c]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", fields[FieldID], err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
