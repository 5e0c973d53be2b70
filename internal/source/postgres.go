package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hazardscope/hazardscope/pkg/record"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// orderColumn fixes row order and is not part of the record.
const orderColumn = "load_order"

// PostgresTable reads a staging table and renders it as CSV, so table rows
// go through the same parsing contract as file rows.
type PostgresTable struct {
	db    *sqlx.DB
	table string
}

// NewPostgresTable validates table as a plain identifier.
func NewPostgresTable(db *sqlx.DB, table string) (*PostgresTable, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresTable{db: db, table: table}, nil
}

func (p *PostgresTable) Name() string { return "postgres:" + p.table }

func (p *PostgresTable) Open(ctx context.Context) (io.ReadCloser, error) {
	rows, err := p.db.QueryxContext(ctx, "SELECT * FROM "+p.table+" ORDER BY "+orderColumn)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", p.table, err)
	}
	var buf bytes.Buffer
	err = renderCSV(&buf, cols, func() ([]any, bool, error) {
		if !rows.Next() {
			return nil, false, rows.Err()
		}
		vals, err := rows.SliceScan()
		return vals, err == nil, err
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.table, err)
	}
	return io.NopCloser(&buf), nil
}

// renderCSV writes a header and one line per row, dropping the order column.
func renderCSV(w io.Writer, cols []string, next func() ([]any, bool, error)) error {
	keep := make([]int, 0, len(cols))
	header := make([]string, 0, len(cols))
	for i, c := range cols {
		if strings.EqualFold(c, orderColumn) {
			continue
		}
		keep = append(keep, i)
		header = append(header, c)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	line := make([]string, len(keep))
	for {
		vals, ok, err := next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		for j, i := range keep {
			line[j] = text(vals[i])
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// ImportPostgres replaces the contents of table with items in order, so a
// later PostgresTable read returns them in the same order.
func ImportPostgres[T any](ctx context.Context, db *sqlx.DB, table string, codec record.Codec[T], items []T) (int, error) {
	if !identRe.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	cols := codec.Columns()
	stmt := insertStatement(table, cols)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return 0, fmt.Errorf("clear %s: %w", table, err)
	}
	for i, it := range items {
		fields := codec.Encode(it)
		arg := make(map[string]any, len(cols))
		for _, c := range cols {
			arg[c] = fields[c]
		}
		if _, err := tx.NamedExecContext(ctx, stmt, arg); err != nil {
			return 0, fmt.Errorf("insert row %d into %s: %w", i+1, table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(items), nil
}

func insertStatement(table string, cols []string) string {
	named := make([]string, len(cols))
	for i, c := range cols {
		named[i] = ":" + c
	}
	return "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(named, ", ") + ")"
}
