package transform

import (
	"encoding/csv"
	"fmt"
	"io"

	"golang.org/x/xerrors"
)

// Table is an in-memory table of text cells. An empty cell is a null value.
// Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// NewTable builds an empty table with columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: columns, Rows: [][]string{}}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}

	return -1
}

// Values returns the cells of the column, or nil when the column does not exist.
func (t *Table) Values(column string) []string {
	i := t.Index(column)
	if i < 0 {
		return nil
	}

	vs := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		vs[r] = row[i]
	}

	return vs
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := &Table{
		Columns: append([]string{}, t.Columns...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		c.Rows[i] = append(make([]string, 0, len(row)+8), row...)
	}

	return c
}

// SetColumn sets values of the column, adding the column when it does not exist.
func (t *Table) SetColumn(column string, values []string) {
	if len(values) != len(t.Rows) {
		panic(fmt.Sprintf("transform: %d values for column %s of %d rows", len(values), column, len(t.Rows)))
	}

	if i := t.Index(column); i >= 0 {
		for r := range t.Rows {
			t.Rows[r][i] = values[r]
		}
		return
	}

	t.Columns = append(t.Columns, column)
	for r := range t.Rows {
		t.Rows[r] = append(t.Rows[r], values[r])
	}
}

// Append appends rows of o, aligning cells by column name.
// Columns missing in t are added and filled with null cells.
func (t *Table) Append(o *Table) {
	for _, c := range o.Columns {
		if t.Index(c) < 0 {
			t.Columns = append(t.Columns, c)
			for r := range t.Rows {
				t.Rows[r] = append(t.Rows[r], "")
			}
		}
	}

	pos := make([]int, len(o.Columns))
	for i, c := range o.Columns {
		pos[i] = t.Index(c)
	}

	for _, row := range o.Rows {
		nr := make([]string, len(t.Columns))
		for i, v := range row {
			nr[pos[i]] = v
		}
		t.Rows = append(t.Rows, nr)
	}
}

// WriteCSV writes the table with its header row as semicolon separated values.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(t.Columns); err != nil {
		return xerrors.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return xerrors.Errorf("failed to write rows: %w", err)
	}

	return nil
}

// distinct keeps the first row of each key.
func distinct(rows [][]string, key func([]string) string) [][]string {
	seen := map[string]struct{}{}
	out := [][]string{}

	for _, row := range rows {
		k := key(row)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}

	return out
}
