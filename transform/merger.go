package transform

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
)

var (
	// ErrNoReadableFile is returned by Merge when every file failed to be read.
	ErrNoReadableFile = errors.New("no readable raw file")

	errEmptyFile = errors.New("empty file")
)

// Merger reads raw files and concatenates them into one table.
type Merger struct {
	Storage geodair.Storage

	// Parsers maps lower-cased file extensions such as ".csv" to parsers.
	Parsers map[string]Parser

	// Concurrency bounds the number of files read in parallel.
	Concurrency int

	Metrics *geodair.Metrics
}

// Merge reads every object and concatenates the tables with a union of their columns.
//
// A file which cannot be read is logged and skipped. Merging no object returns
// a nil table without error; ErrNoReadableFile is returned when every file failed.
func (m *Merger) Merge(ctx context.Context, objs []geodair.Object) (*Table, error) {
	if len(objs) == 0 {
		return nil, nil
	}

	tables := make([]*Table, len(objs))

	var g errgroup.Group
	if m.Concurrency > 0 {
		g.SetLimit(m.Concurrency)
	}

	for i, o := range objs {
		i, o := i, o
		g.Go(func() error {
			l := log.Ctx(ctx).With().Str("file", o.FullPath()).Logger()

			t, err := m.read(l.WithContext(ctx), o)
			if err != nil {
				l.Warn().Err(err).Msg("failed to read raw file, skipped")
				if m.Metrics != nil {
					m.Metrics.FilesFailedTotal.Inc()
				}
				return nil
			}

			l.Debug().Int("rows", t.Len()).Strs("columns", t.Columns).Msg("raw file read")
			if m.Metrics != nil {
				m.Metrics.FilesReadTotal.Inc()
			}
			tables[i] = t

			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, xerrors.Errorf("merge interrupted: %w", err)
	}

	var merged *Table
	for _, t := range tables {
		if t == nil {
			continue
		}
		if merged == nil {
			merged = NewTable()
		}
		merged.Append(t)
	}

	if merged == nil {
		return nil, ErrNoReadableFile
	}

	if m.Metrics != nil {
		m.Metrics.RowsMergedTotal.Add(float64(merged.Len()))
	}

	return merged, nil
}

func (m *Merger) read(ctx context.Context, o geodair.Object) (*Table, error) {
	parse, ok := m.Parsers[strings.ToLower(o.Ext())]
	if !ok {
		return nil, xerrors.Errorf("no parser for %s", o.Name)
	}

	r, err := m.Storage.NewReader(ctx, o.Name)
	if err != nil {
		return nil, xerrors.Errorf("failed to open %s: %w", o.Name, err)
	}
	defer r.Close()

	records, err := parse(ctx, r)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse %s: %w", o.Name, err)
	}

	return tableFromRecords(ctx, records)
}

// tableFromRecords builds a table from a header record and data records.
// Records longer than the header are dropped and shorter ones padded with nulls.
func tableFromRecords(ctx context.Context, records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, errEmptyFile
	}

	header := normalizeHeader(records[0])
	t := NewTable(header...)

	dropped := 0
	for _, rec := range records[1:] {
		if len(rec) > len(header) {
			dropped++
			continue
		}

		row := make([]string, len(header))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}

	if dropped > 0 {
		log.Ctx(ctx).Warn().Int("dropped", dropped).Msg("rows with too many fields dropped")
	}

	return t, nil
}

// normalizeHeader removes byte order marks and surrounding spaces from column
// names. Duplicated names get a ".N" suffix.
func normalizeHeader(header []string) []string {
	cols := make([]string, len(header))
	seen := map[string]int{}

	for i, h := range header {
		c := strings.TrimSpace(strings.ReplaceAll(h, "\ufeff", ""))

		if n, ok := seen[c]; ok {
			seen[c] = n + 1
			c = c + "." + strconv.Itoa(n+1)
		} else {
			seen[c] = 0
		}

		cols[i] = c
	}

	return cols
}
