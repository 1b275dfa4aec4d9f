package transform

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
)

// Writer persists star schema tables to storage.
type Writer struct {
	Storage geodair.Storage
	Metrics *geodair.Metrics
}

// Save writes each table of the star schema under the transform path of the
// date, replacing previous files, and returns the path of each table by name.
// Save stops at the first table which cannot be written.
func (w *Writer) Save(ctx context.Context, date string, star *StarSchema) (map[string]string, error) {
	paths := make(map[string]string, len(TableNames))

	for _, name := range TableNames {
		t := star.Table(name)
		path := geodair.TransformObjectName(date, name)

		if err := w.write(ctx, path, t); err != nil {
			return nil, xerrors.Errorf("failed to save %s: %w", name, err)
		}

		log.Ctx(ctx).Info().Str("table", name).Str("path", path).Int("rows", t.Len()).Msg("table saved")
		if w.Metrics != nil {
			w.Metrics.TablesWrittenTotal.WithLabelValues(name).Inc()
			w.Metrics.TableRows.WithLabelValues(name).Set(float64(t.Len()))
		}

		paths[name] = path
	}

	return paths, nil
}

func (w *Writer) write(ctx context.Context, path string, t *Table) error {
	wc, err := w.Storage.NewWriter(ctx, path, "text/csv")
	if err != nil {
		return xerrors.Errorf("failed to open writer: %w", err)
	}

	if err := t.WriteCSV(wc); err != nil {
		if aerr := geodair.AbortWriter(wc); aerr != nil {
			log.Ctx(ctx).Warn().Err(aerr).Str("path", path).Msg("failed to discard partial table")
		}
		return err
	}

	if err := wc.Close(); err != nil {
		return xerrors.Errorf("failed to commit %s: %w", path, err)
	}

	return nil
}
