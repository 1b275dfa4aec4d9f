// Package load loads star schema tables from Cloud Storage into BigQuery.
package load

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
	"github.com/MehdiBC3/Projet-ETL-Pipelines/transform"
)

// tableLoader loads a CSV file of Cloud Storage into a table such as a BigQuery table.
type tableLoader interface {
	load(ctx context.Context, uri, table string) (uint64, error)
}

type bigqueryLoader struct {
	client      *bigquery.Client
	dataset     string
	disposition bigquery.TableWriteDisposition
}

func newBigQueryLoader(ctx context.Context, project, dataset string, disposition bigquery.TableWriteDisposition) (*bigqueryLoader, error) {
	bq, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, xerrors.Errorf("failed to build bigquery client for %s: %w", project, err)
	}

	return &bigqueryLoader{client: bq, dataset: dataset, disposition: disposition}, nil
}

// load runs a load job and returns the number of rows of the table after the job.
func (l *bigqueryLoader) load(ctx context.Context, uri, table string) (uint64, error) {
	lg := log.Ctx(ctx)

	ref := bigquery.NewGCSReference(uri)
	ref.SourceFormat = bigquery.CSV
	ref.FieldDelimiter = ";"
	ref.SkipLeadingRows = 1
	ref.AutoDetect = true

	t := l.client.Dataset(l.dataset).Table(table)
	loader := t.LoaderFrom(ref)
	loader.WriteDisposition = l.disposition

	job, err := loader.Run(ctx)
	if err != nil {
		return 0, xerrors.Errorf("failed to run bigquery load job: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, xerrors.Errorf("failed to wait job %s: %w", job.ID(), err)
	}

	if status.Err() != nil {
		lg.Error().Interface("errors", status.Errors).Msg("load job failed")
		return 0, xerrors.Errorf("failed to load csv: %w", status.Err())
	}

	md, err := t.Metadata(ctx)
	if err != nil {
		return 0, xerrors.Errorf("failed to get metadata of %s: %w", table, err)
	}

	return md.NumRows, nil
}

// Loader loads the star schema tables of a day into BigQuery.
type Loader struct {
	bucket  string
	project string
	dataset string
	tables  []string

	disposition bigquery.TableWriteDisposition
	force       bool

	loader   tableLoader
	journal  *Journal
	notifier geodair.Notifier
	metrics  *geodair.Metrics
}

// New builds a Loader of files in bucket into project.dataset.
func New(ctx context.Context, bucket, project, dataset string, opts ...Option) (*Loader, error) {
	l := &Loader{
		bucket:      bucket,
		project:     project,
		dataset:     dataset,
		tables:      transform.TableNames,
		disposition: bigquery.WriteAppend,
		notifier:    geodair.NopNotifier{},
	}

	for _, o := range opts {
		if err := o.apply(l); err != nil {
			return nil, err
		}
	}

	if l.metrics == nil {
		l.metrics = geodair.NewMetrics(prometheus.NewRegistry())
	}

	if l.loader == nil {
		bl, err := newBigQueryLoader(ctx, project, dataset, l.disposition)
		if err != nil {
			return nil, err
		}
		l.loader = bl
	}

	return l, nil
}

// URI returns the Cloud Storage URI of a table file of the date.
func (l *Loader) URI(date, table string) string {
	return fmt.Sprintf("gs://%s/%s", l.bucket, geodair.TransformObjectName(date, table))
}

// Run loads every table of the date. Tables already recorded in the journal are
// skipped unless the loader is forced. It always returns a report.
func (l *Loader) Run(ctx context.Context, date string) (rep *geodair.Report) {
	ctx = geodair.StartRun(ctx, geodair.StageLoad, date)
	lg := log.Ctx(ctx)
	started := time.Now()

	lg.Info().Str("dataset", l.project+"."+l.dataset).Msg("load started")

	defer func() {
		if r := recover(); r != nil {
			rep = geodair.FailedReport(geodair.StageLoad, date,
				fmt.Sprintf("load crashed: %v", r), xerrors.Errorf("panic: %v", r))
		}

		if rep.Status == geodair.StatusOK {
			lg.Info().Str("status", rep.Status.String()).Msg(rep.Message)
		} else {
			lg.Error().Err(rep.Err).Str("status", rep.Status.String()).Msg(rep.Message)
		}

		l.metrics.ObserveRun(rep, time.Since(started))

		if err := l.notifier.Notify(ctx, rep); err != nil {
			lg.Warn().Err(err).Msg("failed to notify report")
		}
	}()

	return l.run(ctx, date)
}

func (l *Loader) run(ctx context.Context, date string) *geodair.Report {
	lg := log.Ctx(ctx)

	loaded := map[string]string{}
	failures := []string{}
	skipped := 0
	var lastErr error

	for _, table := range l.tables {
		tl := lg.With().Str("table", table).Logger()

		if l.journal != nil && !l.force {
			done, err := l.journal.Loaded(ctx, date, table)
			if err != nil {
				tl.Warn().Err(err).Msg("failed to read load journal")
			} else if done {
				tl.Info().Msg("table already loaded for this date, skipped")
				l.metrics.TablesLoadedTotal.WithLabelValues(table, "skipped").Inc()
				skipped++
				continue
			}
		}

		uri := l.URI(date, table)
		tl.Info().Str("uri", uri).Msg("loading table")

		rows, err := l.loader.load(ctx, uri, table)
		if err != nil {
			tl.Error().Err(err).Msg("failed to load table")
			l.metrics.TablesLoadedTotal.WithLabelValues(table, "failed").Inc()
			failures = append(failures, table)
			lastErr = err
			continue
		}

		tl.Info().Uint64("total_rows", rows).Msg("table loaded")
		l.metrics.TablesLoadedTotal.WithLabelValues(table, "loaded").Inc()
		loaded[table] = uri

		if l.journal != nil {
			if err := l.journal.Record(ctx, date, table, rows); err != nil {
				tl.Warn().Err(err).Msg("failed to record load in journal")
			}
		}
	}

	stage := geodair.StageLoad

	var rep *geodair.Report
	switch {
	case len(failures) == 0:
		msg := fmt.Sprintf("load completed for %s", date)
		if skipped > 0 {
			msg = fmt.Sprintf("%s (%d tables already loaded)", msg, skipped)
		}
		rep = geodair.NewReport(stage, date, geodair.StatusOK, msg)
	case len(failures) == len(l.tables):
		rep = geodair.FailedReport(stage, date,
			fmt.Sprintf("load failed for every table: %s", strings.Join(failures, ", ")), lastErr)
	default:
		rep = geodair.NewReport(stage, date, geodair.StatusPartial,
			fmt.Sprintf("partial load, failed tables: %s", strings.Join(failures, ", ")))
		rep.Err = lastErr
	}

	rep.Tables = loaded
	rep.Failures = failures

	return rep
}
