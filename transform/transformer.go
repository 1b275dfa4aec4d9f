// Package transform merges the raw hourly exports of a day, enriches them with
// danger levels and daily statistics and writes them as a star schema:
// one fact table and four dimension tables.
package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
)

const defaultConcurrency = 4

// Transformer turns the raw files of a day into star schema tables.
type Transformer struct {
	storage     geodair.Storage
	parsers     map[string]Parser
	concurrency int
	referential geodair.Referential
	notifier    geodair.Notifier
	metrics     *geodair.Metrics
}

// New builds a Transformer reading and writing s.
func New(s geodair.Storage, opts ...Option) (*Transformer, error) {
	t := &Transformer{
		storage: s,
		parsers: map[string]Parser{
			".csv": CSVParser(nil),
			".xls": XLSParser(),
		},
		concurrency: defaultConcurrency,
		referential: geodair.DefaultReferential,
		notifier:    geodair.NopNotifier{},
	}

	for _, o := range opts {
		if err := o.apply(t); err != nil {
			return nil, err
		}
	}

	if t.metrics == nil {
		t.metrics = geodair.NewMetrics(prometheus.NewRegistry())
	}

	return t, nil
}

// Run transforms the raw files of the date. It always returns a report, and
// never panics.
func (t *Transformer) Run(ctx context.Context, date string) (rep *geodair.Report) {
	ctx = geodair.StartRun(ctx, geodair.StageTransform, date)
	l := log.Ctx(ctx)
	started := time.Now()

	l.Info().Msg("transform started")

	defer func() {
		if r := recover(); r != nil {
			rep = geodair.FailedReport(geodair.StageTransform, date,
				fmt.Sprintf("transform crashed: %v", r), xerrors.Errorf("panic: %v", r))
		}

		if rep.Status == geodair.StatusOK {
			l.Info().Str("status", rep.Status.String()).Msg(rep.Message)
		} else {
			l.Error().Err(rep.Err).Str("status", rep.Status.String()).Msg(rep.Message)
		}

		t.metrics.ObserveRun(rep, time.Since(started))

		if err := t.notifier.Notify(ctx, rep); err != nil {
			l.Warn().Err(err).Msg("failed to notify report")
		}
	}()

	return t.run(ctx, date)
}

func (t *Transformer) run(ctx context.Context, date string) *geodair.Report {
	stage := geodair.StageTransform

	objs, err := Locate(ctx, t.storage, date, t.parsers)
	if err != nil {
		return geodair.FailedReport(stage, date, fmt.Sprintf("failed to list raw files: %v", err), err)
	}

	if len(objs) == 0 {
		return geodair.NewReport(stage, date, geodair.StatusOK,
			fmt.Sprintf("nothing to transform: no raw file found for %s", date))
	}

	m := &Merger{
		Storage:     t.storage,
		Parsers:     t.parsers,
		Concurrency: t.concurrency,
		Metrics:     t.metrics,
	}

	merged, err := m.Merge(ctx, objs)
	if err != nil || merged == nil || merged.Len() == 0 {
		if err == nil {
			err = ErrNoReadableFile
		}
		return geodair.FailedReport(stage, date, "failed to merge raw files or merged dataset is empty", err)
	}

	enriched := Enrich(ctx, merged)

	star, err := BuildStarSchema(ctx, enriched, t.referential)
	if err != nil {
		return geodair.FailedReport(stage, date, fmt.Sprintf("failed to generate star schema: %v", err), err)
	}

	w := &Writer{Storage: t.storage, Metrics: t.metrics}

	paths, err := w.Save(ctx, date, star)
	if err != nil {
		return geodair.FailedReport(stage, date, fmt.Sprintf("failed to save star schema: %v", err), err)
	}

	rep := geodair.NewReport(stage, date, geodair.StatusOK,
		fmt.Sprintf("transformation finished: %d tables created", len(paths)))
	rep.Tables = paths

	return rep
}
