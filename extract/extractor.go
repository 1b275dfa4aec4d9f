// Package extract downloads the hourly exports of the Geod'air API.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
)

const (
	defaultExportWait    = 5 * time.Second
	defaultPollutantWait = 2 * time.Second
)

// Extractor downloads the raw hourly means of every pollutant of a day into storage.
type Extractor struct {
	client      *Client
	storage     geodair.Storage
	referential geodair.Referential

	// exportWait is the delay between an export request and its download.
	exportWait time.Duration

	// pollutantWait is the delay between two pollutants.
	pollutantWait time.Duration

	notifier geodair.Notifier
	metrics  *geodair.Metrics
}

// New builds an Extractor.
func New(c *Client, s geodair.Storage, opts ...Option) (*Extractor, error) {
	e := &Extractor{
		client:        c,
		storage:       s,
		referential:   geodair.DefaultReferential,
		exportWait:    defaultExportWait,
		pollutantWait: defaultPollutantWait,
		notifier:      geodair.NopNotifier{},
	}

	for _, o := range opts {
		if err := o.apply(e); err != nil {
			return nil, err
		}
	}

	if e.metrics == nil {
		e.metrics = geodair.NewMetrics(prometheus.NewRegistry())
	}

	return e, nil
}

// Run extracts every pollutant of the referential at date. It always returns a report.
func (e *Extractor) Run(ctx context.Context, date string) (rep *geodair.Report) {
	ctx = geodair.StartRun(ctx, geodair.StageExtract, date)
	l := log.Ctx(ctx)
	started := time.Now()

	l.Info().Int("pollutants", len(e.referential)).Msg("extraction started")

	defer func() {
		if r := recover(); r != nil {
			rep = geodair.FailedReport(geodair.StageExtract, date,
				fmt.Sprintf("extraction crashed: %v", r), xerrors.Errorf("panic: %v", r))
		}

		if rep.Status == geodair.StatusOK {
			l.Info().Str("status", rep.Status.String()).Msg(rep.Message)
		} else {
			l.Error().Err(rep.Err).Str("status", rep.Status.String()).Msg(rep.Message)
		}

		e.metrics.ObserveRun(rep, time.Since(started))

		if err := e.notifier.Notify(ctx, rep); err != nil {
			l.Warn().Err(err).Msg("failed to notify report")
		}
	}()

	return e.run(ctx, date)
}

func (e *Extractor) run(ctx context.Context, date string) *geodair.Report {
	stage := geodair.StageExtract

	if len(e.referential) == 0 {
		return geodair.FailedReport(stage, date, "no pollutant to extract", xerrors.New("empty referential"))
	}

	failures := []string{}
	var lastErr error

	for i, p := range e.referential {
		if i > 0 {
			if err := sleep(ctx, e.pollutantWait); err != nil {
				return geodair.FailedReport(stage, date, "extraction canceled", err)
			}
		}

		pl := log.Ctx(ctx).With().Str("pollutant", p.ShortName).Str("code", p.Code).Logger()

		if err := e.extractOne(pl.WithContext(ctx), date, p); err != nil {
			pl.Error().Err(err).Msg("failed to extract pollutant")
			e.metrics.PollutantsExtractedTotal.WithLabelValues(p.ShortName, "failed").Inc()
			failures = append(failures, p.ShortName)
			lastErr = err
			continue
		}

		e.metrics.PollutantsExtractedTotal.WithLabelValues(p.ShortName, "extracted").Inc()
	}

	succeeded := len(e.referential) - len(failures)
	msg := fmt.Sprintf("extraction finished: %d/%d pollutants extracted", succeeded, len(e.referential))

	var rep *geodair.Report
	switch {
	case len(failures) == 0:
		rep = geodair.NewReport(stage, date, geodair.StatusOK, msg)
	case succeeded == 0:
		rep = geodair.FailedReport(stage, date, fmt.Sprintf("%s, failed: %s", msg, strings.Join(failures, ", ")), lastErr)
	default:
		rep = geodair.NewReport(stage, date, geodair.StatusPartial, fmt.Sprintf("%s, failed: %s", msg, strings.Join(failures, ", ")))
		rep.Err = lastErr
	}
	rep.Failures = failures

	return rep
}

func (e *Extractor) extractOne(ctx context.Context, date string, p geodair.Pollutant) error {
	l := log.Ctx(ctx)

	l.Info().Msg("requesting export")
	id, err := e.client.RequestExport(ctx, date, p.Code)
	if err != nil {
		return err
	}

	if err := sleep(ctx, e.exportWait); err != nil {
		return err
	}

	l.Info().Str("export_id", id).Msg("downloading export")
	body, err := e.client.Download(ctx, id)
	if err != nil {
		return err
	}

	name := geodair.RawObjectName(date, p.Code)

	w, err := e.storage.NewWriter(ctx, name, "text/csv")
	if err != nil {
		return xerrors.Errorf("failed to open %s: %w", name, err)
	}

	if _, err := w.Write(body); err != nil {
		geodair.AbortWriter(w)
		return xerrors.Errorf("failed to write %s: %w", name, err)
	}

	if err := w.Close(); err != nil {
		return xerrors.Errorf("failed to commit %s: %w", name, err)
	}

	l.Info().Str("object", name).Int("bytes", len(body)).Msg("pollutant extracted")

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
