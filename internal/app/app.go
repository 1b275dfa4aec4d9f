// Package app builds the pipeline stages from a Config and runs them.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/extract"
	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
	"github.com/MehdiBC3/Projet-ETL-Pipelines/load"
	"github.com/MehdiBC3/Projet-ETL-Pipelines/transform"
)

// App runs pipeline stages configured by a Config.
type App struct {
	cfg      *geodair.Config
	metrics  *geodair.Metrics
	notifier geodair.Notifier

	// now is replaced in tests.
	now func() time.Time
}

// New builds an App. Metrics are registered to reg.
func New(cfg *geodair.Config, reg prometheus.Registerer) *App {
	return &App{
		cfg:      cfg,
		metrics:  geodair.NewMetrics(reg),
		notifier: geodair.NewNotifier(cfg.Slack),
		now:      time.Now,
	}
}

// Run runs the stage for date, yesterday when date is empty.
// Invalid configuration is reported as a failed run before any I/O.
func (a *App) Run(ctx context.Context, stage geodair.Stage, date string, force bool) *geodair.Report {
	l := log.Ctx(ctx)

	if date == "" {
		date = geodair.Yesterday(a.now())
	} else {
		d, err := geodair.ParseDate(date)
		if err != nil {
			return geodair.FailedReport(stage, date, fmt.Sprintf("fatal: %v", err), err)
		}
		date = d
	}

	if err := a.cfg.Validate(stage); err != nil {
		l.Error().Err(err).Str("stage", string(stage)).Msg("invalid configuration")
		return geodair.FailedReport(stage, date, fmt.Sprintf("fatal: %v", err), err)
	}

	var (
		rep *geodair.Report
		err error
	)

	switch stage {
	case geodair.StageExtract:
		rep, err = a.extract(ctx, date)
	case geodair.StageTransform:
		rep, err = a.transform(ctx, date)
	case geodair.StageLoad:
		rep, err = a.load(ctx, date, force)
	default:
		err = xerrors.Errorf("unknown stage %q", stage)
	}

	if err != nil {
		l.Error().Err(err).Str("stage", string(stage)).Msg("failed to set up stage")
		return geodair.FailedReport(stage, date, fmt.Sprintf("fatal: %v", err), err)
	}

	return rep
}

// Handler returns an HTTP handler running the stage. The date and force query
// parameters are optional. The response is the plain text report message.
func (a *App) Handler(stage geodair.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		force := false
		if v := q.Get("force"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid force parameter %q", v), http.StatusBadRequest)
				return
			}
			force = b
		}

		rep := a.Run(r.Context(), stage, q.Get("date"), force)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(rep.HTTPStatus())
		fmt.Fprintln(w, rep.Message)
	}
}

// Storage opens the storage of the configuration: the local directory when
// set, the Cloud Storage bucket otherwise.
func (a *App) Storage(ctx context.Context) (geodair.Storage, io.Closer, error) {
	if a.cfg.LocalDir != "" {
		s, err := geodair.NewDirStorage(a.cfg.LocalDir)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	}

	s, err := geodair.NewGCSStorage(ctx, a.cfg.Bucket)
	if err != nil {
		return nil, nil, err
	}

	return s, s, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (a *App) referential(ctx context.Context, s geodair.Storage) geodair.Referential {
	l := log.Ctx(ctx)

	ref, err := geodair.LoadReferential(ctx, s)
	switch {
	case err == nil && len(ref) > 0:
		l.Debug().Int("pollutants", len(ref)).Msg("referential loaded from storage")
		return ref
	case err == nil, xerrors.Is(err, geodair.ErrObjectNotFound):
		l.Debug().Msg("using built-in referential")
	default:
		l.Warn().Err(err).Msg("failed to load referential, using built-in referential")
	}

	return geodair.DefaultReferential
}

func (a *App) extract(ctx context.Context, date string) (*geodair.Report, error) {
	s, closer, err := a.Storage(ctx)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	e, err := extract.New(
		extract.NewClient(a.cfg.APIBaseURL, a.cfg.APIKey),
		s,
		extract.WithReferential(a.referential(ctx, s)),
		extract.WithNotifier(a.notifier),
		extract.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, err
	}

	return e.Run(ctx, date), nil
}

func (a *App) transform(ctx context.Context, date string) (*geodair.Report, error) {
	s, closer, err := a.Storage(ctx)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	opts := []transform.Option{
		transform.WithConcurrency(a.cfg.Concurrency),
		transform.WithReferential(a.referential(ctx, s)),
		transform.WithNotifier(a.notifier),
		transform.WithMetrics(a.metrics),
	}

	enc, err := a.cfg.Encoding()
	if err != nil {
		return nil, err
	}
	if enc != nil {
		opts = append(opts, transform.WithEncoding(enc))
	}

	t, err := transform.New(s, opts...)
	if err != nil {
		return nil, err
	}

	return t.Run(ctx, date), nil
}

func (a *App) load(ctx context.Context, date string, force bool) (*geodair.Report, error) {
	opts := []load.Option{
		load.WithWriteDisposition(a.cfg.WriteDisposition),
		load.WithForce(force),
		load.WithNotifier(a.notifier),
		load.WithMetrics(a.metrics),
	}

	if a.cfg.JournalPath != "" {
		j, err := load.OpenJournal(a.cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		defer j.Close()

		opts = append(opts, load.WithJournal(j))
	}

	ld, err := load.New(ctx, a.cfg.Bucket, a.cfg.Project, a.cfg.Dataset, opts...)
	if err != nil {
		return nil, err
	}

	return ld.Run(ctx, date), nil
}
