package load

import (
	"cloud.google.com/go/bigquery"
	"golang.org/x/xerrors"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
)

// Option configures Loader.
type Option interface {
	apply(*Loader) error
}

type optionFunc func(*Loader) error

func (f optionFunc) apply(l *Loader) error {
	return f(l)
}

// WithWriteDisposition sets the write disposition of load jobs:
// WRITE_APPEND (default), WRITE_TRUNCATE or WRITE_EMPTY.
func WithWriteDisposition(d string) Option {
	return optionFunc(func(l *Loader) error {
		switch wd := bigquery.TableWriteDisposition(d); wd {
		case bigquery.WriteAppend, bigquery.WriteTruncate, bigquery.WriteEmpty:
			l.disposition = wd
			return nil
		default:
			return xerrors.Errorf("unknown write disposition %q", d)
		}
	})
}

// WithJournal records loaded tables in j and skips tables already loaded.
func WithJournal(j *Journal) Option {
	return optionFunc(func(l *Loader) error {
		l.journal = j
		return nil
	})
}

// WithForce loads tables even when the journal records them as loaded.
func WithForce(force bool) Option {
	return optionFunc(func(l *Loader) error {
		l.force = force
		return nil
	})
}

// WithTables restricts the loaded tables.
func WithTables(tables ...string) Option {
	return optionFunc(func(l *Loader) error {
		if len(tables) == 0 {
			return xerrors.New("no table to load")
		}
		l.tables = tables
		return nil
	})
}

// WithNotifier sets the notifier of run reports.
func WithNotifier(n geodair.Notifier) Option {
	return optionFunc(func(l *Loader) error {
		l.notifier = n
		return nil
	})
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *geodair.Metrics) Option {
	return optionFunc(func(l *Loader) error {
		l.metrics = m
		return nil
	})
}
