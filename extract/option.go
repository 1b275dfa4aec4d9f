package extract

import (
	"time"

	"golang.org/x/xerrors"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
)

// Option configures Extractor.
type Option interface {
	apply(*Extractor) error
}

type optionFunc func(*Extractor) error

func (f optionFunc) apply(e *Extractor) error {
	return f(e)
}

// WithWaits sets the delay between an export request and its download, and
// the delay between two pollutants.
func WithWaits(export, pollutant time.Duration) Option {
	return optionFunc(func(e *Extractor) error {
		if export < 0 || pollutant < 0 {
			return xerrors.New("waits must not be negative")
		}
		e.exportWait = export
		e.pollutantWait = pollutant
		return nil
	})
}

// WithReferential sets the pollutants to extract.
func WithReferential(ref geodair.Referential) Option {
	return optionFunc(func(e *Extractor) error {
		e.referential = ref
		return nil
	})
}

// WithNotifier sets the notifier of run reports.
func WithNotifier(n geodair.Notifier) Option {
	return optionFunc(func(e *Extractor) error {
		e.notifier = n
		return nil
	})
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *geodair.Metrics) Option {
	return optionFunc(func(e *Extractor) error {
		e.metrics = m
		return nil
	})
}
