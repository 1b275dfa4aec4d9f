package transform

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/xerrors"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
)

// Option configures Transformer.
type Option interface {
	apply(*Transformer) error
}

type optionFunc func(*Transformer) error

func (f optionFunc) apply(t *Transformer) error {
	return f(t)
}

// WithConcurrency sets the number of raw files read in parallel.
func WithConcurrency(n int) Option {
	return optionFunc(func(t *Transformer) error {
		if n < 1 {
			return xerrors.Errorf("concurrency must be positive: %d", n)
		}
		t.concurrency = n
		return nil
	})
}

// WithEncoding sets the encoding of raw CSV files without byte order mark.
func WithEncoding(enc encoding.Encoding) Option {
	return optionFunc(func(t *Transformer) error {
		t.parsers[".csv"] = CSVParser(enc)
		return nil
	})
}

// WithParser registers a parser for files with the extension such as ".txt".
func WithParser(ext string, p Parser) Option {
	return optionFunc(func(t *Transformer) error {
		if !strings.HasPrefix(ext, ".") {
			return xerrors.Errorf("extension must start with a dot: %q", ext)
		}
		t.parsers[strings.ToLower(ext)] = p
		return nil
	})
}

// WithReferential sets the pollutant referential used to name pollutants.
func WithReferential(ref geodair.Referential) Option {
	return optionFunc(func(t *Transformer) error {
		t.referential = ref
		return nil
	})
}

// WithNotifier sets the notifier of run reports.
func WithNotifier(n geodair.Notifier) Option {
	return optionFunc(func(t *Transformer) error {
		t.notifier = n
		return nil
	})
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *geodair.Metrics) Option {
	return optionFunc(func(t *Transformer) error {
		t.metrics = m
		return nil
	})
}
