package transform

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
)

// Locate lists the non-empty raw files of the date whose extension has a parser.
// No matching file is not an error.
func Locate(ctx context.Context, s geodair.Storage, date string, parsers map[string]Parser) ([]geodair.Object, error) {
	prefix := geodair.RawPrefix(date)

	objs, err := s.List(ctx, prefix)
	if err != nil {
		return nil, xerrors.Errorf("failed to list raw files: %w", err)
	}

	located := []geodair.Object{}
	for _, o := range objs {
		if o.Size <= 0 {
			continue
		}
		if _, ok := parsers[strings.ToLower(o.Ext())]; !ok {
			continue
		}
		located = append(located, o)
	}

	log.Ctx(ctx).Info().
		Str("prefix", prefix).
		Int("listed", len(objs)).
		Int("located", len(located)).
		Msg("raw files located")

	return located, nil
}
