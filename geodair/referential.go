package geodair

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// ReferentialObjectName is the object name of the pollutant referential.
const ReferentialObjectName = "referentiel/polluants.json"

// Pollutant is a pollutant tracked by Geod'air.
type Pollutant struct {
	// Code is the Geod'air pollutant code such as "03".
	Code string `json:"code"`

	// ShortName is the pollutant name used in exports such as "NO2".
	ShortName string `json:"nom_court"`

	// Label is the human readable name such as "Dioxyde d'azote".
	Label string `json:"libelle"`
}

// Referential is a list of pollutants.
type Referential []Pollutant

// DefaultReferential lists the pollutants of the Geod'air documentation.
var DefaultReferential = Referential{
	{Code: "03", ShortName: "NO2", Label: "Dioxyde d'azote"},
	{Code: "08", ShortName: "O3", Label: "Ozone"},
	{Code: "24", ShortName: "PM10", Label: "Particules PM10"},
	{Code: "39", ShortName: "PM2.5", Label: "Particules PM2.5"},
	{Code: "01", ShortName: "SO2", Label: "Dioxyde de soufre"},
	{Code: "04", ShortName: "CO", Label: "Monoxyde de carbone"},
}

// ByShortName finds a pollutant by its short name, ignoring case.
func (r Referential) ByShortName(name string) (Pollutant, bool) {
	name = strings.TrimSpace(name)
	for _, p := range r {
		if strings.EqualFold(p.ShortName, name) {
			return p, true
		}
	}

	return Pollutant{}, false
}

// LoadReferential reads the referential from storage.
// ErrObjectNotFound is returned when it has never been published.
func LoadReferential(ctx context.Context, s Storage) (Referential, error) {
	r, err := s.NewReader(ctx, ReferentialObjectName)
	if err != nil {
		return nil, xerrors.Errorf("failed to open referential: %w", err)
	}
	defer r.Close()

	var ref Referential
	if err := json.NewDecoder(r).Decode(&ref); err != nil {
		return nil, xerrors.Errorf("failed to decode referential: %w", err)
	}

	return ref, nil
}

// PublishReferential writes the referential to storage as JSON.
func PublishReferential(ctx context.Context, s Storage, ref Referential) error {
	w, err := s.NewWriter(ctx, ReferentialObjectName, "application/json")
	if err != nil {
		return xerrors.Errorf("failed to open referential writer: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ref); err != nil {
		AbortWriter(w)
		return xerrors.Errorf("failed to encode referential: %w", err)
	}

	if err := w.Close(); err != nil {
		return xerrors.Errorf("failed to write referential: %w", err)
	}

	log.Ctx(ctx).Info().Int("pollutants", len(ref)).Msg("referential published")

	return nil
}
