package transform

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/xerrors"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
)

func buildSample(t *testing.T) *StarSchema {
	t.Helper()

	star, err := BuildStarSchema(context.Background(), Enrich(context.Background(), sampleTable(t)), geodair.DefaultReferential)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	return star
}

func TestBuildStarSchema(t *testing.T) {
	t.Parallel()

	star := buildSample(t)

	cases := []struct {
		name string
		want *Table
	}{
		{
			TableTime,
			&Table{
				Columns: []string{"date_debut", "date_jour", "heure", "periode_journee", "jour_semaine", "mois", "annee"},
				Rows: [][]string{
					{"2024-01-15 08:00:00", "2024-01-15", "8", "day", "Monday", "1", "2024"},
					{"2024-01-15 20:00:00", "2024-01-15", "20", "night", "Monday", "1", "2024"},
					{"", "", "", "", "", "", ""},
				},
			},
		},
		{
			TablePollutant,
			&Table{
				Columns: []string{"code_polluant", "unite_mesure", "nom_polluant"},
				Rows:    [][]string{{"NO2", "µg/m3", "Dioxyde d'azote"}},
			},
		},
		{
			TableSite,
			&Table{
				Columns: []string{"code_site", "nom_site", "type_implant"},
				Rows: [][]string{
					{"FR04143", "Paris 1er Les Halles", "Urbaine"},
					{"FR20062", "Lyon Centre", "Rurale régionale"},
				},
			},
		},
		{
			TableQuality,
			&Table{
				Columns: []string{"signification", "code_qualite"},
				Rows:    [][]string{{"Good", "GOOD"}, {"undefined", "UNDEFINED"}},
			},
		},
		{
			TableFact,
			&Table{
				Columns: []string{"date_debut", "code_polluant", "valeur", "code_site", "code_qualite", "valeur_brute", "validite"},
				Rows: [][]string{
					{"2024-01-15 08:00:00", "NO2", "10", "FR04143", "GOOD", "15", "true"},
					{"2024-01-15 08:00:00", "NO2", "20", "FR04143", "GOOD", "15", "true"},
					{"2024-01-15 20:00:00", "NO2", "30", "FR20062", "GOOD", "30", "true"},
					{"", "NO2", "", "FR04143", "UNDEFINED", "", "false"},
				},
			},
		},
	}

	for _, c := range cases {
		if diff := cmp.Diff(c.want, star.Table(c.name)); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", c.name, diff)
		}
	}

	for name, n := range star.Orphans() {
		if n != 0 {
			t.Errorf("%s should have no orphan fact, but %d", name, n)
		}
	}
}

func TestBuildStarSchema_idempotent(t *testing.T) {
	t.Parallel()

	first := buildSample(t)
	second := buildSample(t)

	for _, name := range TableNames {
		if first.Table(name).Len() != second.Table(name).Len() {
			t.Errorf("%s rows should be %d, but %d", name, first.Table(name).Len(), second.Table(name).Len())
		}
	}
}

func TestBuildStarSchema_qualityCodes(t *testing.T) {
	t.Parallel()

	in := NewTable("Date de début", "Polluant", "valeur")
	for _, v := range []string{"10", "60", "150", "250", "250"} {
		in.Rows = append(in.Rows, []string{"2024/01/15 08:00:00", "NO2", v})
	}

	star, err := BuildStarSchema(context.Background(), Enrich(context.Background(), in), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	codes := map[string]bool{}
	for _, c := range star.Quality.Values("code_qualite") {
		codes[c] = true
	}

	for _, c := range star.Fact.Values("code_qualite") {
		if !codes[c] {
			t.Errorf("fact quality code %q should exist in %s", c, TableQuality)
		}
	}

	want := []string{"GOOD", "MODERATE", "POOR", "VERY_POOR"}
	if diff := cmp.Diff(want, star.Quality.Values("code_qualite")); diff != "" {
		t.Errorf("quality codes mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"code_polluant", "unite_mesure", "nom_polluant"}, star.Pollutant.Columns); diff != "" {
		t.Errorf("pollutant columns mismatch (-want +got):\n%s", diff)
	}
	if got := star.Pollutant.Rows[0][2]; got != "NO2" {
		t.Errorf("unknown pollutant name should default to its code, but %q", got)
	}
	if got := star.Pollutant.Rows[0][1]; got != DefaultUnit {
		t.Errorf("unit should default to %q, but %q", DefaultUnit, got)
	}

	if diff := cmp.Diff([]string{"code_site", "nom_site", "type_implant"}, star.Site.Columns); diff != "" {
		t.Errorf("site columns mismatch (-want +got):\n%s", diff)
	}
	if star.Site.Len() != 0 {
		t.Errorf("site dimension should be empty, but %d rows", star.Site.Len())
	}
	if star.Fact.Index("code_site") >= 0 {
		t.Errorf("fact should not reference sites without site column")
	}
}

func TestBuildStarSchema_coordinates(t *testing.T) {
	t.Parallel()

	in := NewTable("Date de début", "code_site", "nom_site", "Polluant", "valeur", "latitude", "longitude")
	in.Rows = [][]string{
		{"2024/01/15 08:00:00", "00123", "Paris", "O3", "40", "48.86", "2.34"},
		{"2024/01/15 09:00:00", "00123", "Paris", "O3", "45", "48.86", "2.34"},
	}

	star, err := BuildStarSchema(context.Background(), in, geodair.DefaultReferential)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := &Table{
		Columns: []string{"code_site", "nom_site", "latitude", "longitude"},
		Rows:    [][]string{{"00123", "Paris", "48.86", "2.34"}},
	}
	if diff := cmp.Diff(want, star.Site); diff != "" {
		t.Errorf("site dimension mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildStarSchema_missingStart(t *testing.T) {
	t.Parallel()

	in := NewTable("code site", "Polluant", "valeur")
	in.Rows = [][]string{{"FR04143", "NO2", "10"}}

	_, err := BuildStarSchema(context.Background(), in, geodair.DefaultReferential)
	if !xerrors.Is(err, ErrMissingColumn) {
		t.Errorf("error should wrap ErrMissingColumn, but %v", err)
	}
}

func TestBuildStarSchema_infiniteValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	in := NewTable("Date de début", "code site", "nom site", "Polluant", "valeur")
	in.Rows = [][]string{
		{"2024/01/15 08:00:00", "FR1", "A", "NO2", "Inf"},
		{"2024/01/15 09:00:00", "FR1", "A", "NO2", "20"},
	}

	enriched := Enrich(ctx, in)
	if got := enriched.Values(ColumnDanger); got[0] != string(LevelUndefined) {
		t.Errorf("danger level of an infinite value should be %q, but %q", LevelUndefined, got[0])
	}
	if got := enriched.Values(ColumnDailyMean); got[0] != "20" {
		t.Errorf(`daily mean should ignore the infinite value and be "20", but %q`, got[0])
	}

	star, err := BuildStarSchema(ctx, enriched, geodair.DefaultReferential)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	values := star.Fact.Values("valeur")
	validity := star.Fact.Values("validite")
	if values[0] != "" || validity[0] != "false" {
		t.Errorf(`infinite value should be ("", "false"), but (%q, %q)`, values[0], validity[0])
	}
	if values[1] != "20" || validity[1] != "true" {
		t.Errorf(`finite value should be ("20", "true"), but (%q, %q)`, values[1], validity[1])
	}
}
