package transform

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"github.com/MehdiBC3/Projet-ETL-Pipelines/geodair"
)

// Star schema table names.
const (
	TableTime      = "DIM_TEMPS"
	TablePollutant = "DIM_POLLUANT"
	TableSite      = "DIM_SITE"
	TableQuality   = "DIM_QUALITE"
	TableFact      = "FACT_QUALITE_AIR"
)

// TableNames lists star schema tables in the order they are written and loaded.
var TableNames = []string{TableTime, TablePollutant, TableSite, TableQuality, TableFact}

// DefaultUnit is the unit of measure of pollutants without unit column.
const DefaultUnit = "µg/m3"

// StarSchema is the dimensional model of one day of measurements.
type StarSchema struct {
	Time      *Table
	Pollutant *Table
	Site      *Table
	Quality   *Table
	Fact      *Table
}

// Table returns the table by name, or nil.
func (s *StarSchema) Table(name string) *Table {
	switch name {
	case TableTime:
		return s.Time
	case TablePollutant:
		return s.Pollutant
	case TableSite:
		return s.Site
	case TableQuality:
		return s.Quality
	case TableFact:
		return s.Fact
	default:
		return nil
	}
}

// BuildStarSchema splits an enriched table into dimension tables and a fact table.
//
// The start timestamp, pollutant and value columns are load-bearing: an error
// wrapping ErrMissingColumn is returned when one of them cannot be resolved.
// Site, unit, coordinates and danger level columns are optional.
func BuildStarSchema(ctx context.Context, t *Table, ref geodair.Referential) (*StarSchema, error) {
	s := ResolveSchema(t.Columns)
	if err := s.Require(FieldStart, FieldPollutant, FieldValue); err != nil {
		return nil, xerrors.Errorf("failed to build star schema: %w", err)
	}

	start, _ := s.Lookup(FieldStart)
	stamps := make([]string, t.Len())
	for i, row := range t.Rows {
		stamps[i] = canonicalTimestamp(row[start])
	}

	star := &StarSchema{
		Time:      buildTimeDimension(stamps),
		Pollutant: buildPollutantDimension(t, s, ref),
		Site:      buildSiteDimension(t, s),
		Quality:   buildQualityDimension(t, s),
		Fact:      buildFact(t, s, stamps),
	}

	l := log.Ctx(ctx)
	for _, name := range TableNames {
		l.Debug().Str("table", name).Int("rows", star.Table(name).Len()).Msg("star schema table built")
	}
	for name, n := range star.Orphans() {
		if n > 0 {
			l.Warn().Str("dimension", name).Int("facts", n).Msg("facts reference missing dimension rows")
		}
	}

	return star, nil
}

func buildTimeDimension(stamps []string) *Table {
	dim := NewTable("date_debut", "date_jour", "heure", "periode_journee", "jour_semaine", "mois", "annee")

	seen := map[string]struct{}{}
	for _, st := range stamps {
		if _, ok := seen[st]; ok {
			continue
		}
		seen[st] = struct{}{}

		ts, ok := parseTimestamp(st)
		if !ok {
			dim.Rows = append(dim.Rows, make([]string, len(dim.Columns)))
			continue
		}

		dim.Rows = append(dim.Rows, []string{
			st,
			ts.Format(dayLayout),
			strconv.Itoa(ts.Hour()),
			PeriodOf(ts.Hour()),
			ts.Weekday().String(),
			strconv.Itoa(int(ts.Month())),
			strconv.Itoa(ts.Year()),
		})
	}

	return dim
}

func buildPollutantDimension(t *Table, s Schema, ref geodair.Referential) *Table {
	dim := NewTable("code_polluant", "unite_mesure", "nom_polluant")

	pi, _ := s.Lookup(FieldPollutant)
	ui, hasUnit := s.Lookup(FieldUnit)

	rows := distinct(t.Rows, func(row []string) string { return row[pi] })
	for _, row := range rows {
		code := row[pi]

		unit := DefaultUnit
		if hasUnit && row[ui] != "" {
			unit = row[ui]
		}

		name := code
		if p, ok := ref.ByShortName(code); ok && p.Label != "" {
			name = p.Label
		}

		dim.Rows = append(dim.Rows, []string{code, unit, name})
	}

	return dim
}

func buildSiteDimension(t *Table, s Schema) *Table {
	ci, ok := s.Lookup(FieldSiteCode)
	if !ok {
		return NewTable("code_site", "nom_site", "type_implant")
	}

	cols := []string{"code_site"}
	idx := []int{ci}

	if i, ok := s.Lookup(FieldSiteName); ok {
		cols = append(cols, "nom_site")
		idx = append(idx, i)
	}
	if i, ok := s.Lookup(FieldImplantation); ok {
		cols = append(cols, "type_implant")
		idx = append(idx, i)
	}
	if s.Has(FieldLatitude, FieldLongitude) {
		lat, _ := s.Lookup(FieldLatitude)
		lon, _ := s.Lookup(FieldLongitude)
		cols = append(cols, "latitude", "longitude")
		idx = append(idx, lat, lon)
	}

	dim := NewTable(cols...)
	for _, row := range distinct(t.Rows, func(row []string) string { return row[ci] }) {
		dim.Rows = append(dim.Rows, project(row, idx))
	}

	return dim
}

func buildQualityDimension(t *Table, s Schema) *Table {
	dim := NewTable("signification", "code_qualite")

	di, ok := s.Lookup(FieldDanger)
	if !ok {
		return dim
	}

	for _, row := range distinct(t.Rows, func(row []string) string { return QualityCode(row[di]) }) {
		dim.Rows = append(dim.Rows, []string{row[di], QualityCode(row[di])})
	}

	return dim
}

func buildFact(t *Table, s Schema, stamps []string) *Table {
	pi, _ := s.Lookup(FieldPollutant)
	vi, _ := s.Lookup(FieldValue)
	ci, hasSite := s.Lookup(FieldSiteCode)
	di, hasDanger := s.Lookup(FieldDanger)
	mi, hasMean := s.Lookup(FieldDailyMean)

	cols := []string{"date_debut", "code_polluant", "valeur"}
	if hasSite {
		cols = append(cols, "code_site")
	}
	if hasDanger {
		cols = append(cols, "code_qualite")
	}
	if hasMean {
		cols = append(cols, "valeur_brute")
	}
	cols = append(cols, "validite")

	fact := NewTable(cols...)
	fact.Rows = make([][]string, 0, t.Len())

	for i, row := range t.Rows {
		v, present, _ := parseMeasure(row[vi])
		value := ""
		if present {
			value = formatFloat(v)
		}

		r := make([]string, 0, len(cols))
		r = append(r, stamps[i], row[pi], value)
		if hasSite {
			r = append(r, row[ci])
		}
		if hasDanger {
			r = append(r, QualityCode(row[di]))
		}
		if hasMean {
			r = append(r, row[mi])
		}
		r = append(r, strconv.FormatBool(present))

		fact.Rows = append(fact.Rows, r)
	}

	return fact
}

func project(row []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = row[j]
	}
	return out
}

// Orphans counts, per dimension, the facts whose reference has no row in the dimension.
func (s *StarSchema) Orphans() map[string]int {
	orphans := map[string]int{}

	check := func(name string, dim *Table, dimKey, factKey string) {
		fi := s.Fact.Index(factKey)
		di := dim.Index(dimKey)
		if fi < 0 || di < 0 {
			return
		}

		keys := map[string]struct{}{}
		for _, row := range dim.Rows {
			keys[row[di]] = struct{}{}
		}

		n := 0
		for _, row := range s.Fact.Rows {
			if _, ok := keys[row[fi]]; !ok {
				n++
			}
		}
		orphans[name] = n
	}

	check(TableTime, s.Time, "date_debut", "date_debut")
	check(TablePollutant, s.Pollutant, "code_polluant", "code_polluant")
	check(TableSite, s.Site, "code_site", "code_site")
	check(TableQuality, s.Quality, "code_qualite", "code_qualite")

	return orphans
}
