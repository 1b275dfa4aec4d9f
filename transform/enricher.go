package transform

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// TimestampLayout is the layout of start timestamps in enriched and star schema tables.
const TimestampLayout = "2006-01-02 15:04:05"

const dayLayout = "2006-01-02"

var timestampLayouts = []string{
	"2006/01/02 15:04:05",
	TimestampLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
	"2006/01/02",
	dayLayout,
}

// parseTimestamp parses a start timestamp. Unparseable values are null.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// canonicalTimestamp formats a start timestamp cell with TimestampLayout, or returns "".
func canonicalTimestamp(s string) string {
	t, ok := parseTimestamp(s)
	if !ok {
		return ""
	}
	return t.Format(TimestampLayout)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Enrich derives air quality KPIs from a merged table.
//
// The input table is not modified. Derived columns are added to a copy:
// danger level, zone, hour, period of the day, calendar day, daily mean per
// site and hourly standard deviation per site. Without start timestamp column
// the input is returned as is.
func Enrich(ctx context.Context, in *Table) *Table {
	l := log.Ctx(ctx)

	s := ResolveSchema(in.Columns)
	start, ok := s.Lookup(FieldStart)
	if !ok {
		l.Warn().Strs("columns", in.Columns).Msg("no start timestamp column, enrichment skipped")
		return in
	}

	t := in.Clone()
	n := t.Len()

	times := make([]time.Time, n)
	valid := make([]bool, n)
	for i, row := range t.Rows {
		times[i], valid[i] = parseTimestamp(row[start])
		if valid[i] {
			row[start] = times[i].Format(TimestampLayout)
		} else {
			row[start] = ""
		}
	}

	if s.Has(FieldValue, FieldPollutant) {
		vi, _ := s.Lookup(FieldValue)
		pi, _ := s.Lookup(FieldPollutant)

		levels := make([]string, n)
		for i, row := range t.Rows {
			levels[i] = string(DangerLevelOf(row[pi], row[vi]))
		}
		t.SetColumn(ColumnDanger, levels)
	}

	if ii, ok := s.Lookup(FieldImplantation); ok {
		zones := make([]string, n)
		for i, row := range t.Rows {
			zones[i] = string(ZoneOf(row[ii]))
		}
		t.SetColumn(ColumnZone, zones)
	}

	hours := make([]string, n)
	periods := make([]string, n)
	days := make([]string, n)
	for i := range t.Rows {
		if !valid[i] {
			continue
		}
		hours[i] = strconv.Itoa(times[i].Hour())
		periods[i] = PeriodOf(times[i].Hour())
		days[i] = times[i].Format(dayLayout)
	}
	t.SetColumn(ColumnHour, hours)
	t.SetColumn(ColumnPeriod, periods)
	t.SetColumn(ColumnDay, days)

	if s.Has(FieldSiteName, FieldValue) {
		si, _ := s.Lookup(FieldSiteName)
		vi, _ := s.Lookup(FieldValue)

		sites := make([]string, n)
		stamps := make([]string, n)
		values := make([]float64, n)
		present := make([]bool, n)
		for i, row := range t.Rows {
			sites[i] = row[si]
			stamps[i] = row[start]
			values[i], present[i], _ = parseMeasure(row[vi])
		}

		t.SetColumn(ColumnDailyMean, groupStat(sites, days, values, present, mean))
		t.SetColumn(ColumnHourlyStdDev, groupStat(sites, stamps, values, present, sampleStdDev))
	}

	l.Info().Int("rows", n).Strs("columns", t.Columns).Msg("dataset enriched")

	return t
}

// groupStat computes stat over present values of each (site, key) group and
// returns it for every row. Rows with a null site or key get a null cell.
func groupStat(sites, keys []string, values []float64, present []bool, stat func([]float64) float64) []string {
	type group struct{ site, key string }

	groups := map[group][]float64{}
	for i := range sites {
		if sites[i] == "" || keys[i] == "" || !present[i] {
			continue
		}
		g := group{sites[i], keys[i]}
		groups[g] = append(groups[g], values[i])
	}

	results := make(map[group]string, len(groups))
	for g, vs := range groups {
		results[g] = formatFloat(stat(vs))
	}

	out := make([]string, len(sites))
	for i := range sites {
		if sites[i] == "" || keys[i] == "" {
			continue
		}
		out[i] = results[group{sites[i], keys[i]}]
	}

	return out
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return math.NaN()
	}

	sum := 0.0
	for _, v := range vs {
		sum += v
	}

	return sum / float64(len(vs))
}

// sampleStdDev is the standard deviation with n-1 degrees of freedom, NaN below two values.
func sampleStdDev(vs []float64) float64 {
	if len(vs) < 2 {
		return math.NaN()
	}

	m := mean(vs)
	ss := 0.0
	for _, v := range vs {
		ss += (v - m) * (v - m)
	}

	return math.Sqrt(ss / float64(len(vs)-1))
}
