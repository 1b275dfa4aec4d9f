package transform

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DangerLevel is the air quality severity of a measurement.
type DangerLevel string

const (
	LevelGood     DangerLevel = "Good"
	LevelModerate DangerLevel = "Moderate"
	LevelPoor     DangerLevel = "Poor"
	LevelVeryPoor DangerLevel = "Very Poor"

	// LevelUndefined is given to non-numeric values and to pollutants without thresholds.
	LevelUndefined DangerLevel = "undefined"

	// LevelUnknown is given to measurements without pollutant.
	LevelUnknown DangerLevel = "unknown"
)

type threshold struct {
	max   float64
	level DangerLevel
}

// dangerThresholds are ascending upper bounds (inclusive) per pollutant, in µg/m3.
var dangerThresholds = map[string][]threshold{
	"SO2":  {{100, LevelGood}, {350, LevelModerate}, {500, LevelPoor}, {math.Inf(1), LevelVeryPoor}},
	"NO2":  {{50, LevelGood}, {100, LevelModerate}, {200, LevelPoor}, {math.Inf(1), LevelVeryPoor}},
	"PM10": {{20, LevelGood}, {50, LevelModerate}, {100, LevelPoor}, {math.Inf(1), LevelVeryPoor}},
	"O3":   {{100, LevelGood}, {180, LevelModerate}, {240, LevelPoor}, {math.Inf(1), LevelVeryPoor}},
}

var errNotNumeric = errors.New("not numeric")

// parseMeasure parses a measured value. An empty cell is absent, not an error.
// A decimal comma is accepted.
func parseMeasure(s string) (v float64, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err = strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false, errNotNumeric
	}
	if math.IsNaN(v) {
		return 0, false, nil
	}

	return v, true, nil
}

// ClassifyDanger returns the danger level of a numeric value of the pollutant.
func ClassifyDanger(pollutant string, value float64) DangerLevel {
	ts, ok := dangerThresholds[strings.ToUpper(strings.TrimSpace(pollutant))]
	if !ok || math.IsNaN(value) {
		return LevelUndefined
	}

	for _, t := range ts {
		if value <= t.max {
			return t.level
		}
	}

	return LevelUndefined
}

// DangerLevelOf classifies a raw measurement cell of the pollutant.
func DangerLevelOf(pollutant, value string) DangerLevel {
	v, ok, err := parseMeasure(value)
	if err != nil {
		return LevelUndefined
	}
	if strings.TrimSpace(pollutant) == "" {
		return LevelUnknown
	}
	if !ok {
		return LevelUndefined
	}

	return ClassifyDanger(pollutant, v)
}

// QualityCode normalizes a danger level label into the code shared by the
// quality dimension and the fact table.
func QualityCode(label string) string {
	return strings.ReplaceAll(strings.ToUpper(label), " ", "_")
}

// Zone is the kind of area of a measurement site.
type Zone string

const (
	ZoneUrban Zone = "urban"
	ZoneRural Zone = "rural"
	ZoneOther Zone = "other"
)

// ZoneOf classifies a site implantation type such as "Urbaine" or "Rurale régionale".
func ZoneOf(implantation string) Zone {
	s := cases.Lower(language.French).String(implantation)

	switch {
	case strings.Contains(s, "urban"), strings.Contains(s, "urbain"):
		return ZoneUrban
	case strings.Contains(s, "rural"):
		return ZoneRural
	default:
		return ZoneOther
	}
}

// Periods of the day.
const (
	PeriodDay   = "day"
	PeriodNight = "night"
)

// PeriodOf returns PeriodDay for hours in [6, 18) and PeriodNight otherwise.
func PeriodOf(hour int) string {
	if hour >= 6 && hour < 18 {
		return PeriodDay
	}
	return PeriodNight
}
