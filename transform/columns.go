package transform

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/xerrors"
)

// ErrMissingColumn is returned when a load-bearing column cannot be resolved.
var ErrMissingColumn = errors.New("missing column")

// Field is a logical column of Geod'air exports or of the enriched dataset.
type Field int

const (
	FieldStart Field = iota
	FieldSiteCode
	FieldSiteName
	FieldImplantation
	FieldPollutant
	FieldValue
	FieldUnit
	FieldLatitude
	FieldLongitude

	// Derived by Enrich.
	FieldDanger
	FieldZone
	FieldHour
	FieldPeriod
	FieldDay
	FieldDailyMean
	FieldHourlyStdDev

	fieldCount
)

// Column names added by Enrich.
const (
	ColumnDanger       = "Niveau_de_danger"
	ColumnZone         = "Zone"
	ColumnHour         = "Heure"
	ColumnPeriod       = "Periode_journee"
	ColumnDay          = "Date_jour"
	ColumnDailyMean    = "Moyenne_journaliere_site"
	ColumnHourlyStdDev = "Ecart_type_horaire"
)

var fieldNames = [fieldCount]string{
	FieldStart:        "start",
	FieldSiteCode:     "site code",
	FieldSiteName:     "site name",
	FieldImplantation: "implantation type",
	FieldPollutant:    "pollutant",
	FieldValue:        "value",
	FieldUnit:         "unit",
	FieldLatitude:     "latitude",
	FieldLongitude:    "longitude",
	FieldDanger:       "danger level",
	FieldZone:         "zone",
	FieldHour:         "hour",
	FieldPeriod:       "period",
	FieldDay:          "day",
	FieldDailyMean:    "daily mean",
	FieldHourlyStdDev: "hourly standard deviation",
}

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "unknown"
	}
	return fieldNames[f]
}

// synonyms lists accepted header names per field, in order of preference.
// Matching is exact: case and accents are significant.
var synonyms = map[Field][]string{
	FieldSiteCode:     {"code site", "code_site"},
	FieldSiteName:     {"nom site", "nom_site"},
	FieldImplantation: {"type d'implantation", "type_implant"},
	FieldPollutant:    {"Polluant"},
	FieldValue:        {"valeur"},
	FieldUnit:         {"unite", "unité", "Unité", "unite_mesure", "Unité de mesure"},
	FieldLatitude:     {"latitude"},
	FieldLongitude:    {"longitude"},
	FieldDanger:       {ColumnDanger},
	FieldZone:         {ColumnZone},
	FieldHour:         {ColumnHour},
	FieldPeriod:       {ColumnPeriod},
	FieldDay:          {ColumnDay},
	FieldDailyMean:    {ColumnDailyMean},
	FieldHourlyStdDev: {ColumnHourlyStdDev},
}

// Schema is the resolution of every Field against the header of a table.
type Schema struct {
	index [fieldCount]int
	names [fieldCount]string
}

// ResolveSchema resolves fields against columns once.
//
// The start timestamp is the first column whose lower-cased name contains
// both "date" and "début". Other fields use their ordered synonyms.
func ResolveSchema(columns []string) Schema {
	var s Schema
	for f := range s.index {
		s.index[f] = -1
	}

	lower := cases.Lower(language.French)
	for i, c := range columns {
		lc := lower.String(c)
		if strings.Contains(lc, "date") && strings.Contains(lc, "début") {
			s.set(FieldStart, i, c)
			break
		}
	}

	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, ok := pos[c]; !ok {
			pos[c] = i
		}
	}

	for f, names := range synonyms {
		for _, n := range names {
			if i, ok := pos[n]; ok {
				s.set(f, i, n)
				break
			}
		}
	}

	return s
}

func (s *Schema) set(f Field, i int, name string) {
	s.index[f] = i
	s.names[f] = name
}

// Lookup returns the column position of the field and whether it is resolved.
func (s Schema) Lookup(f Field) (int, bool) {
	i := s.index[f]
	return i, i >= 0
}

// Has reports whether every field is resolved.
func (s Schema) Has(fs ...Field) bool {
	for _, f := range fs {
		if s.index[f] < 0 {
			return false
		}
	}

	return true
}

// Name returns the resolved column name of the field, or "".
func (s Schema) Name(f Field) string {
	return s.names[f]
}

// Require returns an error wrapping ErrMissingColumn for the first unresolved field.
func (s Schema) Require(fs ...Field) error {
	for _, f := range fs {
		if s.index[f] < 0 {
			return xerrors.Errorf("%w: %s", ErrMissingColumn, f)
		}
	}

	return nil
}
