package geodair

import (
	"fmt"
	"time"

	"golang.org/x/xerrors"
)

// DateLayout is the layout of processing dates in object paths.
const DateLayout = "2006-01-02"

const (
	rawRoot       = "raw/geodair"
	transformRoot = "transform/geodair"
)

// RawPrefix returns the prefix of raw export files for the date.
func RawPrefix(date string) string {
	return fmt.Sprintf("%s/%s/", rawRoot, date)
}

// RawObjectName returns the object name of the hourly export of a pollutant.
func RawObjectName(date, pollutantCode string) string {
	return fmt.Sprintf("%sMoyH_%s.csv", RawPrefix(date), pollutantCode)
}

// TransformObjectName returns the object name of a star schema table.
func TransformObjectName(date, table string) string {
	return fmt.Sprintf("%s/%s/%s.csv", transformRoot, date, table)
}

// Yesterday returns the processing date of a daily run started at now.
func Yesterday(now time.Time) string {
	return now.AddDate(0, 0, -1).Format(DateLayout)
}

// ParseDate validates a processing date given as YYYY-MM-DD.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", xerrors.Errorf("invalid date %q: %w", s, err)
	}

	return t.Format(DateLayout), nil
}
