package geodair

import (
	"net/http"
	"sort"
)

// Status classifies the outcome of a run.
type Status int

const (
	// StatusOK means the run fully succeeded or had nothing to do.
	StatusOK Status = iota

	// StatusPartial means some items of the run failed while others succeeded.
	StatusPartial

	// StatusFailed means the run failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPartial:
		return "partial"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Report is the outcome of a stage run for one date.
type Report struct {
	Stage   Stage
	Date    string
	Status  Status
	Message string

	// Tables maps star schema table names to the path they were written or loaded from.
	Tables map[string]string

	// Failures lists the items (pollutants or tables) that failed.
	Failures []string

	// Err is the error which made the run fail, if any.
	Err error
}

// NewReport builds a report.
func NewReport(stage Stage, date string, status Status, msg string) *Report {
	return &Report{
		Stage:   stage,
		Date:    date,
		Status:  status,
		Message: msg,
		Tables:  map[string]string{},
	}
}

// FailedReport builds a report of a failed run.
func FailedReport(stage Stage, date, msg string, err error) *Report {
	r := NewReport(stage, date, StatusFailed, msg)
	r.Err = err
	return r
}

// HTTPStatus returns the HTTP status code of the report: 200, 206 or 500.
func (r *Report) HTTPStatus() int {
	switch r.Status {
	case StatusOK:
		return http.StatusOK
	case StatusPartial:
		return http.StatusPartialContent
	default:
		return http.StatusInternalServerError
	}
}

// TableNames returns the names of Tables in order.
func (r *Report) TableNames() []string {
	names := make([]string, 0, len(r.Tables))
	for n := range r.Tables {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}
