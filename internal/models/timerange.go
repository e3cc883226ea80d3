// internal/models/timerange.go
package models

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used for every time range.
const DateLayout = "2006-01-02"

// TimeRange is an inclusive calendar date interval.
type TimeRange struct {
	FromDate string `json:"fromDate"`
	ToDate   string `json:"toDate"`
}

// NewTimeRange formats two dates as a TimeRange.
func NewTimeRange(from, to time.Time) TimeRange {
	return TimeRange{FromDate: from.Format(DateLayout), ToDate: to.Format(DateLayout)}
}

// Validate checks both dates parse and from <= to.
func (tr TimeRange) Validate() error {
	from, err := time.Parse(DateLayout, tr.FromDate)
	if err != nil {
		return fmt.Errorf("invalid fromDate %q: %w", tr.FromDate, err)
	}
	to, err := time.Parse(DateLayout, tr.ToDate)
	if err != nil {
		return fmt.Errorf("invalid toDate %q: %w", tr.ToDate, err)
	}
	if from.After(to) {
		return fmt.Errorf("fromDate %s is after toDate %s", tr.FromDate, tr.ToDate)
	}
	return nil
}

// IsZero reports whether the range is unset.
func (tr TimeRange) IsZero() bool {
	return tr.FromDate == "" && tr.ToDate == ""
}

func (tr TimeRange) String() string {
	return tr.FromDate + " to " + tr.ToDate
}
