package main

import (
	"fmt"
	"time"

	"github.com/yurifrl/nem12sql/pkg/models"
	"github.com/yurifrl/nem12sql/pkg/service"
)

type filters struct {
	nmi       string
	startDate string
	endDate   string
}

const filterDateLayout = "2006-01-02"

// toFilterFunc compiles the flag values into a reading filter. Returns nil
// when no filter flags are set so the processor can skip filtering
// entirely.
func (f *filters) toFilterFunc() (service.FilterFunc, error) {
	if f.nmi == "" && f.startDate == "" && f.endDate == "" {
		return nil, nil
	}

	var start, end time.Time
	var err error
	if f.startDate != "" {
		start, err = time.ParseInLocation(filterDateLayout, f.startDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid --start date %q: %w", f.startDate, err)
		}
	}
	if f.endDate != "" {
		end, err = time.ParseInLocation(filterDateLayout, f.endDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid --end date %q: %w", f.endDate, err)
		}
	}

	return func(r models.MeterReading) bool {
		if f.nmi != "" && r.NMI() != f.nmi {
			return false
		}
		if !start.IsZero() && r.Timestamp().Before(start) {
			return false
		}
		if !end.IsZero() && !r.Timestamp().Before(end) {
			return false
		}
		return true
	}, nil
}
