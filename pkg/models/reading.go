package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MeterReading represents a single interval reading: the NMI it belongs to,
// the end time of the interval, and the consumption measured over it.
// Values are immutable once constructed; NewMeterReading is the only way in.
type MeterReading struct {
	nmi         string
	timestamp   time.Time
	consumption decimal.Decimal
}

// NewMeterReading validates and builds a reading. The NMI must be 1-10
// characters and consumption must be non-negative.
func NewMeterReading(nmi string, timestamp time.Time, consumption decimal.Decimal) (MeterReading, error) {
	if nmi == "" || len(nmi) > 10 {
		return MeterReading{}, fmt.Errorf("invalid NMI %q (must be 1-10 characters)", nmi)
	}
	if consumption.IsNegative() {
		return MeterReading{}, fmt.Errorf("invalid consumption %s (must be non-negative)", consumption)
	}
	return MeterReading{
		nmi:         nmi,
		timestamp:   timestamp,
		consumption: consumption,
	}, nil
}

// NMI returns the National Meter Identifier.
func (r MeterReading) NMI() string { return r.nmi }

// Timestamp returns the end time of the interval period.
func (r MeterReading) Timestamp() time.Time { return r.timestamp }

// Consumption returns the measured consumption as an exact decimal.
func (r MeterReading) Consumption() decimal.Decimal { return r.consumption }
