package models

import (
	"fmt"
	"strconv"
	"strings"
)

// NMIContext carries the meter configuration declared by a 200 record. It
// governs every 300 record that follows until the next 200 record replaces
// it wholesale.
type NMIContext struct {
	NMI             string
	IntervalMinutes int
}

// NMIContextFromRecord extracts the NMI and interval length from a 200
// record's fields.
//
// 200 record layout: indicator, NMI, NMI configuration, register ID, NMI
// suffix, MDM data stream, meter serial, UOM, interval length, next
// scheduled read date.
func NMIContextFromRecord(fields []string) (NMIContext, error) {
	if len(fields) < 9 {
		return NMIContext{}, fmt.Errorf("invalid 200 record: insufficient fields (got %d, need at least 9)", len(fields))
	}

	nmi := strings.TrimSpace(fields[1])
	if nmi == "" {
		return NMIContext{}, fmt.Errorf("invalid 200 record: empty NMI")
	}

	intervalMinutes, err := strconv.Atoi(strings.TrimSpace(fields[8]))
	if err != nil {
		return NMIContext{}, fmt.Errorf("invalid interval length in 200 record: %q", fields[8])
	}
	if intervalMinutes <= 0 {
		return NMIContext{}, fmt.Errorf("invalid interval length: %d (must be positive)", intervalMinutes)
	}

	return NMIContext{NMI: nmi, IntervalMinutes: intervalMinutes}, nil
}

// IntervalsPerDay returns how many intervals fit in a full day at this
// context's interval length.
func (c NMIContext) IntervalsPerDay() int {
	return (24 * 60) / c.IntervalMinutes
}
