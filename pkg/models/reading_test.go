package models

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewMeterReading(t *testing.T) {
	ts := time.Date(2005, 3, 1, 0, 30, 0, 0, time.UTC)

	reading, err := NewMeterReading("NEM1201009", ts, decimal.RequireFromString("0.461"))
	if err != nil {
		t.Fatalf("NewMeterReading failed: %v", err)
	}
	if reading.NMI() != "NEM1201009" {
		t.Errorf("expected NMI NEM1201009, got %q", reading.NMI())
	}
	if !reading.Timestamp().Equal(ts) {
		t.Errorf("expected timestamp %v, got %v", ts, reading.Timestamp())
	}
	if reading.Consumption().String() != "0.461" {
		t.Errorf("expected consumption 0.461, got %s", reading.Consumption())
	}
}

func TestNewMeterReadingEmptyNMI(t *testing.T) {
	_, err := NewMeterReading("", time.Now(), decimal.NewFromInt(1))
	if err == nil {
		t.Fatal("expected error for empty NMI")
	}
}

func TestNewMeterReadingOverlongNMI(t *testing.T) {
	_, err := NewMeterReading(strings.Repeat("N", 11), time.Now(), decimal.NewFromInt(1))
	if err == nil {
		t.Fatal("expected error for 11-character NMI")
	}
}

func TestNewMeterReadingMaxLengthNMI(t *testing.T) {
	_, err := NewMeterReading(strings.Repeat("N", 10), time.Now(), decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("10-character NMI should be accepted: %v", err)
	}
}

func TestNewMeterReadingNegativeConsumption(t *testing.T) {
	_, err := NewMeterReading("NEM1201009", time.Now(), decimal.RequireFromString("-0.1"))
	if err == nil {
		t.Fatal("expected error for negative consumption")
	}
}

func TestNewMeterReadingZeroConsumption(t *testing.T) {
	_, err := NewMeterReading("NEM1201009", time.Now(), decimal.Zero)
	if err != nil {
		t.Fatalf("zero consumption should be accepted: %v", err)
	}
}
