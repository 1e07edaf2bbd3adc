package sqlgen

import (
	"fmt"
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yurifrl/nem12sql/pkg/models"
)

func mustReading(t *testing.T, nmi string, ts time.Time, consumption string) models.MeterReading {
	t.Helper()
	reading, err := models.NewMeterReading(nmi, ts, decimal.RequireFromString(consumption))
	if err != nil {
		t.Fatalf("NewMeterReading failed: %v", err)
	}
	return reading
}

func sequence(readings []models.MeterReading) iter.Seq2[models.MeterReading, error] {
	return func(yield func(models.MeterReading, error) bool) {
		for _, r := range readings {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func generate(t *testing.T, g *Generator, readings []models.MeterReading) []string {
	t.Helper()
	var statements []string
	for stmt, err := range g.Generate(sequence(readings)) {
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		statements = append(statements, stmt)
	}
	return statements
}

func TestGenerateSingleReading(t *testing.T) {
	readings := []models.MeterReading{
		mustReading(t, "NEM1201009", time.Date(2005, 3, 1, 0, 30, 0, 0, time.UTC), "0.461"),
	}

	g, err := New(100)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	statements := generate(t, g, readings)

	if len(statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(statements))
	}
	stmt := statements[0]
	if !strings.HasPrefix(stmt, `INSERT INTO meter_readings ("nmi", "timestamp", "consumption") VALUES`) {
		t.Errorf("unexpected statement head: %q", stmt)
	}
	if !strings.Contains(stmt, "('NEM1201009', '2005-03-01 00:30:00', 0.461)") {
		t.Errorf("statement missing value tuple: %q", stmt)
	}
	if !strings.HasSuffix(stmt, ";") {
		t.Errorf("statement not terminated: %q", stmt)
	}
}

func TestGenerateBatching(t *testing.T) {
	var readings []models.MeterReading
	for i := 0; i < 5; i++ {
		readings = append(readings, mustReading(t, "NEM1201009",
			time.Date(2005, 3, 1, i, 0, 0, 0, time.UTC), fmt.Sprintf("%d", i)))
	}

	g, err := New(2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	statements := generate(t, g, readings)

	// 5 readings at batch size 2 -> 2 + 2 + 1.
	if len(statements) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(statements))
	}
	if got := strings.Count(statements[0], "\n"); got != 2 {
		t.Errorf("first statement should carry 2 rows, got %d newlines", got)
	}
	if got := strings.Count(statements[2], "\n"); got != 1 {
		t.Errorf("final statement should carry 1 row, got %d newlines", got)
	}
}

func TestGenerateStatementCount(t *testing.T) {
	cases := []struct {
		readings  int
		batchSize int
		want      int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{100, 7, 15},
	}
	for _, c := range cases {
		var readings []models.MeterReading
		for i := 0; i < c.readings; i++ {
			readings = append(readings, mustReading(t, "NEM1201009",
				time.Date(2005, 3, 1, 0, 30, 0, 0, time.UTC).Add(time.Duration(i)*30*time.Minute), "1.5"))
		}
		g, err := New(c.batchSize)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if got := len(generate(t, g, readings)); got != c.want {
			t.Errorf("%d readings at batch %d: expected %d statements, got %d",
				c.readings, c.batchSize, c.want, got)
		}
	}
}

func TestGeneratePreservesOrder(t *testing.T) {
	var readings []models.MeterReading
	for i := 0; i < 6; i++ {
		readings = append(readings, mustReading(t, "NEM1201009",
			time.Date(2005, 3, 1, i, 0, 0, 0, time.UTC), fmt.Sprintf("%d.5", i)))
	}
	g, err := New(4)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	all := strings.Join(generate(t, g, readings), "\n")

	last := -1
	for i := 0; i < 6; i++ {
		idx := strings.Index(all, fmt.Sprintf(", %d.5)", i))
		if idx < 0 {
			t.Fatalf("value %d.5 missing from output", i)
		}
		if idx < last {
			t.Errorf("value %d.5 out of order", i)
		}
		last = idx
	}
}

func TestGenerateEscapesQuotes(t *testing.T) {
	readings := []models.MeterReading{
		mustReading(t, "TEST'123", time.Date(2005, 3, 1, 0, 30, 0, 0, time.UTC), "1.5"),
	}
	g, err := New(DefaultBatchSize)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	statements := generate(t, g, readings)
	if !strings.Contains(statements[0], "'TEST''123'") {
		t.Errorf("single quote not escaped: %q", statements[0])
	}
}

func TestGenerateForwardsUpstreamError(t *testing.T) {
	fail := func(yield func(models.MeterReading, error) bool) {
		r := mustReading(t, "NEM1201009", time.Date(2005, 3, 1, 0, 30, 0, 0, time.UTC), "1.5")
		if !yield(r, nil) {
			return
		}
		yield(models.MeterReading{}, fmt.Errorf("boom"))
	}

	g, err := New(10)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var statements []string
	var gotErr error
	for stmt, err := range g.Generate(fail) {
		if err != nil {
			gotErr = err
			break
		}
		statements = append(statements, stmt)
	}
	if gotErr == nil {
		t.Fatal("expected upstream error to propagate")
	}
	// The buffered reading must not be flushed past the failure point.
	if len(statements) != 0 {
		t.Errorf("expected no statements before the error, got %d", len(statements))
	}
}

func TestGenerateEmptyInput(t *testing.T) {
	g, err := New(DefaultBatchSize)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if statements := generate(t, g, nil); len(statements) != 0 {
		t.Errorf("expected no statements for empty input, got %d", len(statements))
	}
}

func TestNewRejectsBadBatchSize(t *testing.T) {
	for _, size := range []int{0, -1, -1000} {
		if _, err := New(size); err == nil {
			t.Errorf("expected error for batch size %d", size)
		}
	}
}
