package sqlgen

import (
	"fmt"
	"iter"
	"strings"

	"github.com/yurifrl/nem12sql/pkg/models"
)

const (
	// DefaultBatchSize is the number of rows per INSERT when the caller
	// does not choose one.
	DefaultBatchSize = 1000

	tableName       = "meter_readings"
	timestampLayout = "2006-01-02 15:04:05"
)

var columns = []string{"nmi", "timestamp", "consumption"}

// Generator turns meter readings into batched multi-row INSERT statements
// for the meter_readings table.
type Generator struct {
	batchSize int
}

// New builds a generator emitting up to batchSize rows per statement.
func New(batchSize int) (*Generator, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", batchSize)
	}
	return &Generator{batchSize: batchSize}, nil
}

func (g *Generator) BatchSize() int { return g.batchSize }

// Generate lazily consumes readings and yields INSERT statements, each
// carrying between 1 and batchSize rows in input order. An upstream error
// ends the sequence after being forwarded; a partially filled batch is
// flushed as the final statement at input exhaustion.
func (g *Generator) Generate(readings iter.Seq2[models.MeterReading, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		batch := make([]string, 0, g.batchSize)

		for reading, err := range readings {
			if err != nil {
				yield("", err)
				return
			}
			batch = append(batch, formatValue(reading))
			if len(batch) >= g.batchSize {
				if !yield(buildInsert(batch), nil) {
					return
				}
				batch = batch[:0]
			}
		}

		if len(batch) > 0 {
			yield(buildInsert(batch), nil)
		}
	}
}

// formatValue renders one reading as a SQL value tuple. Single quotes in
// the NMI are doubled so the tuple stays safe to embed verbatim.
func formatValue(r models.MeterReading) string {
	nmi := strings.ReplaceAll(r.NMI(), "'", "''")
	return fmt.Sprintf("('%s', '%s', %s)", nmi, r.Timestamp().Format(timestampLayout), r.Consumption())
}

func buildInsert(values []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = `"` + col + `"`
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES\n%s;",
		tableName, strings.Join(quoted, ", "), strings.Join(values, ",\n"))
}
