package nem12

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/yurifrl/nem12sql/pkg/models"
)

// Record type indicators.
const (
	Record100 = "100" // file header
	Record200 = "200" // NMI data details
	Record300 = "300" // interval data
	Record400 = "400" // interval event (not used)
	Record500 = "500" // B2B details (not used)
	Record900 = "900" // end of data
)

const dateLayout = "20060102"

// ParseError marks input that is structurally invalid NEM12. It carries the
// 1-based line number of the offending record so callers can point at it.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// recordSource yields delimited records together with their 1-based line
// numbers. It returns io.EOF when the input is exhausted.
type recordSource interface {
	Next() (fields []string, line int, err error)
}

// Parser turns NEM12 records into meter readings. It holds no per-parse
// state; every Parse call owns its own context, so one Parser may be reused
// across files.
type Parser struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse streams readings out of comma-delimited NEM12 text. The sequence is
// lazy and single-pass: records are pulled from r only as the consumer
// advances, so arbitrarily large files run in constant memory. A non-nil
// error ends the sequence; the error is always the last element yielded.
func (p *Parser) Parse(r io.Reader) iter.Seq2[models.MeterReading, error] {
	return p.stream(newCSVSource(r))
}

// stream runs the record state machine over a source. The active NMI context
// starts empty, is replaced by each 200 record, and governs every 300 record
// until the next 200. A 900 record stops the stream; nothing after it is
// pulled from the source.
func (p *Parser) stream(src recordSource) iter.Seq2[models.MeterReading, error] {
	return func(yield func(models.MeterReading, error) bool) {
		var ctx *models.NMIContext

		for {
			fields, line, err := src.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(models.MeterReading{}, fmt.Errorf("line %d: read record: %w", line, err))
				return
			}
			if len(fields) == 0 {
				continue
			}

			switch strings.TrimSpace(fields[0]) {
			case Record200:
				c, err := models.NMIContextFromRecord(fields)
				if err != nil {
					yield(models.MeterReading{}, &ParseError{Line: line, Err: err})
					return
				}
				ctx = &c

			case Record300:
				if ctx == nil {
					yield(models.MeterReading{}, &ParseError{Line: line, Err: fmt.Errorf("300 record found without preceding 200 record")})
					return
				}
				if !p.expandIntervals(fields, line, *ctx, yield) {
					return
				}

			case Record900:
				return
			}
		}
	}
}

// expandIntervals emits one reading per populated consumption value of a 300
// record. Returns false once the consumer stopped or a fatal error was
// yielded.
//
// 300 record layout: indicator, interval date (YYYYMMDD), then one
// consumption value per interval of the day, then quality flag and metadata
// fields that are not consumption values.
func (p *Parser) expandIntervals(fields []string, line int, ctx models.NMIContext, yield func(models.MeterReading, error) bool) bool {
	if len(fields) < 3 {
		yield(models.MeterReading{}, &ParseError{Line: line, Err: fmt.Errorf("invalid 300 record: insufficient fields")})
		return false
	}

	dateStr := strings.TrimSpace(fields[1])
	day, err := time.ParseInLocation(dateLayout, dateStr, time.UTC)
	if err != nil {
		yield(models.MeterReading{}, &ParseError{Line: line, Err: fmt.Errorf("invalid date format %q", dateStr)})
		return false
	}

	// Only the day's worth of value fields counts; anything beyond that is
	// quality/metadata and must not be parsed as consumption.
	values := fields[2:]
	if perDay := ctx.IntervalsPerDay(); len(values) > perDay {
		values = values[:perDay]
	}

	for i, raw := range values {
		interval := i + 1

		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}

		consumption, err := decimal.NewFromString(value)
		if err != nil {
			p.logger.Warn("skipping invalid consumption value",
				"line", line, "interval", interval, "value", value)
			continue
		}

		// Interval 1 ends one interval length past midnight; the last
		// interval of a full day lands on midnight of the next day.
		timestamp := day.Add(time.Duration(interval*ctx.IntervalMinutes) * time.Minute)

		reading, err := models.NewMeterReading(ctx.NMI, timestamp, consumption)
		if err != nil {
			yield(models.MeterReading{}, &ParseError{Line: line, Err: err})
			return false
		}
		if !yield(reading, nil) {
			return false
		}
	}
	return true
}

// csvSource reads comma-delimited records, reporting physical line numbers
// even across blank lines (which encoding/csv swallows).
type csvSource struct {
	reader *csv.Reader
}

func newCSVSource(r io.Reader) *csvSource {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // record widths vary by type; validated downstream
	cr.LazyQuotes = true
	return &csvSource{reader: cr}
}

func (s *csvSource) Next() ([]string, int, error) {
	fields, err := s.reader.Read()
	if err == io.EOF {
		return nil, 0, io.EOF
	}
	if err != nil {
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			return nil, csvErr.Line, err
		}
		return nil, 0, err
	}
	line, _ := s.reader.FieldPos(0)
	return fields, line, nil
}
