package service

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/nem12sql/pkg/config"
	"github.com/yurifrl/nem12sql/pkg/models"
	"github.com/yurifrl/nem12sql/pkg/nem12"
	"github.com/yurifrl/nem12sql/pkg/sqlgen"
)

// FilterFunc decides whether a reading makes it into the output. A nil
// filter keeps everything.
type FilterFunc func(models.MeterReading) bool

// Processor wires the parser and the SQL generator together for whole
// files: open input, stream statements out with the comment framing, tally
// the reading count.
type Processor struct {
	config *config.Config
	logger *log.Logger
	parser *nem12.Parser
	filter FilterFunc
}

func NewProcessor(cfg *config.Config, logger *log.Logger, filter FilterFunc) *Processor {
	return &Processor{
		config: cfg,
		logger: logger,
		parser: nem12.New(logger),
		filter: filter,
	}
}

// ProcessDirectory converts every NEM12 file in dir. Failures are logged
// per file; the walk continues.
func (p *Processor) ProcessDirectory(dir, outputDir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.HasSuffix(name, ".csv") && !strings.HasSuffix(name, ".txt") && !strings.HasSuffix(name, ".xls") {
			continue
		}

		inputPath := filepath.Join(dir, entry.Name())
		outputPath := p.determineOutputPath(inputPath, outputDir)
		if _, err := p.ProcessFile(inputPath, outputPath, p.config.BatchSize); err != nil {
			p.logger.Error("failed to process file", "file", inputPath, "error", err)
		}
	}
	return nil
}

func (p *Processor) determineOutputPath(inputPath, outputDir string) string {
	ext := filepath.Ext(inputPath)
	if outputDir != "" {
		name := strings.TrimSuffix(filepath.Base(inputPath), ext) + ".sql"
		return filepath.Join(outputDir, name)
	}
	return strings.TrimSuffix(inputPath, ext) + ".sql"
}

// ProcessFile converts one NEM12 file to SQL. An empty outputPath writes to
// stdout. Returns the number of readings emitted.
func (p *Processor) ProcessFile(inputPath, outputPath string, batchSize int) (int, error) {
	readings, err := p.open(inputPath)
	if err != nil {
		return 0, err
	}

	var out io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return 0, fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	p.logger.Info("processing file", "input", inputPath, "batch_size", batchSize)
	total, err := p.Process(readings, out, filepath.Base(inputPath), batchSize)
	if err != nil {
		return total, err
	}
	p.logger.Info("processed file", "input", inputPath, "readings", total)
	return total, nil
}

// open builds the reading stream for a file, picking the decoder by
// extension. The returned sequence owns closing the input.
func (p *Processor) open(inputPath string) (iter.Seq2[models.MeterReading, error], error) {
	if nem12.DetectFileType(inputPath) == nem12.TypeXLS {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return nil, fmt.Errorf("read input file: %w", err)
		}
		return p.parser.ParseXLS(data), nil
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	inner := p.parser.Parse(f)
	return func(yield func(models.MeterReading, error) bool) {
		defer f.Close()
		for reading, err := range inner {
			if !yield(reading, err) {
				return
			}
		}
	}, nil
}

// Process streams SQL statements for the readings into w, wrapped in the
// header and footer comment block. Statements already written stay written
// when a fatal parse error surfaces mid-stream; the error is returned with
// the count emitted so far.
func (p *Processor) Process(readings iter.Seq2[models.MeterReading, error], w io.Writer, sourceName string, batchSize int) (int, error) {
	generator, err := sqlgen.New(batchSize)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "-- Generated from: %s\n", sourceName)
	fmt.Fprintf(bw, "-- Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(bw, "-- Batch size: %d\n\n", batchSize)

	total := 0
	counted := func(yield func(models.MeterReading, error) bool) {
		for reading, err := range readings {
			if err == nil {
				if p.filter != nil && !p.filter(reading) {
					continue
				}
				total++
			}
			if !yield(reading, err) {
				return
			}
		}
	}

	for stmt, err := range generator.Generate(counted) {
		if err != nil {
			bw.Flush()
			return total, err
		}
		bw.WriteString(stmt)
		bw.WriteString("\n\n")
	}

	fmt.Fprintf(bw, "-- Total readings: %d\n", total)
	if err := bw.Flush(); err != nil {
		return total, fmt.Errorf("write output: %w", err)
	}
	return total, nil
}
