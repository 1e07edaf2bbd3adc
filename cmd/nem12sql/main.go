package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/yurifrl/nem12sql/pkg/config"
	"github.com/yurifrl/nem12sql/pkg/nem12"
	"github.com/yurifrl/nem12sql/pkg/plan"
	"github.com/yurifrl/nem12sql/pkg/service"
)

var (
	cliFilters filters
	cfgFile    string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "nem12sql",
	Short: "Convert NEM12 meter data files to SQL INSERT statements",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Show help when no subcommand is provided
		return cmd.Help()
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert [flags] <input_path>",
	Short: "Convert a NEM12 file or directory to SQL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cfg, err := config.Build(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		if debug {
			pp.Fprintln(os.Stderr, cfg)
		}

		filter, err := cliFilters.toFilterFunc()
		if err != nil {
			return err
		}
		processor := service.NewProcessor(cfg, logger, filter)

		inputPath := args[0]
		outputPath, _ := cmd.Flags().GetString("output")

		info, err := os.Stat(inputPath)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return processor.ProcessDirectory(inputPath, outputPath)
		}

		total, err := processor.ProcessFile(inputPath, outputPath, cfg.BatchSize)
		if err != nil {
			return err
		}
		logger.Info("successfully processed readings", "total", total)
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan [flags] <plan_file>",
	Short: "Run a YAML plan of NEM12 conversions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cfg, err := config.Build(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}

		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		if debug {
			pp.Fprintln(os.Stderr, p)
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if dryRun {
			fmt.Printf("Plan preview for %s\n", args[0])
			p.Print()
			return nil
		}

		processor := service.NewProcessor(cfg, logger, nil)
		for _, job := range p.Files {
			output := job.Output
			if output == "" && p.OutputDir != "" {
				output = p.OutputDir
			}
			batchSize := p.EffectiveBatchSize(job, cfg.BatchSize)
			total, err := processor.ProcessFile(job.Path, output, batchSize)
			if err != nil {
				return err
			}
			logger.Info("plan job done", "file", job.Path, "readings", total)
		}
		return nil
	},
}

func newLogger() *log.Logger {
	opts := log.Options{
		ReportTimestamp: true,
		Prefix:          "nem12sql",
	}
	if debug {
		opts.ReportCaller = true
		opts.Level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, opts)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Verbose logging and config dump")

	// Filter flags (global)
	rootCmd.PersistentFlags().StringVar(&cliFilters.nmi, "nmi", "", "Only emit readings for this NMI")
	rootCmd.PersistentFlags().StringVar(&cliFilters.startDate, "start", "", "Only emit readings at or after this date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().StringVar(&cliFilters.endDate, "end", "", "Only emit readings before this date (YYYY-MM-DD)")

	convertCmd.Flags().StringP("output", "o", "", "Output file (directory input: output directory; default: stdout)")
	convertCmd.Flags().IntP("batch-size", "b", 0, "Rows per INSERT statement (default 1000)")

	planCmd.Flags().Bool("dry-run", false, "Preview the plan without converting")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(planCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		// Malformed NEM12 input gets its own exit status so callers can
		// tell it apart from generic failure.
		var parseErr *nem12.ParseError
		if errors.As(err, &parseErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
