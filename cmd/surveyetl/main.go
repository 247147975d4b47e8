package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/cleaner"
	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/connector"
	"github.com/David-Botos/survey-etl/pkg/converter"
	"github.com/David-Botos/survey-etl/pkg/model"
	"github.com/David-Botos/survey-etl/pkg/pipeline"
	"github.com/David-Botos/survey-etl/pkg/profile"
	"github.com/David-Botos/survey-etl/pkg/report"
)

// cli holds the state shared by every command of one invocation
type cli struct {
	configPath string
	overrides  config.Overrides

	cfg    *config.Config
	logger *zap.Logger

	// profile flags
	topMissing int
	topValues  int
	cleaned    bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "surveyetl",
		Short: "Clean a survey CSV export and write analysis-ready outputs",
		Long: `surveyetl loads a survey export (one row per respondent, one column per
question), removes duplicates and sparse columns, fills missing values,
normalizes free text, renames question codes to descriptive names and derives
experience and compensation categories.

Run without arguments to execute the full pipeline from configuration.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
		RunE: c.runPipeline,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&c.overrides.Input, "input", "i", "", "input CSV (default: newest file matching input.pattern)")
	flags.StringVarP(&c.overrides.OutputDir, "output-dir", "o", "", "directory for output files")
	flags.StringVarP(&c.overrides.Format, "format", "f", "", "output format: csv, excel or all")
	flags.StringVar(&c.overrides.RulesFile, "rules", "", "YAML transform rules replacing the built-in ones")
	flags.StringVar(&c.overrides.SinkDriver, "sink", "", "also load the result into a database: postgres, snowflake or sqlite")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full cleaning pipeline",
		Args:  cobra.NoArgs,
		RunE:  c.runPipeline,
	}

	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Print descriptive statistics of the input",
		Long: `Prints dimensions, column kinds, missing values, duplicates, distinct
value counts, numeric summaries and the most frequent answers of the key
survey questions.`,
		Args: cobra.NoArgs,
		RunE: c.runProfile,
	}
	profileCmd.Flags().IntVar(&c.topMissing, "top-missing", 10, "columns listed by missing count")
	profileCmd.Flags().IntVar(&c.topValues, "top-values", 5, "values listed per key column")
	profileCmd.Flags().BoolVar(&c.cleaned, "cleaned", false, "profile the cleaned table instead of the raw input")

	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective transform rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return report.RenderRules(cmd.OutOrStdout(), c.cfg.Transform)
		},
	}

	rootCmd.AddCommand(runCmd, profileCmd, rulesCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads .env, configuration and the logger
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ApplyOverrides(c.overrides); err != nil {
		return fmt.Errorf("invalid command line options: %w", err)
	}
	c.cfg = cfg

	c.logger, err = newLogger(cfg.LogLevel, cfg.LogFormat)
	return err
}

func (c *cli) runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := c.signalContext()
	defer cancel()

	runner, err := pipeline.NewRunner(c.cfg, c.logger)
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	printRunResult(cmd.OutOrStdout(), result)
	return nil
}

func (c *cli) runProfile(cmd *cobra.Command, args []string) error {
	ctx, cancel := c.signalContext()
	defer cancel()

	conv := converter.NewTypeConverter(c.logger)
	source, err := connector.NewConnectorFactory(c.cfg, c.logger, conv).CreateSource()
	if err != nil {
		return err
	}
	path, err := source.ResolvePath()
	if err != nil {
		return err
	}
	table, err := source.Load(ctx, path)
	if err != nil {
		return err
	}

	opts := profile.DefaultOptions()
	opts.TopMissing = c.topMissing
	opts.TopValues = c.topValues
	opts.KeyColumns = c.cfg.Transform.ProfileColumns
	opts.Labels = c.cfg.Transform.RenameMap()

	if c.cleaned {
		table, err = c.clean(ctx, conv, table)
		if err != nil {
			return err
		}
		opts.KeyColumns = renamedKeys(opts.KeyColumns, opts.Labels)
		opts.Labels = nil
	}

	profiler, err := profile.NewProfiler(c.logger, conv)
	if err != nil {
		return err
	}
	p, err := profiler.Build(ctx, path, table, opts)
	if err != nil {
		return err
	}
	return report.RenderProfile(cmd.OutOrStdout(), p)
}

func (c *cli) clean(ctx context.Context, conv *converter.TypeConverter, table *model.Table) (*model.Table, error) {
	dc, err := cleaner.NewDataCleaner(c.logger, conv, c.cfg.Transform)
	if err != nil {
		return nil, err
	}
	result, err := dc.Clean(ctx, pipeline.NewRunID(), table)
	if err != nil {
		return nil, err
	}
	return result.Table, nil
}

// renamedKeys maps key columns to their names after renaming
func renamedKeys(keys []string, renames map[string]string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		if to, ok := renames[k]; ok {
			k = to
		}
		out[i] = k
	}
	return out
}

// signalContext is cancelled on SIGINT or SIGTERM
func (c *cli) signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			c.logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func printRunResult(w io.Writer, result *pipeline.RunResult) {
	fmt.Fprintf(w, "Run %s completed in %s\n", result.RunID, result.Duration.Round(1e6))
	fmt.Fprintf(w, "  input:   %s\n", result.InputPath)
	fmt.Fprintf(w, "  rows:    %d -> %d (%.2f%% retained)\n", result.RowsRead, result.RowsWritten, result.RetentionRate())
	fmt.Fprintf(w, "  columns: %d -> %d\n", result.ColumnsRead, result.ColumnsWritten)
	if result.SinkRows > 0 {
		fmt.Fprintf(w, "  sink:    %d rows, %d audit records\n", result.SinkRows, result.AuditRecords)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	for _, out := range result.Outputs {
		fmt.Fprintf(w, "  wrote:   %s\n", out)
	}
}
