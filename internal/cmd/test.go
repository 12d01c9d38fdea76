package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/harrison/gauntlet/internal/config"
	"github.com/harrison/gauntlet/internal/exampleplugin"
	"github.com/harrison/gauntlet/internal/judge"
	"github.com/harrison/gauntlet/internal/logger"
	"github.com/harrison/gauntlet/internal/models"
	"github.com/harrison/gauntlet/internal/plugin"
	"github.com/harrison/gauntlet/internal/progress"
	"github.com/harrison/gauntlet/internal/publish"
	"github.com/harrison/gauntlet/internal/report"
	"github.com/harrison/gauntlet/internal/runner"
	"github.com/harrison/gauntlet/internal/suite"
)

// NewTestCommand creates the test command
func NewTestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <suite-file>",
		Short: "Run a test suite and report aggregated scores",
		Long: `Run the feature under test against every case in a YAML suite file.

Each case flows through its own pipeline: setup, feature execution, then
static checks and LLM evaluation in parallel. Cases are isolated; a
failure or timeout in one case is recorded and the rest continue. With
--runs-count above 1 the whole suite executes that many times and the
summary aggregates scores per case across runs.

Configuration is loaded from .gauntlet/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  # Single run
  gauntlet test suites/assistant.yaml

  # Three runs, aggregated summary
  gauntlet test --runs-count 3 suites/assistant.yaml

  # Only cases carrying a tag
  gauntlet test --test-tag smoke suites/assistant.yaml

  # Other options
  gauntlet test --dst-dir ./reports suites/assistant.yaml
  gauntlet test --verbose suites/assistant.yaml
  gauntlet test --quiet suites/assistant.yaml
  gauntlet test --config custom.yaml suites/assistant.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: testCommand,
	}

	cmd.Flags().IntP("runs-count", "r", 1, "Number of times to execute the full suite")
	cmd.Flags().StringSliceP("test-tag", "t", nil, "Only run cases carrying at least one of these tags")
	cmd.Flags().StringP("dst-dir", "d", "", "Directory for generated reports")
	cmd.Flags().BoolP("verbose", "v", false, "Show per-stage timing and progress detail")
	cmd.Flags().BoolP("quiet", "q", false, "Suppress progress output")
	cmd.Flags().Bool("csv", true, "Generate CSV reports (overrides config)")
	cmd.Flags().String("config", "", "Path to config file (default: .gauntlet/config.yaml)")

	return cmd
}

// testCommand implements the test command logic
func testCommand(cmd *cobra.Command, args []string) error {
	suitePath := args[0]

	configPath, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error

	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	runsCount, _ := cmd.Flags().GetInt("runs-count")
	tags, _ := cmd.Flags().GetStringSlice("test-tag")
	quiet, _ := cmd.Flags().GetBool("quiet")

	if runsCount < 1 {
		return fmt.Errorf("runs-count must be at least 1, got %d", runsCount)
	}
	if dstDir, _ := cmd.Flags().GetString("dst-dir"); dstDir != "" {
		cfg.DstDir = dstDir
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose, _ = cmd.Flags().GetBool("verbose")
	}
	if cmd.Flags().Changed("csv") {
		cfg.EnableCSVReport, _ = cmd.Flags().GetBool("csv")
	}

	logLevel := cfg.LogLevel
	if quiet {
		logLevel = "error"
	}
	log := logger.NewConsoleLogger(os.Stderr, logLevel)

	registry := plugin.NewRegistry[exampleplugin.Input, exampleplugin.Output, exampleplugin.Evaluation, *exampleplugin.Row]()
	registry.Register(exampleplugin.New(exampleplugin.Options{
		CasesPath:    suitePath,
		ResourcesDir: filepath.Dir(suitePath),
		Judge:        buildJudge(cfg, log),
	}))

	if cfg.EnableCSVReport {
		writer := publish.NewCSVWriter(cfg.DstDir, cfg.ReportName)
		registry.Register(plugin.Hooks[exampleplugin.Input, exampleplugin.Output, exampleplugin.Evaluation, *exampleplugin.Row]{
			Name: "csv-report",
			PublishResults: func(ctx context.Context, rows []*exampleplugin.Row, runIndex int) error {
				return writer.Publish(ctx, asModelRows(rows), runIndex)
			},
		})
	}

	if cfg.ResultsDB != "" {
		store, err := publish.NewStore(cfg.ResultsDB)
		if err != nil {
			return fmt.Errorf("failed to open results store: %w", err)
		}
		defer store.Close()
		registry.Register(plugin.Hooks[exampleplugin.Input, exampleplugin.Output, exampleplugin.Evaluation, *exampleplugin.Row]{
			Name: "results-store",
			PublishResults: func(ctx context.Context, rows []*exampleplugin.Row, runIndex int) error {
				return store.Publish(ctx, asModelRows(rows), runIndex)
			},
		})
	}

	resolved, err := registry.Resolve()
	if err != nil {
		return fmt.Errorf("failed to resolve plugins: %w", err)
	}

	cases, err := resolved.GetTestCases()
	if err != nil {
		return fmt.Errorf("failed to load test cases: %w", err)
	}
	cases = suite.FilterByTags(cases, tags)
	if len(cases) == 0 {
		return fmt.Errorf("no test cases to run")
	}

	var reporter progress.Reporter
	if quiet {
		reporter = progress.NewNoopReporter()
	} else {
		reporter = progress.NewConsoleReporter(os.Stdout, len(cases)*runsCount, true, cfg.Verbose)
	}

	ctx := cmd.Context()
	services := make([]*runner.Service[exampleplugin.Input, exampleplugin.Output, exampleplugin.Evaluation, *exampleplugin.Row], runsCount)
	runErrs := make([]error, runsCount)

	var g errgroup.Group
	for i := 0; i < runsCount; i++ {
		svc := runner.NewService(cases, resolved, reporter, log, cfg.Verbose)
		services[i] = svc
		runIndex := i
		g.Go(func() error {
			runErrs[runIndex] = svc.RunTests(ctx)
			if err := svc.PublishResults(ctx, runIndex); err != nil {
				log.LogErrorf("failed to publish results for run %d: %v", runIndex, err)
			}
			return nil
		})
	}
	// Closures report per-run errors through runErrs.
	_ = g.Wait()

	runs := make([]report.RunData, 0, runsCount)
	var failures []models.CaseFailure
	for _, svc := range services {
		runs = append(runs, report.RunData{
			Rows:      svc.Rows(),
			Durations: svc.Durations(),
		})
		failures = append(failures, svc.Failures()...)
	}
	report.NewSummary(runs, failures, cfg.Verbose).Display(os.Stdout)

	var strictErrs []error
	for _, runErr := range runErrs {
		var strict *models.StrictFailureError
		if errors.As(runErr, &strict) {
			strictErrs = append(strictErrs, runErr)
		} else if runErr != nil {
			return runErr
		}
	}
	if len(strictErrs) > 0 {
		return errors.Join(strictErrs...)
	}
	return nil
}

// buildJudge wires the OpenAI judge when an API key and evaluation specs are
// available. Without them the plugin's offline evaluator takes over.
func buildJudge(cfg *config.Config, log logger.Logger) *judge.Judge {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.LogInfo("OPENAI_API_KEY not set, using offline evaluation")
		return nil
	}

	specs, err := judge.LoadSpecs(cfg.Judge.SpecsDir)
	if err != nil {
		log.LogErrorf("failed to load judge specs from %s: %v", cfg.Judge.SpecsDir, err)
		log.LogInfo("falling back to offline evaluation")
		return nil
	}

	client := judge.NewOpenAIClient(apiKey)
	return judge.New(client, cfg.Judge.Model, cfg.Judge.Temperature, specs)
}

func asModelRows(rows []*exampleplugin.Row) []models.Row {
	out := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, r)
	}
	return out
}
