package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/testkube/suiterunner/internal/config"
	"github.com/testkube/suiterunner/internal/executor"
	"github.com/testkube/suiterunner/internal/history"
	"github.com/testkube/suiterunner/internal/registry"
	"github.com/testkube/suiterunner/internal/report"
	"github.com/testkube/suiterunner/internal/runner"
	"github.com/testkube/suiterunner/internal/suite"
	"github.com/testkube/suiterunner/internal/suitefile"
)

type runOptions struct {
	file        string
	configPath  string
	runnerURL   string
	runnerToken string
	mock        bool
	reportDir   string
	format      string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a suite file and write a report",
		Long: `Run loads a suite file, executes every test in category order and
prints each result as it completes. A report of the run is written into the
report directory. The command fails when any test fails.`,
		Example: `  suitectl run -f suite.yaml --mock
  suitectl run -f suite.yaml --runner-url http://runner:9090 --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("runner-url") {
				cfg.Runner.URL = opts.runnerURL
				cfg.Runner.Mock = opts.runnerURL == ""
			}
			if flags.Changed("runner-token") {
				cfg.Runner.Token = opts.runnerToken
			}
			if flags.Changed("mock") {
				cfg.Runner.Mock = opts.mock
			}
			if flags.Changed("report-dir") {
				cfg.Report.Dir = opts.reportDir
			}
			if flags.Changed("format") {
				cfg.Report.Format = opts.format
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runSuiteFile(ctx, cmd, opts.file, cfg)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "suite file to run")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to a TOML config file")
	cmd.Flags().StringVar(&opts.runnerURL, "runner-url", "", "runner service base URL")
	cmd.Flags().StringVar(&opts.runnerToken, "runner-token", "", "runner service bearer token")
	cmd.Flags().BoolVar(&opts.mock, "mock", false, "use the static runner")
	cmd.Flags().StringVar(&opts.reportDir, "report-dir", "", "directory for the run report")
	cmd.Flags().StringVar(&opts.format, "format", "", "report format (json or yaml)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newCapability(ctx context.Context, cfg *config.Config) (executor.Capability, error) {
	if cfg.Runner.Mock {
		return runner.NewStatic(cfg.Runner.MockDurationMillis), nil
	}
	return runner.NewClient(ctx, runner.Config{
		BaseURL: cfg.Runner.URL,
		Token:   cfg.Runner.Token,
		Timeout: cfg.Runner.Timeout.Duration,
	})
}

func runSuiteFile(ctx context.Context, cmd *cobra.Command, path string, cfg *config.Config) error {
	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		return err
	}

	f, err := suitefile.Load(path)
	if err != nil {
		return err
	}
	reg := registry.New()
	if _, err := reg.AddAll(f.Tests); err != nil {
		return err
	}

	capability, err := newCapability(ctx, cfg)
	if err != nil {
		return err
	}

	hist := history.New(1)
	exec := executor.New(capability, executor.WithRecorder(hist), executor.WithStatusSink(reg))

	out := cmd.OutOrStdout()
	var results []suite.TestResult
	for res, err := range exec.RunAll(ctx, reg.List()) {
		if err != nil {
			return err
		}
		results = append(results, res)
		printResult(cmd, res)
	}

	summary, ok := hist.Latest()
	if !ok {
		return fmt.Errorf("run finished without a summary")
	}
	fmt.Fprintf(out, "\n%d tests, %d passed, %d failed\n", summary.Total, summary.Passed, summary.Failed)

	exporter := report.NewExporter()
	data, err := exporter.Export(results, summary, format)
	if err != nil {
		return err
	}
	saved, err := report.NewDirSink(cfg.Report.Dir).Save(exporter.FileName(format), data)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Report written to %s\n", saved)

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d tests failed", summary.Failed, summary.Total)
	}
	return nil
}

func printResult(cmd *cobra.Command, res suite.TestResult) {
	mark := "PASS"
	if res.Status != suite.StatusPassed {
		mark = "FAIL"
	}
	line := fmt.Sprintf("%s  %-11s %s (%dms)", mark, res.Category, res.Name, res.DurationMillis)
	if res.Error != "" {
		line += ": " + res.Error
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
}
