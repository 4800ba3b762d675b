package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	adapter "github.com/modelcrucible/crucible/adapters/openai"
	"github.com/modelcrucible/crucible/internal/baseline"
	"github.com/modelcrucible/crucible/internal/config"
	"github.com/modelcrucible/crucible/internal/dataset"
	"github.com/modelcrucible/crucible/internal/executor"
	"github.com/modelcrucible/crucible/internal/job"
	"github.com/modelcrucible/crucible/internal/orchestrator"
	"github.com/modelcrucible/crucible/internal/report"
	"github.com/modelcrucible/crucible/internal/result"
	"github.com/modelcrucible/crucible/internal/scorer"
)

var (
	flagDatasets     []string
	flagConcurrency  int
	flagBaselinePath string
	flagPricing      string
	flagVerbose      bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute an evaluation job",
		RunE:  runEval,
	}
	cmd.Flags().StringSliceVar(&flagDatasets, "dataset", nil, "dataset id to evaluate (repeatable; default: all configured)")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "override execution concurrency")
	cmd.Flags().StringVar(&flagBaselinePath, "baseline", "", "prior report.json to compare against")
	cmd.Flags().StringVar(&flagPricing, "pricing", "", "pricing table yaml (per-1K-token costs)")
	cmd.Flags().BoolVar(&flagVerbose, "verbose", false, "debug logging")
	return cmd
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if flagConcurrency > 0 {
		cfg.Execution.Concurrency = flagConcurrency
	}

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	datasets, err := dataset.LoadDir(cfg.Datasets.Dir)
	if err != nil {
		return err
	}

	scoreFunc, err := scorer.New(cfg.Scorer.Type, cfg.Scorer.Params)
	if err != nil {
		return err
	}

	baselines := baseline.NewComparator()
	jobCfg := cfg.JobConfig(flagDatasets)
	baselinePath := flagBaselinePath
	if baselinePath == "" && cfg.Baseline.Compare {
		baselinePath = cfg.Baseline.ReportPath
	}
	if baselinePath != "" {
		prior, err := result.ReadReport(baselinePath)
		if err != nil {
			return fmt.Errorf("loading baseline report: %w", err)
		}
		name := cfg.Baseline.Name
		if name == "" {
			name = prior.JobID
		}
		id := baselines.StoreBaseline(baseline.StoreInput{
			Name:    name,
			RunID:   prior.JobID,
			Metrics: prior.Metrics,
		})
		jobCfg.CompareBaseline = true
		jobCfg.BaselineID = id
	}

	var pricing *adapter.PricingTable
	if flagPricing != "" {
		pricing, err = adapter.LoadPricing(flagPricing)
		if err != nil {
			return err
		}
	}

	eng := orchestrator.New(orchestrator.Deps{
		Jobs:      job.NewManager(cfg.Execution.MaxConcurrentJobs),
		Baselines: baselines,
		Reports:   report.NewGenerator(),
		Datasets:  datasets,
		Pool:      executor.NewScoringWorkerPool(cfg.Execution.ScoringWorkers),
		ExecutorConf: executor.Config{
			Concurrency:       cfg.Execution.Concurrency,
			RequestsPerMinute: cfg.Execution.RequestsPerMinute,
			TokensPerMinute:   cfg.Execution.TokensPerMinute,
		},
		Logger: log,
	})

	execFunc := adapter.NewExecuteFunc(adapter.Options{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Pricing: pricing,
	})
	scoring := func(_ context.Context, item dataset.TestItem, res *result.RunResult) (result.ScoreResult, error) {
		passed, score, reason := scoreFunc(res.Output, item.Expected)
		return result.ScoreResult{Passed: passed, Score: score, Reason: reason}, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	rep, err := eng.Run(ctx, jobCfg, execFunc, scoring)
	if err != nil {
		return err
	}

	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	path, err := result.WriteReport(runDir, rep)
	if err != nil {
		return err
	}
	fmt.Printf("Report: %s\n\n", path)

	printSummary(os.Stdout, rep, time.Since(started))
	return nil
}

func printSummary(out io.Writer, rep *result.EvalReport, elapsed time.Duration) {
	var tokens int64
	for _, run := range rep.RunSummaries {
		for _, r := range run.Results {
			tokens += int64(r.InputTokens + r.OutputTokens)
		}
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Job\t%s\n", rep.JobID)
	fmt.Fprintf(w, "Status\t%s\n", rep.Summary.Status)
	fmt.Fprintf(w, "Tests\t%d (%d passed, %d failed)\n", rep.Summary.TotalTests, rep.Summary.Passed, rep.Summary.Failed)
	fmt.Fprintf(w, "Accuracy\t%.1f%%\n", rep.Summary.Accuracy)
	fmt.Fprintf(w, "Avg score\t%.3f\n", rep.Summary.AvgScore)
	fmt.Fprintf(w, "Avg latency\t%.0f ms\n", rep.Metrics.AvgLatencyMs)
	fmt.Fprintf(w, "Tokens\t%s\n", humanize.Comma(tokens))
	fmt.Fprintf(w, "Cost\t$%.4f\n", rep.Summary.TotalCostUSD)
	fmt.Fprintf(w, "Duration\t%s\n", elapsed.Round(time.Millisecond))
	w.Flush()

	if len(rep.Metrics.Categories) > 1 {
		fmt.Fprintln(out, "\nCategories:")
		w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, c := range rep.Metrics.Categories {
			fmt.Fprintf(w, "  %s\t%d tests\t%.1f%%\t$%.4f\n", c.Category, c.TotalTests, c.Accuracy, c.TotalCostUSD)
		}
		w.Flush()
	}

	if len(rep.Regressions) > 0 {
		fmt.Fprintln(out, "\nRegressions:")
		w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, r := range rep.Regressions {
			fmt.Fprintf(w, "  %s\t%s\t%.2f -> %.2f\t%+.1f%%\t%s\n",
				r.Metric, r.Category, r.BaselineValue, r.CurrentValue, r.PercentChange, r.Severity)
		}
		w.Flush()
	}

	for _, rec := range rep.Recommendations {
		fmt.Fprintf(out, "\n[%s] %s\n  %s\n", rec.Severity, rec.Message, rec.Action)
	}
}
