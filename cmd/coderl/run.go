package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"coderl/internal/config"
	"coderl/internal/logtree"
	"coderl/internal/observability"
	"coderl/internal/runid"
	"coderl/rl"
	"coderl/rl/grader"
)

// datasetLine is one JSONL episode: a problem plus the model response
// produced for it by an external policy.
type datasetLine struct {
	ID        string          `json:"id"`
	Statement string          `json:"statement"`
	TestSpec  json.RawMessage `json:"test_spec,omitempty"`
	Response  string          `json:"response"`
}

func newRunCommand() *cobra.Command {
	var (
		datasetPath string
		weight      float64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score a batch of episodes from a JSONL dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("weight") {
				cfg.Reward.QualityWeight = weight
				if err := cfg.Reward.Validate(); err != nil {
					return err
				}
			}
			return runBatch(cmd.Context(), cfg, datasetPath)
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "JSONL file of {id, statement, test_spec, response} episodes")
	cmd.Flags().Float64Var(&weight, "weight", rl.DefaultQualityWeight, "Quality weight override in [0,1]")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func runBatch(ctx context.Context, cfg *config.Config, datasetPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := observability.NewLogger(cfg.Log)

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	token, err := runid.LoadOrCreate(cfg.LogDir)
	if err != nil {
		return err
	}
	log.Info("run initialized", "run_id", token, "log_dir", cfg.LogDir)

	metrics, err := observability.NewMetricsCollector(cfg.Metrics)
	if err != nil {
		return err
	}
	defer func() { _ = metrics.Shutdown(context.Background()) }()

	sink, err := logtree.NewJSONLSink(filepath.Join(cfg.LogDir, logtree.EpisodesFileName))
	if err != nil {
		return err
	}
	defer sink.Close()
	trace := logtree.NewTrace(token, sink)

	g, err := buildGrader(cfg, log, metrics)
	if err != nil {
		return err
	}

	sandbox := &rl.CommandSandbox{
		Command: cfg.Sandbox.Command,
		Args:    cfg.Sandbox.Args,
		Timeout: cfg.Sandbox.Timeout(),
	}

	env, err := rl.NewEnv(sandbox, g, cfg.Reward, trace,
		rl.WithLogger(log),
		rl.WithMetrics(metrics),
		rl.WithWorkers(cfg.Workers),
	)
	if err != nil {
		return err
	}

	episodes, err := loadDataset(datasetPath)
	if err != nil {
		return err
	}
	log.Info("dataset loaded", "episodes", len(episodes))

	_, summary, err := env.RunBatch(ctx, episodes)
	if err != nil {
		log.Warn("batch did not complete", "error", err)
	}
	if cg, ok := g.(*grader.CachedGrader); ok {
		log.Info(cg.Stats().Summary())
	}

	printSummary(summary)
	return nil
}

func buildGrader(cfg *config.Config, log *observability.Logger, metrics *observability.MetricsCollector) (grader.Grader, error) {
	rubric := grader.DefaultRubric()
	if cfg.Grader.RubricPath != "" {
		var err error
		rubric, err = grader.LoadRubric(cfg.Grader.RubricPath)
		if err != nil {
			return nil, err
		}
	}

	oracle, err := grader.NewCLIOracle(cfg.Grader.Backend, cfg.Grader.Model, cfg.Grader.Timeout())
	if err != nil {
		return nil, err
	}

	inner := grader.NewOracleGrader(oracle, rubric, cfg.Grader.NeutralScore, log).WithMetrics(metrics)
	cached, err := grader.NewCachedGrader(inner, cfg.Grader.Cache)
	if err != nil {
		return nil, err
	}
	return cached.WithMetrics(metrics), nil
}

func loadDataset(path string) ([]rl.Episode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	var episodes []rl.Episode
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var line datasetLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("dataset line %d: %w", lineNo, err)
		}
		episodes = append(episodes, rl.Episode{
			Problem: rl.Problem{
				ID:        line.ID,
				Statement: line.Statement,
				TestSpec:  rl.TestSpec(line.TestSpec),
			},
			Response: line.Response,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return episodes, nil
}

func newSummaryCommand() *cobra.Command {
	var logDir string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize an existing episode trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := logtree.ReadJSONL(filepath.Join(logDir, logtree.EpisodesFileName))
			if err != nil {
				return err
			}
			token := ""
			if len(records) > 0 {
				token = records[0].RunID
			}
			s := logtree.SummarizeRecords(token, records)
			printTraceSummary(s)
			return nil
		},
	}

	cmd.Flags().StringVar(&logDir, "log-dir", "./coderl-logs", "Run log directory")
	return cmd
}

func printSummary(s rl.Summary) {
	fmt.Println(bold("Batch summary"))
	fmt.Printf("  episodes:    %d\n", s.Total)
	fmt.Printf("  pass rate:   %s\n", rateColor(s.PassRate))
	fmt.Printf("  format rate: %s\n", rateColor(s.FormatRate))
	fmt.Printf("  mean reward: %s\n", cyan(fmt.Sprintf("%.4f", s.MeanReward)))
	fmt.Printf("  mean quality: %.4f\n", s.MeanQuality)
	if s.ParseFailures > 0 {
		fmt.Printf("  parse fallbacks: %s\n", yellow(fmt.Sprintf("%d", s.ParseFailures)))
	}
}

func printTraceSummary(s logtree.Summary) {
	fmt.Println(bold("Run summary") + " " + cyan(s.RunID))
	fmt.Printf("  episodes:    %d\n", s.Total)
	fmt.Printf("  pass rate:   %s\n", rateColor(s.PassRate))
	fmt.Printf("  format rate: %s\n", rateColor(s.FormatRate))
	fmt.Printf("  mean reward: %s\n", cyan(fmt.Sprintf("%.4f", s.MeanReward)))
	fmt.Printf("  mean quality: %.4f\n", s.MeanQuality)
	if s.ParseFailures > 0 {
		fmt.Printf("  parse fallbacks: %s\n", yellow(fmt.Sprintf("%d", s.ParseFailures)))
	}
}

func rateColor(rate float64) string {
	text := fmt.Sprintf("%.1f%%", rate*100)
	switch {
	case rate >= 0.8:
		return green(text)
	case rate >= 0.4:
		return yellow(text)
	default:
		return red(text)
	}
}
