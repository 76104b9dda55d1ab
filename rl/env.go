// Package rl implements the reward computation pipeline for code-generation
// episodes: extract the submission from the model response, verify it in a
// sandbox, obtain a quality grade from an external oracle, combine the
// signals into a scalar reward, and emit a replayable trace.
package rl

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"coderl/internal/logtree"
	"coderl/internal/observability"
	"coderl/rl/grader"
)

const defaultWorkers = 8

// Env wires the pipeline components for a run. Problems and responses are
// read-only inputs; every step produces its own value objects, so one Env
// can score many episodes concurrently.
type Env struct {
	sandbox Sandbox
	grader  grader.Grader
	reward  RewardConfig
	trace   *logtree.Trace
	log     *observability.Logger
	metrics *observability.MetricsCollector
	workers int
}

// EnvOption customizes an Env.
type EnvOption func(*Env)

// WithLogger sets the structured logger.
func WithLogger(log *observability.Logger) EnvOption {
	return func(e *Env) { e.log = log }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(mc *observability.MetricsCollector) EnvOption {
	return func(e *Env) { e.metrics = mc }
}

// WithWorkers bounds batch concurrency.
func WithWorkers(n int) EnvOption {
	return func(e *Env) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEnv validates the reward policy and assembles the pipeline. An
// invalid policy is the fatal configuration class; nothing per-episode is.
func NewEnv(sandbox Sandbox, g grader.Grader, reward RewardConfig, trace *logtree.Trace, opts ...EnvOption) (*Env, error) {
	if sandbox == nil {
		return nil, fmt.Errorf("sandbox is required")
	}
	if g == nil {
		return nil, fmt.Errorf("grader is required")
	}
	if err := reward.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reward config: %w", err)
	}

	e := &Env{
		sandbox: sandbox,
		grader:  g,
		reward:  reward,
		trace:   trace,
		log:     observability.Nop(),
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Step scores a single episode. It never fails: every per-episode error
// degrades to a defined numeric fallback visible only through the outcome's
// observability fields.
func (e *Env) Step(ctx context.Context, problem Problem, response string) StepOutcome {
	extraction := Extract(response)

	outcome := StepOutcome{
		ProblemID:  problem.ID,
		Statement:  problem.Statement,
		Response:   response,
		Extraction: extraction,
	}

	if !extraction.WellFormed {
		// No code to check or grade: fixed policy reward, grader skipped.
		outcome.Correctness = Correctness{Passed: false, Detail: "no code block found"}
		outcome.Reward = e.reward.NoCodeReward
		outcome.FinishedAt = time.Now()
		e.finish(ctx, &outcome)
		return outcome
	}

	outcome.Correctness = safeCheck(ctx, e.sandbox, extraction.Code, problem.TestSpec)
	outcome.Quality = e.grader.Grade(ctx, problem.Statement, extraction.Code)
	outcome.Graded = true
	outcome.Reward = Combine(outcome.Correctness.Passed, outcome.Quality, e.reward.QualityWeight)
	outcome.FinishedAt = time.Now()

	e.finish(ctx, &outcome)
	return outcome
}

// finish logs and records the outcome. Trace failures are reported but do
// not disturb the reward.
func (e *Env) finish(ctx context.Context, o *StepOutcome) {
	e.log.Debug("episode scored",
		"problem_id", o.ProblemID,
		"well_formed", o.Extraction.WellFormed,
		"passed", o.Correctness.Passed,
		"quality", o.Quality.Score,
		"parse_ok", o.Quality.ParseOK,
		"reward", o.Reward,
	)
	if e.metrics != nil {
		e.metrics.RecordEpisode(ctx, o.Correctness.Passed, o.Extraction.WellFormed, o.Reward)
		if o.Graded {
			e.metrics.RecordQuality(ctx, o.Quality.Score, o.Quality.ParseOK)
		}
	}
	if e.trace != nil {
		if err := e.trace.Log(logtree.StepRecord{
			ProblemID:    o.ProblemID,
			Problem:      o.Statement,
			Response:     o.Response,
			Code:         o.Extraction.Code,
			WellFormed:   o.Extraction.WellFormed,
			Passed:       o.Correctness.Passed,
			Detail:       o.Correctness.Detail,
			QualityScore: o.Quality.Score,
			ParseOK:      o.Quality.ParseOK,
			Reward:       o.Reward,
			LoggedAt:     o.FinishedAt,
		}); err != nil {
			e.log.Warn("trace write failed", "problem_id", o.ProblemID, "error", err)
		}
	}
}

// RunBatch scores episodes concurrently under the worker bound. Outcomes
// keep dataset order. Cancellation of the batch context stops scheduling;
// one episode's grading failure never affects its siblings.
func (e *Env) RunBatch(ctx context.Context, episodes []Episode) ([]StepOutcome, Summary, error) {
	outcomes := make([]StepOutcome, len(episodes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, ep := range episodes {
		i, ep := i, ep
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = e.Step(ctx, ep.Problem, ep.Response)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, Summarize(outcomes), fmt.Errorf("batch interrupted: %w", err)
	}
	return outcomes, Summarize(outcomes), nil
}
