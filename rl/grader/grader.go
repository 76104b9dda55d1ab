// Package grader obtains a continuous [0,1] code-quality estimate from an
// external, non-deterministic oracle process, degrading to a defined
// neutral score on every failure mode.
package grader

import (
	"context"
	"time"

	"coderl/internal/observability"
)

// Grade is a bounded quality estimate. Score is always in [0,1] no matter
// what the oracle produced; clamping is unconditional.
type Grade struct {
	Score   float64 `json:"score"`
	Raw     string  `json:"raw_response,omitempty"`
	ParseOK bool    `json:"parse_ok"`
}

// Grader is the capability consumed by the reward pipeline. Implementations
// must be total: every failure mode downgrades to a valid Grade rather than
// surfacing an error.
type Grader interface {
	Grade(ctx context.Context, statement, code string) Grade
}

// Func adapts a plain function to the Grader interface. Used heavily in
// tests to exercise the pipeline without a live process.
type Func func(ctx context.Context, statement, code string) Grade

func (f Func) Grade(ctx context.Context, statement, code string) Grade {
	return f(ctx, statement, code)
}

// OracleGrader grades code by building a rubric prompt, invoking an oracle
// process, and parsing the response through the fallback chain.
type OracleGrader struct {
	oracle  Oracle
	rubric  Rubric
	neutral float64
	log     *observability.Logger
	metrics *observability.MetricsCollector
}

// NewOracleGrader wires an oracle to the parse chain. neutral is the score
// used when nothing numeric is recoverable from the oracle output.
func NewOracleGrader(oracle Oracle, rubric Rubric, neutral float64, log *observability.Logger) *OracleGrader {
	if log == nil {
		log = observability.Nop()
	}
	return &OracleGrader{oracle: oracle, rubric: rubric, neutral: neutral, log: log}
}

// WithMetrics attaches a metrics collector for oracle call instrumentation.
func (g *OracleGrader) WithMetrics(mc *observability.MetricsCollector) *OracleGrader {
	g.metrics = mc
	return g
}

// Grade never returns an error: invocation failures fall through to the
// parser with whatever partial output exists, and the parser always yields
// a clamped score.
func (g *OracleGrader) Grade(ctx context.Context, statement, code string) Grade {
	prompt := BuildPrompt(statement, code, g.rubric)

	start := time.Now()
	raw, err := g.oracle.Invoke(ctx, prompt)
	if g.metrics != nil {
		g.metrics.RecordOracleCall(ctx, time.Since(start), err != nil)
	}
	if err != nil {
		g.log.Warn("oracle invocation failed", "error", err)
	}

	grade := ParseScore(raw, g.neutral)
	if !grade.ParseOK {
		g.log.Debug("oracle output not parseable, using fallback",
			"score", grade.Score, "raw_len", len(raw))
	}
	return grade
}
