package rl

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"coderl/internal/logtree"
	"coderl/rl/grader"
)

func passingSandbox() Sandbox {
	return SandboxFunc(func(ctx context.Context, code string, spec TestSpec) (Correctness, error) {
		return Correctness{Passed: true}, nil
	})
}

func failingSandbox() Sandbox {
	return SandboxFunc(func(ctx context.Context, code string, spec TestSpec) (Correctness, error) {
		return Correctness{Passed: false, Detail: "assertion failed"}, nil
	})
}

func fixedGrader(score float64) grader.Grader {
	return grader.Func(func(ctx context.Context, statement, code string) grader.Grade {
		return grader.Grade{Score: score, ParseOK: true}
	})
}

const wellFormedResponse = "Solution:\n```python\ndef solve():\n    return 42\n```"

func TestStep_CorrectSubmissionFullReward(t *testing.T) {
	env, err := NewEnv(passingSandbox(), fixedGrader(1.0),
		RewardConfig{QualityWeight: 0.1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := env.Step(context.Background(), Problem{ID: "p1", Statement: "return 42"}, wellFormedResponse)
	if !out.Correctness.Passed {
		t.Fatal("expected passed")
	}
	if !almostEqual(out.Reward, 1.0) {
		t.Errorf("reward = %v, want 1.0", out.Reward)
	}
}

func TestStep_IncorrectSubmissionWeightedQuality(t *testing.T) {
	env, err := NewEnv(failingSandbox(), fixedGrader(0.4),
		RewardConfig{QualityWeight: 0.1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := env.Step(context.Background(), Problem{ID: "p2"}, wellFormedResponse)
	if out.Correctness.Passed {
		t.Fatal("expected failed")
	}
	if !almostEqual(out.Reward, 0.04) {
		t.Errorf("reward = %v, want 0.04", out.Reward)
	}
}

func TestStep_NoCodeSkipsGraderAndPaysPolicyReward(t *testing.T) {
	var graderCalls atomic.Int64
	g := grader.Func(func(ctx context.Context, statement, code string) grader.Grade {
		graderCalls.Add(1)
		return grader.Grade{Score: 1, ParseOK: true}
	})

	for _, weight := range []float64{0, 0.5, 1} {
		env, err := NewEnv(passingSandbox(), g,
			RewardConfig{QualityWeight: weight, NoCodeReward: 0}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := env.Step(context.Background(), Problem{ID: "p3"}, "no code here, sorry")
		if out.Extraction.WellFormed {
			t.Fatal("expected well_formed=false")
		}
		if out.Correctness.Passed {
			t.Error("expected passed=false on no-code path")
		}
		if out.Graded {
			t.Error("grader must not run without code")
		}
		if out.Reward != 0 {
			t.Errorf("weight %v: reward = %v, want no-code reward 0", weight, out.Reward)
		}
	}
	if graderCalls.Load() != 0 {
		t.Errorf("grader called %d times on no-code path", graderCalls.Load())
	}
}

func TestStep_SandboxErrorDegradesToFailed(t *testing.T) {
	sb := SandboxFunc(func(ctx context.Context, code string, spec TestSpec) (Correctness, error) {
		return Correctness{}, errors.New("sandbox unavailable")
	})

	env, err := NewEnv(sb, fixedGrader(0.8), RewardConfig{QualityWeight: 0.5}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := env.Step(context.Background(), Problem{ID: "p4"}, wellFormedResponse)
	if out.Correctness.Passed {
		t.Error("expected failed after sandbox error")
	}
	if !strings.Contains(out.Correctness.Detail, "sandbox unavailable") {
		t.Errorf("expected diagnostic detail, got %q", out.Correctness.Detail)
	}
	// Quality still contributes despite the sandbox failure.
	if !almostEqual(out.Reward, 0.4) {
		t.Errorf("reward = %v, want 0.4", out.Reward)
	}
}

func TestStep_LogsTraceRecord(t *testing.T) {
	trace := logtree.NewTrace("run-1", nil)
	env, err := NewEnv(passingSandbox(), fixedGrader(0.9),
		RewardConfig{QualityWeight: 0.1}, trace)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env.Step(context.Background(), Problem{ID: "p5", Statement: "do a thing"}, wellFormedResponse)

	records := trace.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.RunID != "run-1" || rec.ProblemID != "p5" {
		t.Errorf("unexpected identity: %+v", rec)
	}
	if rec.Problem != "do a thing" || rec.Response != wellFormedResponse {
		t.Error("record must carry problem and response verbatim")
	}
	if !rec.Passed || rec.QualityScore != 0.9 || !rec.ParseOK {
		t.Errorf("unexpected outcome fields: %+v", rec)
	}
}

func TestNewEnv_RejectsInvalidWeight(t *testing.T) {
	_, err := NewEnv(passingSandbox(), fixedGrader(1), RewardConfig{QualityWeight: 1.2}, nil)
	if err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestRunBatch_SummarizesOutcomes(t *testing.T) {
	// Pass problems with even-numbered IDs, fail the rest.
	sb := SandboxFunc(func(ctx context.Context, code string, spec TestSpec) (Correctness, error) {
		return Correctness{Passed: strings.HasSuffix(code, "0")}, nil
	})
	env, err := NewEnv(sb, fixedGrader(0.5), RewardConfig{QualityWeight: 0}, nil, WithWorkers(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	episodes := []Episode{
		{Problem: Problem{ID: "a"}, Response: "```py\nx = 0\n```"},
		{Problem: Problem{ID: "b"}, Response: "```py\nx = 1\n```"},
		{Problem: Problem{ID: "c"}, Response: "no code at all"},
		{Problem: Problem{ID: "d"}, Response: "```py\ny = 0\n```"},
	}

	outcomes, summary, err := env.RunBatch(context.Background(), episodes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(outcomes))
	}
	// Order must match the dataset.
	for i, id := range []string{"a", "b", "c", "d"} {
		if outcomes[i].ProblemID != id {
			t.Errorf("outcome %d has id %s, want %s", i, outcomes[i].ProblemID, id)
		}
	}
	if summary.Total != 4 || summary.Passed != 2 || summary.WellFormed != 3 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if !almostEqual(summary.PassRate, 0.5) || !almostEqual(summary.FormatRate, 0.75) {
		t.Errorf("unexpected rates: %+v", summary)
	}
	if !almostEqual(summary.MeanReward, 0.5) {
		t.Errorf("mean reward = %v, want 0.5", summary.MeanReward)
	}
}
