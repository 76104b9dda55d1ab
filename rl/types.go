package rl

import (
	"encoding/json"
	"time"

	"coderl/rl/grader"
)

// TestSpec is an opaque handle understood only by the sandbox implementation.
// The core never inspects it; it is carried from the dataset to the port.
type TestSpec = json.RawMessage

// Problem is an immutable code task created at dataset-build time.
type Problem struct {
	ID        string   `json:"id"`
	Statement string   `json:"statement"`
	TestSpec  TestSpec `json:"test_spec,omitempty"`
}

// Episode pairs a problem with the model response produced for it.
type Episode struct {
	Problem  Problem `json:"problem"`
	Response string  `json:"response"`
}

// Extraction is the result of locating a code block inside a model response.
type Extraction struct {
	Code       string `json:"code,omitempty"`
	WellFormed bool   `json:"well_formed"`
}

// Correctness is the sandbox verdict for a submission. Detail carries
// diagnostic output for logging only; it never feeds into grading.
type Correctness struct {
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// StepOutcome aggregates everything a single episode produced. It is
// immutable once constructed and is the unit handed to the trace logger
// and to the training loop.
type StepOutcome struct {
	ProblemID   string       `json:"problem_id"`
	Statement   string       `json:"statement"`
	Response    string       `json:"response"`
	Extraction  Extraction   `json:"extraction"`
	Correctness Correctness  `json:"correctness"`
	Quality     grader.Grade `json:"quality"`
	// Graded reports whether the quality grader actually ran. It is false
	// on the no-code path, where Quality holds the zero grade.
	Graded     bool      `json:"graded"`
	Reward     float64   `json:"reward"`
	FinishedAt time.Time `json:"finished_at"`
}

// Summary aggregates step outcomes across a batch.
type Summary struct {
	Total         int     `json:"total"`
	Passed        int     `json:"passed"`
	WellFormed    int     `json:"well_formed"`
	ParseFailures int     `json:"parse_failures"`
	PassRate      float64 `json:"pass_rate"`
	FormatRate    float64 `json:"format_rate"`
	MeanReward    float64 `json:"mean_reward"`
	MeanQuality   float64 `json:"mean_quality"`
}

// Summarize computes batch statistics over outcomes. Mean quality only
// counts episodes that were actually graded.
func Summarize(outcomes []StepOutcome) Summary {
	s := Summary{Total: len(outcomes)}
	if s.Total == 0 {
		return s
	}

	var rewardSum, qualitySum float64
	graded := 0
	for _, o := range outcomes {
		if o.Correctness.Passed {
			s.Passed++
		}
		if o.Extraction.WellFormed {
			s.WellFormed++
		}
		if o.Graded {
			graded++
			qualitySum += o.Quality.Score
			if !o.Quality.ParseOK {
				s.ParseFailures++
			}
		}
		rewardSum += o.Reward
	}

	s.PassRate = float64(s.Passed) / float64(s.Total)
	s.FormatRate = float64(s.WellFormed) / float64(s.Total)
	s.MeanReward = rewardSum / float64(s.Total)
	if graded > 0 {
		s.MeanQuality = qualitySum / float64(graded)
	}
	return s
}
