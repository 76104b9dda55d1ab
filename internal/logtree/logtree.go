// Package logtree assembles structured, replayable episode traces. It is a
// pure consumer of the reward pipeline: it renders outcomes into grouped
// records and aggregate summaries without ever influencing them.
package logtree

import (
	"fmt"
	"sync"
	"time"
)

// StepRecord is the structured trace of one episode. Each field group maps
// to an independently collapsible section in whatever renders the trace.
type StepRecord struct {
	RunID     string    `json:"run_id"`
	ProblemID string    `json:"problem_id"`
	LoggedAt  time.Time `json:"logged_at"`

	Problem  string `json:"problem"`
	Response string `json:"response"`

	// Code is empty and WellFormed false when no block was extracted.
	Code       string `json:"code,omitempty"`
	WellFormed bool   `json:"well_formed"`

	Passed       bool    `json:"passed"`
	Detail       string  `json:"detail,omitempty"`
	QualityScore float64 `json:"quality_score"`
	ParseOK      bool    `json:"parse_ok"`
	Reward       float64 `json:"reward"`
}

// Section is one titled, collapsible group of a rendered record.
type Section struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Collapsed bool   `json:"collapsed"`
}

// NoCodeMarker is rendered in place of an absent code block.
const NoCodeMarker = "(no code block found)"

// Sections renders the record's groups in causal order. Bulky sections
// start collapsed; the outcome stays open.
func (r StepRecord) Sections() []Section {
	code := r.Code
	if !r.WellFormed {
		code = NoCodeMarker
	}
	return []Section{
		{Title: "Problem", Body: r.Problem, Collapsed: true},
		{Title: "Model response", Body: r.Response, Collapsed: true},
		{Title: "Extracted code", Body: code, Collapsed: true},
		{Title: "Outcome", Body: outcomeBody(r)},
	}
}

func outcomeBody(r StepRecord) string {
	return fmt.Sprintf("passed=%t quality=%.3f parse_ok=%t reward=%.3f",
		r.Passed, r.QualityScore, r.ParseOK, r.Reward)
}

// Summary aggregates a trace for at-a-glance review.
type Summary struct {
	RunID         string  `json:"run_id"`
	Total         int     `json:"total"`
	Passed        int     `json:"passed"`
	WellFormed    int     `json:"well_formed"`
	ParseFailures int     `json:"parse_failures"`
	PassRate      float64 `json:"pass_rate"`
	FormatRate    float64 `json:"format_rate"`
	MeanReward    float64 `json:"mean_reward"`
	MeanQuality   float64 `json:"mean_quality"`
}

// Document is the replayable artifact handed to a renderer: the summary
// always comes first, whatever order records were emitted in.
type Document struct {
	Summary Summary      `json:"summary"`
	Steps   []StepRecord `json:"steps"`
}

// Sink receives each record as it is logged.
type Sink interface {
	Write(rec StepRecord) error
}

// Trace collects step records for one run. Safe for concurrent use.
type Trace struct {
	runID string

	mu      sync.Mutex
	records []StepRecord
	sink    Sink
}

// NewTrace creates a trace for the given run. sink may be nil for
// in-memory-only traces.
func NewTrace(runID string, sink Sink) *Trace {
	return &Trace{runID: runID, sink: sink}
}

// RunID returns the run token this trace belongs to.
func (t *Trace) RunID() string { return t.runID }

// Log stamps and appends a record, forwarding it to the sink. Sink errors
// are returned for observability but the record is always retained.
func (t *Trace) Log(rec StepRecord) error {
	rec.RunID = t.runID
	if rec.LoggedAt.IsZero() {
		rec.LoggedAt = time.Now()
	}

	t.mu.Lock()
	t.records = append(t.records, rec)
	sink := t.sink
	t.mu.Unlock()

	if sink != nil {
		return sink.Write(rec)
	}
	return nil
}

// Records returns a copy of the logged records.
func (t *Trace) Records() []StepRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StepRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Summarize recomputes aggregate statistics over the logged records.
func (t *Trace) Summarize() Summary {
	return SummarizeRecords(t.runID, t.Records())
}

// Document snapshots the trace with the summary placed first.
func (t *Trace) Document() Document {
	records := t.Records()
	return Document{
		Summary: SummarizeRecords(t.runID, records),
		Steps:   records,
	}
}

// SummarizeRecords computes the aggregate summary for a set of records.
func SummarizeRecords(runID string, records []StepRecord) Summary {
	s := Summary{RunID: runID, Total: len(records)}
	if s.Total == 0 {
		return s
	}

	var rewardSum, qualitySum float64
	graded := 0
	for _, r := range records {
		if r.Passed {
			s.Passed++
		}
		if r.WellFormed {
			s.WellFormed++
			graded++
			qualitySum += r.QualityScore
			if !r.ParseOK {
				s.ParseFailures++
			}
		}
		rewardSum += r.Reward
	}

	s.PassRate = float64(s.Passed) / float64(s.Total)
	s.FormatRate = float64(s.WellFormed) / float64(s.Total)
	s.MeanReward = rewardSum / float64(s.Total)
	if graded > 0 {
		s.MeanQuality = qualitySum / float64(graded)
	}
	return s
}
