package logtree

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func passRecord(id string, reward float64) StepRecord {
	return StepRecord{
		ProblemID:    id,
		Problem:      "statement for " + id,
		Response:     "response for " + id,
		Code:         "x = 1",
		WellFormed:   true,
		Passed:       true,
		QualityScore: 0.8,
		ParseOK:      true,
		Reward:       reward,
	}
}

func TestTrace_LogStampsRunID(t *testing.T) {
	trace := NewTrace("run-7", nil)
	if err := trace.Log(passRecord("p1", 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := trace.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].RunID != "run-7" {
		t.Errorf("run id not stamped: %+v", records[0])
	}
	if records[0].LoggedAt.IsZero() {
		t.Error("expected timestamp to be stamped")
	}
}

func TestSummarize_Aggregates(t *testing.T) {
	trace := NewTrace("run-1", nil)
	_ = trace.Log(passRecord("a", 1.0))
	_ = trace.Log(StepRecord{ProblemID: "b", WellFormed: true, Passed: false, QualityScore: 0.4, ParseOK: false, Reward: 0.04})
	_ = trace.Log(StepRecord{ProblemID: "c", WellFormed: false, Reward: 0})

	s := trace.Summarize()
	if s.Total != 3 || s.Passed != 1 || s.WellFormed != 2 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.ParseFailures != 1 {
		t.Errorf("parse failures = %d, want 1", s.ParseFailures)
	}
	if diff := s.MeanReward - (1.04 / 3); diff > 1e-9 || diff < -1e-9 {
		t.Errorf("mean reward = %v", s.MeanReward)
	}
	if diff := s.MeanQuality - 0.6; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("mean quality = %v, want 0.6", s.MeanQuality)
	}
}

func TestDocument_SummaryFirst(t *testing.T) {
	trace := NewTrace("run-2", nil)
	_ = trace.Log(passRecord("a", 1))
	_ = trace.Log(passRecord("b", 1))

	doc := trace.Document()
	if doc.Summary.Total != 2 {
		t.Errorf("summary total = %d, want 2", doc.Summary.Total)
	}
	if len(doc.Steps) != 2 {
		t.Errorf("steps = %d, want 2", len(doc.Steps))
	}
}

func TestSections_NoCodeMarker(t *testing.T) {
	rec := StepRecord{Problem: "p", Response: "r", WellFormed: false}
	sections := rec.Sections()
	if len(sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(sections))
	}
	if sections[2].Body != NoCodeMarker {
		t.Errorf("expected absence marker, got %q", sections[2].Body)
	}
	if sections[3].Collapsed {
		t.Error("outcome section must stay open")
	}
	if !strings.Contains(sections[3].Body, "passed=false") {
		t.Errorf("unexpected outcome body: %q", sections[3].Body)
	}
}

func TestJSONLSink_WriteAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), EpisodesFileName)
	sink, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	trace := NewTrace("run-3", sink)
	_ = trace.Log(passRecord("a", 0.9))
	_ = trace.Log(passRecord("b", 0.5))
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	records, err := ReadJSONL(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ProblemID != "a" || records[1].ProblemID != "b" {
		t.Errorf("unexpected order: %+v", records)
	}
	if records[0].RunID != "run-3" {
		t.Errorf("run id lost on round trip: %+v", records[0])
	}
}

func TestReadJSONL_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.jsonl")
	sink, err := NewJSONLSink(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = sink.Write(passRecord("good", 1))
	// Simulate a crashed writer mid-line.
	if _, err := sink.file.WriteString("{\"problem_id\": \"trunc"); err != nil {
		t.Fatal(err)
	}
	_ = sink.Close()

	records, err := ReadJSONL(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].ProblemID != "good" {
		t.Errorf("expected only the good record, got %+v", records)
	}
}

func TestTrace_ConcurrentLogging(t *testing.T) {
	trace := NewTrace("run-4", nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = trace.Log(passRecord("p", 1))
		}()
	}
	wg.Wait()

	if got := len(trace.Records()); got != 32 {
		t.Errorf("expected 32 records, got %d", got)
	}
}
