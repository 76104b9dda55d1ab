package grader

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// DefaultNeutralScore is the fallback when nothing numeric is recoverable
// from the oracle output. A configured neutral score overrides it.
const DefaultNeutralScore = 0.5

// numberRe matches the first standalone integer or floating-point literal.
var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// strategy is one tier of the parse fallback chain. structured marks tiers
// whose success counts as a clean parse (ParseOK=true); the bare numeric
// scan recovers a score but still flags the response as malformed.
type strategy struct {
	name       string
	structured bool
	parse      func(raw string) (float64, bool)
}

var strategies = []strategy{
	{name: "json", structured: true, parse: parseStrictJSON},
	{name: "embedded_json", structured: true, parse: parseEmbeddedJSON},
	{name: "numeric_scan", structured: false, parse: parseNumericScan},
}

// ParseScore converts raw oracle output into a Grade by trying each
// strategy in order and clamping the first recovered value. When every
// tier fails the neutral score is used and ParseOK is false. The returned
// score is in [0,1] for any input.
func ParseScore(raw string, neutral float64) Grade {
	for _, s := range strategies {
		if v, ok := s.parse(raw); ok {
			return Grade{Score: clamp(v), Raw: raw, ParseOK: s.structured}
		}
	}
	return Grade{Score: clamp(neutral), Raw: raw, ParseOK: false}
}

// scoreRecord is the shape the oracle is instructed to emit.
type scoreRecord struct {
	Score *float64 `json:"score"`
}

func parseStrictJSON(raw string) (float64, bool) {
	return decodeScore(strings.TrimSpace(raw))
}

// parseEmbeddedJSON extracts the substring between the outermost matching
// braces and decodes it, repairing malformed JSON first when needed. Oracles
// wrap their verdict in prose or markdown fences often enough that this tier
// carries most of the fallback weight.
func parseEmbeddedJSON(raw string) (float64, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return 0, false
	}
	candidate := raw[start : end+1]

	if v, ok := decodeScore(candidate); ok {
		return v, ok
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return 0, false
	}
	return decodeScore(repaired)
}

func parseNumericScan(raw string) (float64, bool) {
	m := numberRe.FindString(raw)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func decodeScore(s string) (float64, bool) {
	var rec scoreRecord
	if err := json.Unmarshal([]byte(s), &rec); err != nil || rec.Score == nil {
		return 0, false
	}
	if math.IsNaN(*rec.Score) || math.IsInf(*rec.Score, 0) {
		return 0, false
	}
	return *rec.Score, true
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultNeutralScore
	}
	return math.Max(0.0, math.Min(1.0, v))
}
