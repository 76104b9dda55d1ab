package grader

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingGrader(score float64, calls *atomic.Int64) Grader {
	return Func(func(ctx context.Context, statement, code string) Grade {
		calls.Add(1)
		return Grade{Score: score, ParseOK: true}
	})
}

func TestCachedGrader_CachesIdenticalCode(t *testing.T) {
	var calls atomic.Int64
	g, err := NewCachedGrader(countingGrader(0.7, &calls), DefaultCacheConfig())
	require.NoError(t, err)

	ctx := context.Background()
	first := g.Grade(ctx, "problem", "def f():\n    return 1")
	second := g.Grade(ctx, "problem", "def f():\n    return 1")

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load())

	stats := g.Stats()
	assert.Equal(t, int64(2), stats.Requests)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.OracleCalls)
}

func TestCachedGrader_NormalizesWhitespaceAndComments(t *testing.T) {
	var calls atomic.Int64
	g, err := NewCachedGrader(countingGrader(0.7, &calls), DefaultCacheConfig())
	require.NoError(t, err)

	ctx := context.Background()
	g.Grade(ctx, "problem", "def f():\n    return 1  # the answer")
	g.Grade(ctx, "problem", "def f():\n        return 1")

	assert.Equal(t, int64(1), calls.Load(), "reformatted code should hit the cache")
}

func TestCachedGrader_SamplingReturnsDefaultScore(t *testing.T) {
	var calls atomic.Int64
	cfg := CacheConfig{SampleRate: 0, DefaultScore: 0.25, CacheSize: 16, Seed: 7}
	g, err := NewCachedGrader(countingGrader(0.9, &calls), cfg)
	require.NoError(t, err)

	grade := g.Grade(context.Background(), "problem", "x = 1")
	assert.Equal(t, 0.25, grade.Score)
	assert.Equal(t, int64(0), calls.Load())
	assert.Equal(t, int64(1), g.Stats().SampledOut)
}

func TestCachedGrader_SeededSamplingIsReproducible(t *testing.T) {
	run := func() []int64 {
		var calls atomic.Int64
		cfg := CacheConfig{SampleRate: 0.5, CacheSize: 64, Seed: 42}
		g, err := NewCachedGrader(countingGrader(0.5, &calls), cfg)
		require.NoError(t, err)

		codes := []string{"a = 1", "b = 2", "c = 3", "d = 4", "e = 5", "f = 6"}
		var graded []int64
		for _, code := range codes {
			g.Grade(context.Background(), "p", code)
			graded = append(graded, calls.Load())
		}
		return graded
	}

	assert.Equal(t, run(), run())
}

func TestCachedGrader_RejectsInvalidConfig(t *testing.T) {
	_, err := NewCachedGrader(countingGrader(0, nil), CacheConfig{SampleRate: 1.5})
	assert.Error(t, err)

	_, err = NewCachedGrader(countingGrader(0, nil), CacheConfig{SampleRate: 1, DefaultScore: -1})
	assert.Error(t, err)
}

func TestStats_Summary(t *testing.T) {
	s := Stats{Requests: 10, CacheHits: 4, SampledOut: 2, OracleCalls: 4}
	assert.Equal(t, 0.4, s.CacheHitRate())
	assert.Equal(t, 0.4, s.OracleCallRate())
	assert.Contains(t, s.Summary(), "10 requests")
	assert.Contains(t, s.Summary(), "4 oracle calls")
}
