package grader

import "fmt"

// Stats tracks how effectively the cached grader avoids oracle calls.
type Stats struct {
	Requests    int64 `json:"requests"`
	CacheHits   int64 `json:"cache_hits"`
	SampledOut  int64 `json:"sampled_out"`
	OracleCalls int64 `json:"oracle_calls"`
}

// CacheHitRate is the fraction of requests served from cache.
func (s Stats) CacheHitRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.Requests)
}

// OracleCallRate is the fraction of requests that reached the oracle.
func (s Stats) OracleCallRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.OracleCalls) / float64(s.Requests)
}

// Summary renders a one-line report for logs.
func (s Stats) Summary() string {
	return fmt.Sprintf("grader stats: %d requests, %d oracle calls (%.1f%%), %d cache hits (%.1f%%), %d sampled out",
		s.Requests, s.OracleCalls, s.OracleCallRate()*100, s.CacheHits, s.CacheHitRate()*100, s.SampledOut)
}
