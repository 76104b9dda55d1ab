package logtree

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// EpisodesFileName is the default trace file under the run's log directory.
const EpisodesFileName = "episodes.jsonl"

// JSONLSink appends one JSON record per line to a file.
type JSONLSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONLSink opens (creating if needed) the trace file for appending.
func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file %s: %w", path, err)
	}
	return &JSONLSink{file: f}, nil
}

// Write appends one record.
func (s *JSONLSink) Write(rec StepRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal step record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write step record: %w", err)
	}
	return nil
}

// Close flushes and closes the trace file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// ReadJSONL loads records back from a trace file, skipping malformed lines
// so a truncated run can still be summarized.
func ReadJSONL(path string) ([]StepRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file %s: %w", path, err)
	}
	defer f.Close()

	var records []StepRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024) // 10MB max line
	for scanner.Scan() {
		var rec StepRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
