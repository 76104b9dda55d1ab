// Package runid persists a single opaque run token so that successive
// process invocations in the same log directory continue one logical run.
package runid

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileName is the well-known file under the run's log directory.
const FileName = "run_id"

// LoadOrCreate reads the run token from dir, creating it first if absent.
// The create uses exclusive-open semantics so concurrently starting
// processes agree on a single token: the loser of the race re-reads the
// winner's file. A missing or unwritable directory is a configuration
// error and fails the run.
func LoadOrCreate(dir string) (string, error) {
	path := filepath.Join(dir, FileName)

	if token, err := read(path); err == nil {
		return token, nil
	}

	token := uuid.NewString()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			// Lost the race. The winner may not have flushed its token
			// yet, so poll briefly before giving up.
			return readRetry(path)
		}
		return "", fmt.Errorf("create run id file: %w", err)
	}

	if _, err := f.WriteString(token + "\n"); err != nil {
		f.Close()
		return "", fmt.Errorf("write run id: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close run id file: %w", err)
	}
	return token, nil
}

func readRetry(path string) (string, error) {
	var lastErr error
	for i := 0; i < 50; i++ {
		token, err := read(path)
		if err == nil {
			return token, nil
		}
		lastErr = err
		time.Sleep(10 * time.Millisecond)
	}
	return "", fmt.Errorf("read run id after create race: %w", lastErr)
}

func read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("run id file %s is empty", path)
	}
	return token, nil
}
