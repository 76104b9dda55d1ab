package grader

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Oracle produces raw text output for a grading prompt. The output is not
// trusted: callers must run it through ParseScore.
type Oracle interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, prompt string) (string, error)

func (f OracleFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Supported CLI oracle backends.
const (
	BackendClaude = "claude"
	BackendGemini = "gemini"
)

const defaultOracleTimeout = 120 * time.Second

// CLIOracle shells out to an external grading CLI in single-shot text mode.
// The invocation is bounded by Timeout; a timed-out or failed process is
// reported through the error while whatever partial stdout exists is still
// returned so the parser can attempt recovery.
type CLIOracle struct {
	Backend string
	Model   string
	Timeout time.Duration
}

// NewCLIOracle builds a CLI oracle for the given backend.
func NewCLIOracle(backend, model string, timeout time.Duration) (*CLIOracle, error) {
	switch backend {
	case BackendClaude, BackendGemini:
	default:
		return nil, fmt.Errorf("unknown oracle backend %q", backend)
	}
	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}
	return &CLIOracle{Backend: backend, Model: model, Timeout: timeout}, nil
}

func (o *CLIOracle) command(prompt string) (string, []string) {
	switch o.Backend {
	case BackendGemini:
		args := []string{"--prompt", prompt}
		if o.Model != "" {
			args = append([]string{"--model", o.Model}, args...)
		}
		return "gemini", args
	default:
		args := []string{"-p", prompt, "--output-format", "text"}
		if o.Model != "" {
			args = append(args, "--model", o.Model)
		}
		return "claude", args
	}
}

// Invoke runs the oracle process and returns its trimmed stdout. A non-zero
// exit status or timeout is returned as an error alongside the partial
// output; it is never a hard failure for the pipeline.
func (o *CLIOracle) Invoke(ctx context.Context, prompt string) (string, error) {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name, args := o.command(prompt)
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	out := strings.TrimSpace(stdout.String())

	if ctx.Err() != nil {
		return out, fmt.Errorf("%s oracle timed out after %s", o.Backend, timeout)
	}
	if runErr != nil {
		return out, fmt.Errorf("%s oracle failed: %w (stderr: %s)",
			o.Backend, runErr, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
