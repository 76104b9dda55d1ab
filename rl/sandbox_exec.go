package rl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultSandboxTimeout = 60 * time.Second

// commandSpec is how CommandSandbox interprets a TestSpec: a harness
// command that reads the submission on stdin and exits zero on pass.
type commandSpec struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// CommandSandbox checks submissions by piping them into an external test
// harness process. It is the default adapter behind the Sandbox port; the
// harness itself (isolation, resource limits) lives outside this module.
type CommandSandbox struct {
	// Command and Args are used when the TestSpec does not carry its own.
	Command string
	Args    []string
	Timeout time.Duration
}

// Check runs the harness with the submission on stdin. Exit status zero
// means passed; anything else fails with the combined output as detail.
func (s *CommandSandbox) Check(ctx context.Context, code string, spec TestSpec) (Correctness, error) {
	cs := commandSpec{Command: s.Command, Args: s.Args}
	if len(spec) > 0 {
		if err := json.Unmarshal(spec, &cs); err != nil {
			return Correctness{}, fmt.Errorf("decode test spec: %w", err)
		}
	}
	if cs.Command == "" {
		return Correctness{}, fmt.Errorf("no harness command configured")
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultSandboxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, cs.Command, cs.Args...)
	cmd.Stdin = strings.NewReader(code)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	detail := combinedOutput(stdout.String(), stderr.String())

	if ctx.Err() == context.DeadlineExceeded {
		return Correctness{Passed: false, Detail: fmt.Sprintf("harness timed out after %s", timeout)}, nil
	}
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); ok {
			return Correctness{Passed: false, Detail: detail}, nil
		}
		return Correctness{}, fmt.Errorf("run harness: %w", runErr)
	}
	return Correctness{Passed: true, Detail: detail}, nil
}

// combinedOutput merges stdout and stderr, prioritizing stdout.
func combinedOutput(stdout, stderr string) string {
	text := strings.TrimSpace(stdout)
	if text == "" {
		return strings.TrimSpace(stderr)
	}
	if strings.TrimSpace(stderr) != "" {
		text = text + "\n" + strings.TrimSpace(stderr)
	}
	return text
}
