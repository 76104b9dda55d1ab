package rl

import (
	"context"
	"fmt"
)

// Sandbox is the port to the external execution engine that verifies a
// submission against its test spec. Implementations may be slow and may
// fail; callers bound them with a context deadline.
type Sandbox interface {
	Check(ctx context.Context, code string, spec TestSpec) (Correctness, error)
}

// SandboxFunc adapts a function to the Sandbox interface.
type SandboxFunc func(ctx context.Context, code string, spec TestSpec) (Correctness, error)

func (f SandboxFunc) Check(ctx context.Context, code string, spec TestSpec) (Correctness, error) {
	return f(ctx, code, spec)
}

// safeCheck runs the sandbox and translates every failure mode — returned
// errors and panics alike — into a failed Correctness with the cause in
// Detail. A sandbox crash must never take the step down with it.
func safeCheck(ctx context.Context, sb Sandbox, code string, spec TestSpec) (result Correctness) {
	defer func() {
		if r := recover(); r != nil {
			result = Correctness{Passed: false, Detail: fmt.Sprintf("sandbox panic: %v", r)}
		}
	}()

	verdict, err := sb.Check(ctx, code, spec)
	if err != nil {
		detail := err.Error()
		if verdict.Detail != "" {
			detail = verdict.Detail + ": " + detail
		}
		return Correctness{Passed: false, Detail: detail}
	}
	return verdict
}
