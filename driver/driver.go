// Package driver defines the execution side of a migration walk: the
// engine hands each unit's script to a Driver and waits for its outcome
// before committing state and moving on.
package driver

import (
	"context"
)

// Driver executes a single migration script against the target backend.
// Exec must not return until the script has fully completed or failed;
// timeouts belong to the caller's context.
type Driver interface {
	Exec(ctx context.Context, script string) error
	Close() error
}

// Func adapts a plain function to the Driver interface.
type Func func(ctx context.Context, script string) error

var _ Driver = (Func)(nil)

func (f Func) Exec(ctx context.Context, script string) error {
	return f(ctx, script)
}

func (Func) Close() error {
	return nil
}
