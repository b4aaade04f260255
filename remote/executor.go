package remote

import (
	"context"
)

// Result is the outcome of a script that ran to completion. A non-zero
// ExitCode is a result, not an error.
type Result struct {
	Output   []byte
	ExitCode int
}

// Executor opens command channels to remote hosts.
type Executor interface {
	Connect(ctx context.Context, address string) (Conn, error)
}

// Conn is an open command channel to one host.
type Conn interface {
	// RunScript feeds script to a shell on the remote host with args as its
	// positional parameters and waits for it to exit.
	RunScript(ctx context.Context, script []byte, args ...string) (*Result, error)
	Close() error
}
