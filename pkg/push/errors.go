package push

import "github.com/pkg/errors"

var (
	// ErrTransactionInUse is returned when a transaction id is enqueued while
	// a command with the same id is not finished yet.
	ErrTransactionInUse = errors.New("transaction id in use")
	// ErrCommandNotFound is returned for unknown transaction ids.
	ErrCommandNotFound = errors.New("command not found")
	// ErrNotCancelable is returned when canceling a command that already left the queue.
	ErrNotCancelable = errors.New("command already delivered")
	// ErrInvalidCommand is returned for commands without an endpoint.
	ErrInvalidCommand = errors.New("command endpoint is required")
)
