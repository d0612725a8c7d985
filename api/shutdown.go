// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// GracefulShutdown releases a component's hardware or network resources.
// Implementations are idempotent; teardown order is decided by the caller.
type GracefulShutdown interface {
	Shutdown() error
}
