package backend

import (
	"context"

	"budget/internal/amqp"
	"budget/internal/services"
	"budget/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the opened store, the optional event client and a
// cleanup function releasing both.
type BackendResult struct {
	Store   store.Store
	Events  *amqp.Client // nil when AMQP is not configured or unreachable
	Cleanup CleanupFunc
}

// Publisher returns the event client as a services.EventPublisher, or nil
// when there is none.
func (r *BackendResult) Publisher() services.EventPublisher {
	if r.Events == nil {
		return nil
	}
	return r.Events
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQL specific
	SQLiteDBPath string
	PostgresDSN  string

	// Memory specific
	SeedFile string

	// Events (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// RequireEvents turns an unreachable broker into an error instead of a warning.
	RequireEvents bool
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
