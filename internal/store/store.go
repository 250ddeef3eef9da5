package store

import (
	"context"
	"fmt"
	"log/slog"
)

// Store is the durable storage boundary. Read returns a fresh copy on every
// call; Write replaces the stored document in full.
type Store interface {
	Read(ctx context.Context) (*Document, error)
	Write(ctx context.Context, doc *Document) error
	Close() error
}

type StorageError struct {
	Op      string
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s store %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func readError(backend string, err error) error {
	return &StorageError{Op: "read", Backend: backend, Err: err}
}

func writeError(backend string, err error) error {
	return &StorageError{Op: "write", Backend: backend, Err: err}
}

type Driver string

const (
	DriverFile     Driver = "file"
	DriverMemory   Driver = "memory"
	DriverRedis    Driver = "redis"
	DriverPostgres Driver = "postgres"
)

type Options struct {
	Driver      Driver
	Path        string
	AtomicWrite bool
	RedisAddr   string
	RedisKey    string
	PostgresDSN string
	DocName     string
}

// Open builds the store selected by opts.Driver.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	switch opts.Driver {
	case DriverFile, "":
		logger.Debug("opening file store", "path", opts.Path, "atomic", opts.AtomicWrite)
		return NewFileStore(nil, opts.Path, opts.AtomicWrite), nil
	case DriverMemory:
		return NewMemoryStore(&Document{Users: []User{}})
	case DriverRedis:
		logger.Debug("opening redis store", "addr", opts.RedisAddr, "key", opts.RedisKey)
		return DialRedis(ctx, opts.RedisAddr, opts.RedisKey)
	case DriverPostgres:
		logger.Debug("opening postgres store", "name", opts.DocName)
		return ConnectPostgres(ctx, opts.PostgresDSN, opts.DocName)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
