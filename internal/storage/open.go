package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"duely/internal/task"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Backend is a task repository that holds resources until closed.
type Backend interface {
	FetchAll(ctx context.Context) ([]task.Task, error)
	Insert(ctx context.Context, t task.Task) error
	Update(ctx context.Context, t task.Task) error
	Delete(ctx context.Context, id task.ID) error
	Close() error
}

// Open picks a backend by driver name. An empty driver means sqlite.
func Open(ctx context.Context, driver, dbPath, dsn string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		db, err := OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverPostgres:
		if dsn == "" {
			return nil, errors.New("postgres driver needs a dsn")
		}
		db, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}
}
