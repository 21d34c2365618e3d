package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Opener opens a backend for a driver using its DSN.
type Opener func(ctx context.Context, dsn string, maxOpen, maxIdle int) (*Backend, error)

var (
	openersMu sync.RWMutex
	openers   = make(map[string]Opener)
)

// RegisterDriver registers a storage backend constructor under a driver name.
// This is called by the backend packages to avoid import cycles.
func RegisterDriver(name string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[name] = open
}

// Drivers returns the registered driver names in sorted order.
func Drivers() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the backend registered under driver.
func Open(ctx context.Context, driver, dsn string, maxOpen, maxIdle int) (*Backend, error) {
	openersMu.RLock()
	open, ok := openers[driver]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage driver %q not registered (available: %v)", driver, Drivers())
	}
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for driver %q", driver)
	}
	backend, err := open(ctx, dsn, maxOpen, maxIdle)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", driver, err)
	}
	return backend, nil
}
