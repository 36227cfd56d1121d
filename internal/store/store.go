package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xssautomation/xssbot/internal/model"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// Store holds the latest report per (identity, domain).
//
// Implementations are safe for concurrent use. Get and DrillDown report a
// missing entry with ok == false and a nil error.
type Store interface {
	// Put replaces the report cached for (identity, domain).
	Put(ctx context.Context, identity model.Identity, domain model.Domain, report *model.Report) error

	// Get returns a copy of the report cached for (identity, domain).
	Get(ctx context.Context, identity model.Identity, domain model.Domain) (*model.Report, bool, error)

	// DrillDown returns the lines of one artifact kind from the cached
	// report. ok is false when there is no report or the kind was not
	// measured.
	DrillDown(ctx context.Context, identity model.Identity, domain model.Domain, kind model.ArtifactKind) ([]string, bool, error)

	// Close releases the store's resources.
	Close() error
}

// New creates a store for the named backend. An empty name selects the
// memory backend.
func New(backend string) (Store, error) {
	name, err := ParseBackend(backend)
	if err != nil {
		return nil, err
	}
	if name == BackendSQLite {
		return OpenSQLite()
	}
	return NewMemoryStore(), nil
}

// ParseBackend normalizes a backend name without opening anything.
func ParseBackend(backend string) (string, error) {
	switch name := strings.ToLower(strings.TrimSpace(backend)); name {
	case "", BackendMemory:
		return BackendMemory, nil
	case BackendSQLite:
		return name, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// checkPut validates the arguments shared by every Put implementation.
func checkPut(identity model.Identity, domain model.Domain, report *model.Report) error {
	if report == nil {
		return errors.New("cannot store a nil report")
	}
	if report.Domain != domain {
		return fmt.Errorf("report is for %s, not %s", report.Domain, domain)
	}
	if identity == "" {
		return errors.New("identity is required")
	}
	return report.Validate()
}
