// Package store persists specifications with their ordered stories and tasks.
//
// Two backends implement Store: SQLiteStore (default, single file) and
// PostgresStore. Both encode display order in an explicit position column
// and return collections sorted by it, so slice order round-trips exactly.
//
// Edits never patch rows. A ReplaceOp deletes a whole collection and
// re-inserts it in one transaction, which makes the last committed
// replace win per collection.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/omjikush09/aggroso/internal/specs"
)

// DefaultHistoryLimit caps ListSpecs when the caller passes limit <= 0.
const DefaultHistoryLimit = 5

// Store defines the persistence interface for specifications.
type Store interface {
	// CreateSpec writes the spec row plus its stories and tasks atomically.
	CreateSpec(ctx context.Context, spec specs.Specification) error
	// ListSpecs returns the newest specs first, at most limit of them.
	ListSpecs(ctx context.Context, limit int) ([]specs.Specification, error)
	// GetSpec returns one spec or an error wrapping specs.ErrNotFound.
	GetSpec(ctx context.Context, id string) (*specs.Specification, error)
	// Replace applies ops in one transaction and returns the spec as
	// committed. Unknown ids yield specs.ErrNotFound and mutate nothing.
	Replace(ctx context.Context, id string, ops ...ReplaceOp) (*specs.Specification, error)
	// Ping issues a trivial round-trip query.
	Ping(ctx context.Context) error
	Close() error
}

// --- Replace operations ---

// Collection names a replaceable child collection of a spec.
type Collection string

const (
	CollectionTasks   Collection = "tasks"
	CollectionStories Collection = "stories"
)

// ReplaceOp is a whole-collection replacement. It is a closed set:
// ReplaceTasks and ReplaceStories.
type ReplaceOp interface {
	Collection() Collection
	Len() int
}

// ReplaceTasks replaces every task of a spec with this ordered list.
type ReplaceTasks []specs.Task

// Collection implements ReplaceOp.
func (ReplaceTasks) Collection() Collection { return CollectionTasks }

// Len implements ReplaceOp.
func (r ReplaceTasks) Len() int { return len(r) }

// ReplaceStories replaces every story of a spec with this ordered list.
type ReplaceStories []specs.Story

// Collection implements ReplaceOp.
func (ReplaceStories) Collection() Collection { return CollectionStories }

// Len implements ReplaceOp.
func (r ReplaceStories) Len() int { return len(r) }

// OpsFor converts an update payload into replace operations.
// Tasks are replaced before stories; absent collections produce no op.
func OpsFor(p specs.UpdatePayload) []ReplaceOp {
	var ops []ReplaceOp
	if p.Tasks != nil {
		ops = append(ops, ReplaceTasks(p.Tasks))
	}
	if p.Stories != nil {
		ops = append(ops, ReplaceStories(p.Stories))
	}
	return ops
}

// --- Shared helpers ---

func notFound(id string) error {
	return fmt.Errorf("spec %q: %w", id, specs.ErrNotFound)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

// emptyIfNil keeps JSON output as [] instead of null.
func emptyIfNil(spec *specs.Specification) {
	if spec.Output.Stories == nil {
		spec.Output.Stories = []specs.Story{}
	}
	if spec.Output.Tasks == nil {
		spec.Output.Tasks = []specs.Task{}
	}
}

func nullableString(s *string) any {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return *s
}

// --- Backend selection ---

// Driver names a storage backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Options selects and configures a backend for Open.
type Options struct {
	Driver  Driver
	DSN     string // postgres connection string
	DataDir string // sqlite data directory
}

// Open returns the backend named by opts.Driver. An empty driver means SQLite.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return NewSQLite(SQLiteConfig{DataDir: opts.DataDir})
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("store: postgres driver requires a DSN")
		}
		return NewPostgres(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", opts.Driver)
	}
}
