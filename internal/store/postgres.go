package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omjikush09/aggroso/internal/specs"
)

// PostgresStore implements Store backed by Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres connects to dsn, verifies the connection and ensures the schema.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	s := NewPostgresFromPool(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresFromPool wraps an existing pool. The caller runs EnsureSchema.
func NewPostgresFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the specs, stories and tasks tables if they don't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("spec store not initialized")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS specs (
    id          TEXT PRIMARY KEY,
    goal        TEXT NOT NULL,
    users       TEXT NOT NULL DEFAULT '',
    constraints TEXT,
    template    TEXT NOT NULL DEFAULT 'web',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_specs_created ON specs (created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS stories (
    spec_id  TEXT    NOT NULL REFERENCES specs(id) ON DELETE CASCADE,
    id       TEXT    NOT NULL,
    content  TEXT    NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (spec_id, id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_stories_position ON stories (spec_id, position)`,
		`CREATE TABLE IF NOT EXISTS tasks (
    spec_id   TEXT    NOT NULL REFERENCES specs(id) ON DELETE CASCADE,
    id        TEXT    NOT NULL,
    content   TEXT    NOT NULL,
    grp       TEXT    NOT NULL,
    completed BOOLEAN NOT NULL DEFAULT false,
    position  INTEGER NOT NULL,
    PRIMARY KEY (spec_id, id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_position ON tasks (spec_id, position)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure spec schema: %w", err)
		}
	}
	return nil
}

// Close releases every pooled connection.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping issues a trivial round-trip query.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

// CreateSpec inserts the spec row and bulk-copies its children.
func (s *PostgresStore) CreateSpec(ctx context.Context, spec specs.Specification) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO specs (id, goal, users, constraints, template, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			spec.ID, spec.Input.Goal, spec.Input.Users, nullableString(spec.Input.Constraints),
			string(spec.Input.Template), spec.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("create spec %s: %w", spec.ID, err)
		}
		if err := copyStories(ctx, tx, spec.ID, spec.Output.Stories); err != nil {
			return err
		}
		return copyTasks(ctx, tx, spec.ID, spec.Output.Tasks)
	})
	if err != nil {
		return fmt.Errorf("create spec: %w", err)
	}
	return nil
}

// ListSpecs reads the newest specs from one read-only snapshot.
func (s *PostgresStore) ListSpecs(ctx context.Context, limit int) ([]specs.Specification, error) {
	results := []specs.Specification{}
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id, goal, users, constraints, template, created_at
			 FROM specs
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			normalizeLimit(limit),
		)
		if err != nil {
			return err
		}
		list, err := pgx.CollectRows(rows, scanPgSpec)
		if err != nil {
			return err
		}
		for i := range list {
			if err := pgHydrate(ctx, tx, &list[i]); err != nil {
				return err
			}
		}
		results = append(results, list...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list specs: %w", err)
	}
	return results, nil
}

// GetSpec retrieves a single spec by id.
func (s *PostgresStore) GetSpec(ctx context.Context, id string) (*specs.Specification, error) {
	var spec *specs.Specification
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
		var err error
		spec, err = pgLoad(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// Replace locks the spec row, then swaps each requested collection.
func (s *PostgresStore) Replace(ctx context.Context, id string, ops ...ReplaceOp) (*specs.Specification, error) {
	var spec *specs.Specification
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM specs WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound(id)
		}
		if err != nil {
			return fmt.Errorf("replace: lookup %s: %w", id, err)
		}

		for _, op := range ops {
			switch op := op.(type) {
			case ReplaceTasks:
				if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE spec_id = $1`, id); err != nil {
					return fmt.Errorf("replace tasks: delete: %w", err)
				}
				if err := copyTasks(ctx, tx, id, op); err != nil {
					return err
				}
			case ReplaceStories:
				if _, err := tx.Exec(ctx, `DELETE FROM stories WHERE spec_id = $1`, id); err != nil {
					return fmt.Errorf("replace stories: delete: %w", err)
				}
				if err := copyStories(ctx, tx, id, op); err != nil {
					return err
				}
			default:
				return fmt.Errorf("replace: unsupported op %T", op)
			}
		}

		spec, err = pgLoad(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func copyStories(ctx context.Context, tx pgx.Tx, specID string, stories []specs.Story) error {
	if len(stories) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"stories"},
		[]string{"spec_id", "id", "content", "position"},
		pgx.CopyFromSlice(len(stories), func(i int) ([]any, error) {
			return []any{specID, stories[i].ID, stories[i].Content, int32(i)}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy stories: %w", err)
	}
	return nil
}

func copyTasks(ctx context.Context, tx pgx.Tx, specID string, tasks []specs.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"tasks"},
		[]string{"spec_id", "id", "content", "grp", "completed", "position"},
		pgx.CopyFromSlice(len(tasks), func(i int) ([]any, error) {
			t := tasks[i]
			return []any{specID, t.ID, t.Content, t.Group, t.Completed, int32(i)}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy tasks: %w", err)
	}
	return nil
}

func pgLoad(ctx context.Context, tx pgx.Tx, id string) (*specs.Specification, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, goal, users, constraints, template, created_at FROM specs WHERE id = $1`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("load spec %s: %w", id, err)
	}
	spec, err := pgx.CollectExactlyOneRow(rows, scanPgSpec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load spec %s: %w", id, err)
	}
	if err := pgHydrate(ctx, tx, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func pgHydrate(ctx context.Context, tx pgx.Tx, spec *specs.Specification) error {
	storyRows, err := tx.Query(ctx,
		`SELECT id, content FROM stories WHERE spec_id = $1 ORDER BY position ASC`, spec.ID,
	)
	if err != nil {
		return fmt.Errorf("load stories for %s: %w", spec.ID, err)
	}
	spec.Output.Stories, err = pgx.CollectRows(storyRows, func(row pgx.CollectableRow) (specs.Story, error) {
		var st specs.Story
		err := row.Scan(&st.ID, &st.Content)
		return st, err
	})
	if err != nil {
		return fmt.Errorf("load stories for %s: %w", spec.ID, err)
	}

	taskRows, err := tx.Query(ctx,
		`SELECT id, content, grp, completed FROM tasks WHERE spec_id = $1 ORDER BY position ASC`, spec.ID,
	)
	if err != nil {
		return fmt.Errorf("load tasks for %s: %w", spec.ID, err)
	}
	spec.Output.Tasks, err = pgx.CollectRows(taskRows, func(row pgx.CollectableRow) (specs.Task, error) {
		var t specs.Task
		err := row.Scan(&t.ID, &t.Content, &t.Group, &t.Completed)
		return t, err
	})
	if err != nil {
		return fmt.Errorf("load tasks for %s: %w", spec.ID, err)
	}

	emptyIfNil(spec)
	return nil
}

func scanPgSpec(row pgx.CollectableRow) (specs.Specification, error) {
	var (
		spec      specs.Specification
		template  string
		createdAt time.Time
	)
	if err := row.Scan(
		&spec.ID, &spec.Input.Goal, &spec.Input.Users, &spec.Input.Constraints, &template, &createdAt,
	); err != nil {
		return specs.Specification{}, err
	}
	spec.Input.Template = specs.Template(template)
	spec.CreatedAt = createdAt.UTC()
	return spec, nil
}
