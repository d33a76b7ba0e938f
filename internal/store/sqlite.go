package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/omjikush09/aggroso/internal/specs"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteFileName is the database file created under SQLiteConfig.DataDir.
const SQLiteFileName = "specgen.db"

// SQLiteConfig holds SQLite store configuration.
type SQLiteConfig struct {
	DataDir string
}

// ─── Store ───────────────────────────────────────────────────────────────────

// SQLiteStore implements Store on a local SQLite file (WAL mode).
type SQLiteStore struct {
	db    *sql.DB
	hooks storeHooks
}

var _ Store = (*SQLiteStore)(nil)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type storeHooks struct {
	exec    func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
	query   func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error)
	beginTx func(ctx context.Context, db *sql.DB, opts *sql.TxOptions) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		exec: func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
			return db.ExecContext(ctx, query, args...)
		},
		query: func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error) {
			return db.QueryContext(ctx, query, args...)
		},
		beginTx: func(ctx context.Context, db *sql.DB, opts *sql.TxOptions) (*sql.Tx, error) {
			return db.BeginTx(ctx, opts)
		},
		commit: func(tx *sql.Tx) error {
			return tx.Commit()
		},
	}
}

func (s *SQLiteStore) execHook(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(ctx, db, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func (s *SQLiteStore) queryHook(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(ctx, db, query, args...)
	}
	return db.QueryContext(ctx, query, args...)
}

// readTx begins a plain deferred transaction. The driver only applies
// _txlock=immediate to read-write transactions, so readers never take the
// write lock and in WAL mode run alongside a writer.
var readTx = &sql.TxOptions{ReadOnly: true}

func (s *SQLiteStore) beginTxHook(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(ctx, s.db, opts)
	}
	return s.db.BeginTx(ctx, opts)
}

func (s *SQLiteStore) commitHook(tx *sql.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// NewSQLite creates the data directory if needed, opens the database in WAL
// mode and runs migrations.
//
// Write transactions begin IMMEDIATE so concurrent replaces serialize on the
// write lock instead of failing on a read-to-write upgrade. Reads use readTx.
func NewSQLite(cfg SQLiteConfig) (*SQLiteStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, SQLiteFileName)
	dsn := "file:" + dbPath +
		"?_txlock=immediate" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"
	db, err := openDB("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, hooks: defaultStoreHooks()}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS specs (
			id          TEXT PRIMARY KEY,
			goal        TEXT NOT NULL,
			users       TEXT NOT NULL DEFAULT '',
			constraints TEXT,
			template    TEXT NOT NULL DEFAULT 'web',
			created_at  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_specs_created ON specs(created_at DESC);

		CREATE TABLE IF NOT EXISTS stories (
			spec_id  TEXT    NOT NULL,
			id       TEXT    NOT NULL,
			content  TEXT    NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (spec_id, id),
			FOREIGN KEY (spec_id) REFERENCES specs(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_stories_position ON stories(spec_id, position);

		CREATE TABLE IF NOT EXISTS tasks (
			spec_id   TEXT    NOT NULL,
			id        TEXT    NOT NULL,
			content   TEXT    NOT NULL,
			grp       TEXT    NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			position  INTEGER NOT NULL,
			PRIMARY KEY (spec_id, id),
			FOREIGN KEY (spec_id) REFERENCES specs(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_position ON tasks(spec_id, position);
	`
	_, err := s.execHook(ctx, s.db, schema)
	return err
}

// ─── Specs ───────────────────────────────────────────────────────────────────

// CreateSpec inserts the spec and its ordered children in one transaction.
func (s *SQLiteStore) CreateSpec(ctx context.Context, spec specs.Specification) error {
	tx, err := s.beginTxHook(ctx, nil)
	if err != nil {
		return fmt.Errorf("create spec: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := s.execHook(ctx, tx,
		`INSERT INTO specs (id, goal, users, constraints, template, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		spec.ID, spec.Input.Goal, spec.Input.Users, nullableString(spec.Input.Constraints),
		string(spec.Input.Template), spec.CreatedAt.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("create spec %s: %w", spec.ID, err)
	}

	if err := s.insertStories(ctx, tx, spec.ID, spec.Output.Stories); err != nil {
		return err
	}
	if err := s.insertTasks(ctx, tx, spec.ID, spec.Output.Tasks); err != nil {
		return err
	}

	if err := s.commitHook(tx); err != nil {
		return fmt.Errorf("create spec: commit: %w", err)
	}
	return nil
}

// ListSpecs returns up to limit specs, newest first, from one snapshot.
func (s *SQLiteStore) ListSpecs(ctx context.Context, limit int) ([]specs.Specification, error) {
	tx, err := s.beginTxHook(ctx, readTx)
	if err != nil {
		return nil, fmt.Errorf("list specs: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := s.queryHook(ctx, tx,
		`SELECT id, goal, users, constraints, template, created_at
		 FROM specs
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list specs: %w", err)
	}

	var results []specs.Specification
	for rows.Next() {
		spec, err := scanSpecRow(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("list specs: %w", err)
		}
		results = append(results, *spec)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("list specs: %w", err)
	}
	_ = rows.Close()

	for i := range results {
		if err := s.hydrate(ctx, tx, &results[i]); err != nil {
			return nil, err
		}
	}

	if err := s.commitHook(tx); err != nil {
		return nil, fmt.Errorf("list specs: commit: %w", err)
	}
	if results == nil {
		results = []specs.Specification{}
	}
	return results, nil
}

// GetSpec retrieves a single spec by id with ordered children.
func (s *SQLiteStore) GetSpec(ctx context.Context, id string) (*specs.Specification, error) {
	tx, err := s.beginTxHook(ctx, readTx)
	if err != nil {
		return nil, fmt.Errorf("get spec: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	spec, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := s.commitHook(tx); err != nil {
		return nil, fmt.Errorf("get spec: commit: %w", err)
	}
	return spec, nil
}

// Replace runs every op inside one transaction: existence check, then
// delete-and-reinsert per collection, then the final read.
func (s *SQLiteStore) Replace(ctx context.Context, id string, ops ...ReplaceOp) (*specs.Specification, error) {
	tx, err := s.beginTxHook(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("replace: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM specs WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("replace: lookup %s: %w", id, err)
	}

	for _, op := range ops {
		switch op := op.(type) {
		case ReplaceTasks:
			if _, err := s.execHook(ctx, tx, `DELETE FROM tasks WHERE spec_id = ?`, id); err != nil {
				return nil, fmt.Errorf("replace tasks: delete: %w", err)
			}
			if err := s.insertTasks(ctx, tx, id, op); err != nil {
				return nil, err
			}
		case ReplaceStories:
			if _, err := s.execHook(ctx, tx, `DELETE FROM stories WHERE spec_id = ?`, id); err != nil {
				return nil, fmt.Errorf("replace stories: delete: %w", err)
			}
			if err := s.insertStories(ctx, tx, id, op); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("replace: unsupported op %T", op)
		}
	}

	spec, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := s.commitHook(tx); err != nil {
		return nil, fmt.Errorf("replace: commit: %w", err)
	}
	return spec, nil
}

// Ping issues a trivial round-trip query.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	rows, err := s.queryHook(ctx, s.db, `SELECT 1`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return errors.New("ping: no row returned")
	}
	var one int
	return rows.Scan(&one)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (s *SQLiteStore) insertStories(ctx context.Context, tx *sql.Tx, specID string, stories []specs.Story) error {
	for i, story := range stories {
		if _, err := s.execHook(ctx, tx,
			`INSERT INTO stories (spec_id, id, content, position) VALUES (?, ?, ?, ?)`,
			specID, story.ID, story.Content, i,
		); err != nil {
			return fmt.Errorf("insert story %s: %w", story.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) insertTasks(ctx context.Context, tx *sql.Tx, specID string, tasks []specs.Task) error {
	for i, task := range tasks {
		if _, err := s.execHook(ctx, tx,
			`INSERT INTO tasks (spec_id, id, content, grp, completed, position) VALUES (?, ?, ?, ?, ?, ?)`,
			specID, task.ID, task.Content, task.Group, task.Completed, i,
		); err != nil {
			return fmt.Errorf("insert task %s: %w", task.ID, err)
		}
	}
	return nil
}

// load reads one spec and its children inside tx.
func (s *SQLiteStore) load(ctx context.Context, tx *sql.Tx, id string) (*specs.Specification, error) {
	rows, err := s.queryHook(ctx, tx,
		`SELECT id, goal, users, constraints, template, created_at FROM specs WHERE id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("load spec %s: %w", id, err)
	}
	if !rows.Next() {
		err := rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, fmt.Errorf("load spec %s: %w", id, err)
		}
		return nil, notFound(id)
	}
	spec, err := scanSpecRow(rows)
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("load spec %s: %w", id, err)
	}

	if err := s.hydrate(ctx, tx, spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// hydrate fills stories and tasks ordered by position.
func (s *SQLiteStore) hydrate(ctx context.Context, tx *sql.Tx, spec *specs.Specification) error {
	storyRows, err := s.queryHook(ctx, tx,
		`SELECT id, content FROM stories WHERE spec_id = ? ORDER BY position ASC`, spec.ID,
	)
	if err != nil {
		return fmt.Errorf("load stories for %s: %w", spec.ID, err)
	}
	for storyRows.Next() {
		var st specs.Story
		if err := storyRows.Scan(&st.ID, &st.Content); err != nil {
			_ = storyRows.Close()
			return fmt.Errorf("scan story: %w", err)
		}
		spec.Output.Stories = append(spec.Output.Stories, st)
	}
	if err := storyRows.Err(); err != nil {
		_ = storyRows.Close()
		return fmt.Errorf("load stories for %s: %w", spec.ID, err)
	}
	_ = storyRows.Close()

	taskRows, err := s.queryHook(ctx, tx,
		`SELECT id, content, grp, completed FROM tasks WHERE spec_id = ? ORDER BY position ASC`, spec.ID,
	)
	if err != nil {
		return fmt.Errorf("load tasks for %s: %w", spec.ID, err)
	}
	for taskRows.Next() {
		var t specs.Task
		if err := taskRows.Scan(&t.ID, &t.Content, &t.Group, &t.Completed); err != nil {
			_ = taskRows.Close()
			return fmt.Errorf("scan task: %w", err)
		}
		spec.Output.Tasks = append(spec.Output.Tasks, t)
	}
	if err := taskRows.Err(); err != nil {
		_ = taskRows.Close()
		return fmt.Errorf("load tasks for %s: %w", spec.ID, err)
	}
	_ = taskRows.Close()

	emptyIfNil(spec)
	return nil
}

func scanSpecRow(rows *sql.Rows) (*specs.Specification, error) {
	var (
		spec        specs.Specification
		constraints sql.NullString
		template    string
		createdAt   string
	)
	if err := rows.Scan(
		&spec.ID, &spec.Input.Goal, &spec.Input.Users, &constraints, &template, &createdAt,
	); err != nil {
		return nil, err
	}
	if constraints.Valid {
		c := constraints.String
		spec.Input.Constraints = &c
	}
	spec.Input.Template = specs.Template(template)

	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	spec.CreatedAt = ts
	return &spec, nil
}
