package todos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is fixed width so that stored timestamps compare correctly as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const todoColumns = "id, title, description, completed, priority, due_date, created_at, updated_at"

type dialect struct {
	name   string
	driver string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered   bool
	timeArg    func(time.Time) any
	migrations []string
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	timeArg: func(t time.Time) any {
		return t.UTC().Format(sqliteTimeLayout)
	},
	migrations: []string{`
CREATE TABLE IF NOT EXISTS todos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT,
	completed INTEGER NOT NULL DEFAULT 0,
	priority TEXT NOT NULL DEFAULT 'MEDIUM' CHECK (priority IN ('LOW', 'MEDIUM', 'HIGH')),
	due_date TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos (created_at)`,
	},
}

var postgresDialect = dialect{
	name:     "postgres",
	driver:   "pgx",
	numbered: true,
	timeArg: func(t time.Time) any {
		return t.UTC()
	},
	migrations: []string{`
CREATE TABLE IF NOT EXISTS todos (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	completed BOOLEAN NOT NULL DEFAULT FALSE,
	priority TEXT NOT NULL DEFAULT 'MEDIUM' CHECK (priority IN ('LOW', 'MEDIUM', 'HIGH')),
	due_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_created_at ON todos (created_at)`,
	},
}

// Store is the relational Repository. It speaks SQLite (modernc) or
// PostgreSQL (pgx) depending on the connection string.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

type StoreOption func(*Store)

// WithClock overrides the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// Open connects to the store named by dsn. postgres:// and postgresql://
// URLs select PostgreSQL; "file:" DSNs and ":memory:" are passed to SQLite
// as-is; anything else is treated as a SQLite file path.
func Open(ctx context.Context, dsn string, opts ...StoreOption) (*Store, error) {
	d, source, err := resolveDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	if d.name == sqliteDialect.name && strings.Contains(source, ":memory:") {
		// each pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	s := &Store{db: db, dialect: d, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func resolveDSN(dsn string) (dialect, string, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return dialect{}, "", errors.New("empty database url")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgresDialect, dsn, nil
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		return sqliteDialect, dsn, nil
	}
	source, err := SQLiteFileDSN(dsn)
	if err != nil {
		return dialect{}, "", err
	}
	return sqliteDialect, source, nil
}

// SQLiteFileDSN builds a DSN like file:/absolute/path?_pragma=busy_timeout(5000),
// creating the parent directory if needed.
func SQLiteFileDSN(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	pragmas := []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
		"_pragma=foreign_keys(1)",
	}
	return "file:" + filepath.ToSlash(abs) + "?" + strings.Join(pragmas, "&"), nil
}

func (s *Store) Close() error { return s.db.Close() }

// Dialect names the backing database ("sqlite" or "postgres").
func (s *Store) Dialect() string { return s.dialect.name }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ApplyMigrations ensures schema exists
func (s *Store) ApplyMigrations(ctx context.Context) error {
	for _, stmt := range s.dialect.migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect.name, err)
		}
	}
	return nil
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]Todo, error) {
	var (
		conds []string
		args  []any
	)
	switch f.Status {
	case StatusActive:
		conds = append(conds, "completed = ?")
		args = append(args, false)
	case StatusCompleted:
		conds = append(conds, "completed = ?")
		args = append(args, true)
	}
	if f.Priority != "" {
		conds = append(conds, "priority = ?")
		args = append(args, string(f.Priority))
	}

	q := "SELECT " + todoColumns + " FROM todos"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"

	return s.queryTodos(ctx, q, args...)
}

func (s *Store) Get(ctx context.Context, id int64) (Todo, error) {
	return s.queryTodo(ctx, "SELECT "+todoColumns+" FROM todos WHERE id = ?", id)
}

func (s *Store) Create(ctx context.Context, nt NewTodo) (Todo, error) {
	priority := nt.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	now := s.timestamp()
	q := `INSERT INTO todos (title, description, completed, priority, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + todoColumns
	t, err := s.queryTodo(ctx, q,
		nt.Title,
		stringArg(nt.Description),
		false,
		string(priority),
		s.timePtrArg(nt.DueDate),
		s.dialect.timeArg(now),
		s.dialect.timeArg(now),
	)
	if err != nil {
		return Todo{}, fmt.Errorf("insert todo: %w", err)
	}
	return t, nil
}

// Update applies the supplied fields of p and refreshes updated_at.
func (s *Store) Update(ctx context.Context, id int64, p Patch) (Todo, error) {
	var (
		sets []string
		args []any
	)
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Description.Set {
		sets = append(sets, "description = ?")
		args = append(args, stringArg(p.Description.Ptr()))
	}
	if p.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*p.Priority))
	}
	if p.DueDate.Set {
		sets = append(sets, "due_date = ?")
		args = append(args, s.timePtrArg(p.DueDate.Ptr()))
	}
	if p.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *p.Completed)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.dialect.timeArg(s.timestamp()), id)

	q := "UPDATE todos SET " + strings.Join(sets, ", ") + " WHERE id = ? RETURNING " + todoColumns
	return s.queryTodo(ctx, q, args...)
}

func (s *Store) ToggleCompleted(ctx context.Context, id int64) (Todo, error) {
	q := "UPDATE todos SET completed = NOT completed, updated_at = ? WHERE id = ? RETURNING " + todoColumns
	return s.queryTodo(ctx, q, s.dialect.timeArg(s.timestamp()), id)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM todos WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	q := "SELECT COUNT(*), COALESCE(SUM(CASE WHEN completed THEN 1 ELSE 0 END), 0) FROM todos"
	if err := s.db.QueryRowContext(ctx, q).Scan(&c.Total, &c.Completed); err != nil {
		return Counts{}, fmt.Errorf("count todos: %w", err)
	}
	c.Active = c.Total - c.Completed
	return c, nil
}

func (s *Store) Overdue(ctx context.Context, asOf time.Time) ([]Todo, error) {
	q := "SELECT " + todoColumns + ` FROM todos
		WHERE completed = ? AND due_date IS NOT NULL AND due_date < ?
		ORDER BY due_date ASC, id ASC`
	return s.queryTodos(ctx, q, false, s.dialect.timeArg(asOf))
}

func (s *Store) queryTodo(ctx context.Context, q string, args ...any) (Todo, error) {
	t, err := scanTodo(s.db.QueryRowContext(ctx, s.rebind(q), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Todo{}, ErrNotFound
	}
	return t, err
}

func (s *Store) queryTodos(ctx context.Context, q string, args ...any) ([]Todo, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// timestamp is truncated to what both backends store losslessly.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Store) timePtrArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.dialect.timeArg(*t)
}

func (s *Store) rebind(q string) string {
	if !s.dialect.numbered {
		return q
	}
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(q) + 8)
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(rs rowScanner) (Todo, error) {
	var (
		t                     Todo
		desc                  sql.NullString
		priority              string
		due, created, updated dbTime
	)
	if err := rs.Scan(&t.ID, &t.Title, &desc, &t.Completed, &priority, &due, &created, &updated); err != nil {
		return Todo{}, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	t.Priority = Priority(priority)
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	t.CreatedAt = created.Time
	t.UpdatedAt = updated.Time
	return t, nil
}

// dbTime scans native timestamps (PostgreSQL) and text timestamps (SQLite).
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time, d.Valid = time.Time{}, false
		return nil
	case time.Time:
		d.Time, d.Valid = v.UTC(), true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (d *dbTime) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	d.Time, d.Valid = t.UTC(), true
	return nil
}
