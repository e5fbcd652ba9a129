package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"duely/internal/task"
)

var ErrNoRows = errors.New("no task with that id")

type SQLite struct {
	db *sql.DB
}

func OpenSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT '',
	due INTEGER NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	reminder INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS tasks_due ON tasks (due, seq);`
	_, err := s.db.Exec(ddl)
	return err
}

func (s *SQLite) FetchAll(ctx context.Context) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, id, title, details, due, completed, reminder FROM tasks ORDER BY due, seq;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		var t task.Task
		var id string
		var due int64
		var completed, rem int
		if err := rows.Scan(&t.Seq, &id, &t.Title, &t.Details, &due, &completed, &rem); err != nil {
			return nil, err
		}
		t.ID = task.ID(id)
		t.Due = time.Unix(0, due)
		t.Completed = completed == 1
		t.Reminder = rem == 1
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *SQLite) Insert(ctx context.Context, t task.Task) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks (id, title, details, due, completed, reminder) VALUES (?, ?, ?, ?, ?, ?);`,
		t.ID.String(), t.Title, t.Details, t.Due.UnixNano(), boolInt(t.Completed), boolInt(t.Reminder))
	return err
}

func (s *SQLite) Update(ctx context.Context, t task.Task) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET title = ?, details = ?, due = ?, completed = ?, reminder = ? WHERE id = ?;`,
		t.Title, t.Details, t.Due.UnixNano(), boolInt(t.Completed), boolInt(t.Reminder), t.ID.String())
	if err != nil {
		return err
	}
	return expectOne(res, t.ID)
}

func (s *SQLite) Delete(ctx context.Context, id task.ID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?;`, id.String())
	if err != nil {
		return err
	}
	return expectOne(res, id)
}

func expectOne(res sql.Result, id task.ID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNoRows, id)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
