package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"duely/internal/task"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error creating schema: %w", err)
	}
	return p, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS tasks (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			due BIGINT NOT NULL,
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			reminder BOOLEAN NOT NULL DEFAULT FALSE
		)`
	_, err := p.pool.Exec(ctx, ddl)
	return err
}

func (p *Postgres) FetchAll(ctx context.Context) ([]task.Task, error) {
	query := `
		SELECT seq, id, title, details, due, completed, reminder
		FROM tasks
		ORDER BY due, seq`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		var t task.Task
		var id string
		var due int64
		if err := rows.Scan(&t.Seq, &id, &t.Title, &t.Details, &due, &t.Completed, &t.Reminder); err != nil {
			return nil, err
		}
		t.ID = task.ID(id)
		t.Due = time.Unix(0, due)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (p *Postgres) Insert(ctx context.Context, t task.Task) error {
	query := `
		INSERT INTO tasks (id, title, details, due, completed, reminder)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := p.pool.Exec(ctx, query,
		t.ID.String(),
		t.Title,
		t.Details,
		t.Due.UnixNano(),
		t.Completed,
		t.Reminder,
	)
	return err
}

func (p *Postgres) Update(ctx context.Context, t task.Task) error {
	query := `
		UPDATE tasks
		SET title = $1, details = $2, due = $3, completed = $4, reminder = $5
		WHERE id = $6`

	tag, err := p.pool.Exec(ctx, query,
		t.Title,
		t.Details,
		t.Due.UnixNano(),
		t.Completed,
		t.Reminder,
		t.ID.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNoRows, t.ID)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, id task.ID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNoRows, id)
	}
	return nil
}
