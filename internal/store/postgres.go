package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

const schema = `
create table if not exists assignments (
    id             bigserial primary key,
    user_id        bigint,
    session_id     text,
    input_text     text,
    input_kind     text not null,
    file_name      text,
    extracted_text text,
    provider       text not null,
    response       text,
    chart_data     jsonb,
    chart_images   jsonb,
    processing_ms  bigint not null default 0,
    created_at     timestamptz not null default now()
);
create index if not exists assignments_user_idx on assignments(user_id, created_at);

create table if not exists users (
    id            bigserial primary key,
    username      text not null unique,
    password_hash text not null,
    token_balance bigint not null default 0,
    created_at    timestamptz not null default now()
);

create table if not exists token_usage (
    owner_key         text not null,
    day               date not null,
    requests          bigint not null default 0,
    prompt_tokens     bigint not null default 0,
    completion_tokens bigint not null default 0,
    primary key (owner_key, day)
);
`

// OpenPostgres connects, tunes the pool and bootstraps the schema.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return db, nil
}

type PostgresStore struct{ DB *sql.DB }

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{DB: db} }

func (s *PostgresStore) Create(ctx context.Context, a *Assignment) error {
	chartData, _ := json.Marshal(a.ChartData)
	chartImages, _ := json.Marshal(a.ChartImages)

	const q = `
insert into assignments (
  user_id, session_id, input_text, input_kind, file_name,
  extracted_text, provider, response, chart_data, chart_images, processing_ms
) values (nullif($1,0),$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
returning id, created_at`
	return s.DB.QueryRowContext(ctx, q,
		a.UserID, a.SessionID, a.InputText, a.InputKind, a.FileName,
		a.ExtractedText, a.Provider, a.Response, chartData, chartImages, a.ProcessingMS,
	).Scan(&a.ID, &a.CreatedAt)
}

const assignmentCols = `
id, coalesce(user_id,0), coalesce(session_id,''), coalesce(input_text,''),
input_kind, coalesce(file_name,''), coalesce(extracted_text,''),
provider, coalesce(response,''), chart_data, chart_images, processing_ms, created_at`

func scanAssignment(row interface{ Scan(...any) error }) (*Assignment, error) {
	var (
		a                      Assignment
		chartData, chartImages []byte
	)
	if err := row.Scan(
		&a.ID, &a.UserID, &a.SessionID, &a.InputText,
		&a.InputKind, &a.FileName, &a.ExtractedText,
		&a.Provider, &a.Response, &chartData, &chartImages, &a.ProcessingMS, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(chartData, &a.ChartData)
	_ = json.Unmarshal(chartImages, &a.ChartImages)
	return &a, nil
}

func (s *PostgresStore) Get(ctx context.Context, id, owner int64) (*Assignment, error) {
	q := `select ` + assignmentCols + ` from assignments where id = $1`
	args := []any{id}
	if owner > 0 {
		q += ` and user_id = $2`
		args = append(args, owner)
	}
	a, err := scanAssignment(s.DB.QueryRowContext(ctx, q, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *PostgresStore) List(ctx context.Context, owner int64) ([]Assignment, error) {
	q := `select ` + assignmentCols + ` from assignments where user_id is null order by created_at asc`
	args := []any{}
	if owner > 0 {
		q = `select ` + assignmentCols + ` from assignments where user_id = $1 order by created_at asc`
		args = append(args, owner)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PurgeTextEntries(ctx context.Context, owner int64) (int64, error) {
	q := `delete from assignments where (file_name is null or file_name = '')`
	args := []any{}
	if owner > 0 {
		q += ` and user_id = $1`
		args = append(args, owner)
	}
	res, err := s.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }
