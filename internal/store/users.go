package store

import (
	"context"
	"database/sql"
	"time"
)

// UserRepo manages accounts and token balances. Credits require the durable
// backend; the file-mirrored store is assignments-only.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func (r *UserRepo) Create(ctx context.Context, username, passwordHash string) (*User, error) {
	const q = `
insert into users (username, password_hash)
values ($1, $2)
returning id, username, password_hash, token_balance, created_at`
	var u User
	err := r.DB.QueryRowContext(ctx, q, username, passwordHash).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.TokenBalance, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	const q = `select id, username, password_hash, token_balance, created_at from users where username = $1`
	var u User
	err := r.DB.QueryRowContext(ctx, q, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.TokenBalance, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	const q = `select id, username, password_hash, token_balance, created_at from users where id = $1`
	var u User
	err := r.DB.QueryRowContext(ctx, q, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.TokenBalance, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreditTokens adds tokens to the balance after a confirmed payment.
func (r *UserRepo) CreditTokens(ctx context.Context, userID, tokens int64) error {
	const q = `update users set token_balance = token_balance + $2 where id = $1`
	res, err := r.DB.ExecContext(ctx, q, userID, tokens)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNotFound
	}
	return nil
}

// UsageRepo accumulates daily token usage per owner key. Rows only ever grow;
// there is no deletion path.
type UsageRepo struct{ DB *sql.DB }

func NewUsageRepo(db *sql.DB) *UsageRepo { return &UsageRepo{DB: db} }

func (r *UsageRepo) Add(ctx context.Context, ownerKey string, day time.Time, promptTokens, completionTokens int64) error {
	const q = `
insert into token_usage (owner_key, day, requests, prompt_tokens, completion_tokens)
values ($1, $2, 1, $3, $4)
on conflict (owner_key, day) do update
set requests          = token_usage.requests + 1,
    prompt_tokens     = token_usage.prompt_tokens + excluded.prompt_tokens,
    completion_tokens = token_usage.completion_tokens + excluded.completion_tokens`
	_, err := r.DB.ExecContext(ctx, q, ownerKey, day.Format("2006-01-02"), promptTokens, completionTokens)
	return err
}

func (r *UsageRepo) ForDay(ctx context.Context, ownerKey string, day time.Time) (*DailyUsage, error) {
	const q = `
select owner_key, day, requests, prompt_tokens, completion_tokens
from token_usage where owner_key = $1 and day = $2`
	var u DailyUsage
	err := r.DB.QueryRowContext(ctx, q, ownerKey, day.Format("2006-01-02")).
		Scan(&u.OwnerKey, &u.Day, &u.Requests, &u.PromptTokens, &u.CompletionTokens)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
