package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const redemptionsSchema = `
CREATE TABLE IF NOT EXISTS redemptions (
	id UUID PRIMARY KEY,
	code TEXT NOT NULL,
	student_id TEXT NOT NULL,
	issuer TEXT NOT NULL,
	year TEXT NOT NULL,
	section TEXT NOT NULL,
	branch TEXT NOT NULL,
	subject TEXT NOT NULL,
	period INT NOT NULL,
	redeemed_at TIMESTAMPTZ NOT NULL,
	UNIQUE (code, student_id)
)`

// PostgresRepository persists redemptions in Postgres. The unique index on
// (code, student_id) backs the exactly-once invariant even across restarts.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against databaseURL and ensures the schema exists.
func Connect(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, redemptionsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (p *PostgresRepository) Record(ctx context.Context, r Redemption) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO redemptions (id, code, student_id, issuer, year, section, branch, subject, period, redeemed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.Code, r.StudentID,
		r.Scope.Issuer, r.Scope.Year, r.Scope.Section, r.Scope.Branch, r.Scope.Subject, r.Scope.Period,
		r.RedeemedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

func (p *PostgresRepository) Exists(ctx context.Context, code, studentID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM redemptions WHERE code = $1 AND student_id = $2)`,
		code, studentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query redemption: %w", err)
	}
	return exists, nil
}

func (p *PostgresRepository) ListByCode(ctx context.Context, code string) ([]Redemption, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, code, student_id, issuer, year, section, branch, subject, period, redeemed_at
		FROM redemptions WHERE code = $1 ORDER BY redeemed_at`,
		code,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var out []Redemption
	for rows.Next() {
		var r Redemption
		if err := rows.Scan(
			&r.ID, &r.Code, &r.StudentID,
			&r.Scope.Issuer, &r.Scope.Year, &r.Scope.Section, &r.Scope.Branch, &r.Scope.Subject, &r.Scope.Period,
			&r.RedeemedAt,
		); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemptions: %w", err)
	}
	return out, nil
}

func (p *PostgresRepository) CountByCode(ctx context.Context, code string) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM redemptions WHERE code = $1`, code).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count redemptions: %w", err)
	}
	return count, nil
}

func (p *PostgresRepository) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the underlying pool.
func (p *PostgresRepository) Close() {
	p.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
