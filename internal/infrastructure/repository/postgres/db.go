package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

// Advisory lock keys serializing DDL and material batch inserts across
// api and worker processes.
const (
	schemaLockKey    int64 = 2024031501
	materialsLockKey int64 = 2024031502
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS projects (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
	deadline TIMESTAMPTZ,
	description TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS materials (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	quantity DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (quantity >= 0),
	unit TEXT NOT NULL DEFAULT '',
	price DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (price >= 0),
	supplier TEXT,
	project_id BIGINT,
	category TEXT NOT NULL DEFAULT '',
	source_file TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_materials_project_id ON materials(project_id);
CREATE INDEX IF NOT EXISTS idx_materials_category ON materials(category);

CREATE TABLE IF NOT EXISTS reports (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	project_id BIGINT,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	region TEXT NOT NULL,
	regional_multiplier DOUBLE PRECISION NOT NULL,
	regional_adjusted_cost DOUBLE PRECISION NOT NULL,
	include_vat BOOLEAN NOT NULL,
	materials JSONB NOT NULL DEFAULT '[]'::jsonb,
	base_cost DOUBLE PRECISION NOT NULL,
	vat_rate DOUBLE PRECISION NOT NULL,
	vat_amount DOUBLE PRECISION NOT NULL,
	total_cost DOUBLE PRECISION NOT NULL,
	currency TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_project_id ON reports(project_id);
`

// EnsureSchema creates the tables and seeds the materials table when it is
// empty. Concurrent startups are serialized by an advisory lock.
func EnsureSchema(ctx context.Context, db *sql.DB, seed []domain.Material) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM materials`).Scan(&count); err != nil {
		return fmt.Errorf("count materials: %w", err)
	}
	if count == 0 {
		for _, m := range seed {
			if _, err := insertMaterial(ctx, tx, m); err != nil {
				return fmt.Errorf("seed materials: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func notFound(kind string, id int64) error {
	return domain.WrapError(domain.ErrNotFound, "get "+kind, fmt.Errorf("%s %d not found", kind, id))
}

func limitOrDefault(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}
