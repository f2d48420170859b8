package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Connect opens a pool and pings it once.
func Connect(ctx context.Context, dsn string, log *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	log.Info("connected to postgres")
	return pool, nil
}

// EnsureSchema creates the tables if they are missing and then makes sure
// columns added later exist. Index and column fixes only log on failure.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) error {
	for _, t := range tables {
		if _, err := pool.Exec(ctx, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}
	ensureUserColumns(ctx, pool, log)
	ensureOrderColumns(ctx, pool, log)
	ensureIndexes(ctx, pool, log)
	return nil
}

var tables = []struct {
	name string
	ddl  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			role TEXT NOT NULL CHECK (role IN ('customer', 'provider', 'admin')),
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			cpf_cnpj TEXT UNIQUE,
			company_name TEXT NOT NULL DEFAULT '',
			specialties TEXT[] NOT NULL DEFAULT '{}',
			availability TEXT NOT NULL DEFAULT '',
			rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_services INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"service_orders", `
		CREATE TABLE IF NOT EXISTS service_orders (
			id UUID PRIMARY KEY,
			customer_id UUID NOT NULL REFERENCES users(id),
			provider_id UUID REFERENCES users(id),
			counter_provider_id UUID REFERENCES users(id),
			service_type TEXT NOT NULL,
			description TEXT NOT NULL,
			area TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL,
			desired_date TIMESTAMPTZ,
			photos TEXT[] NOT NULL DEFAULT '{}',
			status TEXT NOT NULL,
			customer_proposed_value NUMERIC(12,2),
			provider_proposed_value NUMERIC(12,2),
			final_value NUMERIC(12,2),
			rating SMALLINT CHECK (rating BETWEEN 1 AND 5),
			review TEXT,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
	{"negotiations", `
		CREATE TABLE IF NOT EXISTS negotiations (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES service_orders(id),
			user_id UUID NOT NULL REFERENCES users(id),
			role TEXT NOT NULL CHECK (role IN ('customer', 'provider')),
			proposed_value NUMERIC(12,2) NOT NULL CHECK (proposed_value > 0),
			message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`},
}

// ensureUserColumns adds the provider location columns if missing
func ensureUserColumns(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) {
	for _, stmt := range []string{
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS service_radius_km DOUBLE PRECISION NOT NULL DEFAULT 0`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS latitude DOUBLE PRECISION`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS longitude DOUBLE PRECISION`,
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Warn("failed to ensure users column", zap.String("stmt", stmt), zap.Error(err))
		}
	}
}

// ensureOrderColumns adds order coordinates and the status constraint.
func ensureOrderColumns(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) {
	for _, stmt := range []string{
		`ALTER TABLE service_orders ADD COLUMN IF NOT EXISTS latitude DOUBLE PRECISION`,
		`ALTER TABLE service_orders ADD COLUMN IF NOT EXISTS longitude DOUBLE PRECISION`,
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Warn("failed to ensure service_orders column", zap.String("stmt", stmt), zap.Error(err))
		}
	}

	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_constraint WHERE conname = 'service_orders_status_check'
		)`).Scan(&exists)
	if err != nil {
		log.Warn("schema check failed", zap.Error(err))
		return
	}
	if exists {
		return
	}
	_, err = pool.Exec(ctx, `
		ALTER TABLE service_orders ADD CONSTRAINT service_orders_status_check CHECK (
			status IN ('awaiting_acceptance', 'negotiating', 'accepted', 'en_route', 'in_progress', 'completed', 'cancelled')
			AND (status = 'cancelled' OR (provider_id IS NOT NULL) = (status IN ('accepted', 'en_route', 'in_progress', 'completed')))
			AND (rating IS NULL OR status = 'completed')
		)`)
	if err != nil {
		log.Warn("failed to add service_orders status constraint", zap.Error(err))
		return
	}
	log.Info("service_orders status constraint ensured")
}

func ensureIndexes(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) {
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_orders_customer ON service_orders (customer_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_provider ON service_orders (provider_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_pool ON service_orders (created_at DESC)
			WHERE provider_id IS NULL AND status IN ('awaiting_acceptance', 'negotiating')`,
		`CREATE INDEX IF NOT EXISTS idx_negotiations_order ON negotiations (order_id, created_at)`,
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			log.Warn("failed to ensure index", zap.String("stmt", stmt), zap.Error(err))
		}
	}
}
