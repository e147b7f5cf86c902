package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func Open(databaseURL string, pool PoolConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return bun.NewDB(sqlDB, pgdialect.New()), nil
}

func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

var requiredTables = []string{
	"clients",
	"barbers",
	"services",
	"appointments",
	"agenda_blocks",
	"payments",
	"ledger_accounts",
	"ledger_movements",
}

// requiredConstraints back the no-double-booking and single-settlement
// guarantees; the server must not run without them.
var requiredConstraints = []string{
	constraintNoOverlap,
	"payments_external_payment_id_key",
	"payments_appointment_id_key",
}

// CheckSchema reports the first missing table, constraint or index the
// migrations should have created.
func CheckSchema(ctx context.Context, db bun.IDB) error {
	for _, table := range requiredTables {
		var ok bool
		if err := db.NewRaw("SELECT to_regclass(?) IS NOT NULL", table).Scan(ctx, &ok); err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if !ok {
			return fmt.Errorf("table %s is missing; apply the migrations", table)
		}
	}

	for _, name := range requiredConstraints {
		var n int
		if err := db.NewRaw("SELECT count(*) FROM pg_constraint WHERE conname = ?", name).Scan(ctx, &n); err != nil {
			return fmt.Errorf("check constraint %s: %w", name, err)
		}
		if n == 0 {
			return fmt.Errorf("constraint %s is missing; apply the migrations", name)
		}
	}

	var ok bool
	if err := db.NewRaw("SELECT to_regclass(?) IS NOT NULL", constraintActiveSlot).Scan(ctx, &ok); err != nil {
		return fmt.Errorf("check index %s: %w", constraintActiveSlot, err)
	}
	if !ok {
		return fmt.Errorf("index %s is missing; apply the migrations", constraintActiveSlot)
	}
	return nil
}
