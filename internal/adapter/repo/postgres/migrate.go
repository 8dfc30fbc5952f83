package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"
)

//go:embed ../../../../schema.sql
var schemaSQL string

// Migrate applies the base schema and ensures a comments partition exists
// for every month from now through monthsAhead months out.
func Migrate(ctx context.Context, pool PgxPool, monthsAhead int) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("op=postgres.Migrate schema: %w", err)
	}
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i <= monthsAhead; i++ {
		monthStart := start.AddDate(0, i, 0)
		monthEnd := monthStart.AddDate(0, 1, 0)
		partition := fmt.Sprintf("comments_%04d%02d", monthStart.Year(), int(monthStart.Month()))
		q := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s PARTITION OF comments FOR VALUES FROM ('%s') TO ('%s')`,
			partition, monthStart.Format(time.RFC3339), monthEnd.Format(time.RFC3339),
		)
		if _, err := pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("op=postgres.Migrate partition=%s: %w", partition, err)
		}
	}
	return nil
}
