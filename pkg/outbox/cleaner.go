package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	deletePublishedQuery = `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`
	deleteDeadQuery      = `DELETE FROM outbox WHERE published_at IS NULL AND attempts >= $1 AND created_at < $2`
)

// Cleaner deletes published messages past retention and, optionally, dead ones.
type Cleaner struct {
	pool *pgxpool.Pool
	opts CleanerOptions
}

func NewCleaner(pool *pgxpool.Pool, opts CleanerOptions) (*Cleaner, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	opts.setDefaults()
	if opts.DeadRetention > 0 && opts.DeadAttemptsThreshold <= 0 {
		return nil, invalidConfig("dead retention requires DeadAttemptsThreshold > 0")
	}
	return &Cleaner{pool: pool, opts: opts}, nil
}

func (c *Cleaner) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := c.CleanOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.opts.Logger.WithError(err).Warn("outbox: cleaner tick failed")
		}
	}
}

func (c *Cleaner) CleanOnce(ctx context.Context) error {
	now := time.Now()
	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deletePublishedQuery, now.Add(-c.opts.Retention)); err != nil {
			return err
		}
		if c.opts.DeadRetention > 0 {
			if _, err := tx.Exec(ctx, deleteDeadQuery, c.opts.DeadAttemptsThreshold, now.Add(-c.opts.DeadRetention)); err != nil {
				return err
			}
		}
		return nil
	})
}
