package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type Entry struct {
	bun.BaseModel `bun:"table:kv_entries"`

	Key       string    `bun:"entry_key,pk"`
	Value     []byte    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// SQL keeps values in the kv_entries table of a bun database.
type SQL struct {
	Bun *bun.DB
}

// CreateSchema creates kv_entries when it does not exist. Postgres deployments run the
// migrations package instead.
func (s *SQL) CreateSchema(ctx context.Context) error {
	_, err := s.Bun.NewCreateTable().
		Model((*Entry)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *SQL) Read(ctx context.Context, key string) ([]byte, error) {
	return selectValue(ctx, s.Bun.NewSelect(), key)
}

func selectValue(ctx context.Context, q *bun.SelectQuery, key string) ([]byte, error) {
	var entry Entry
	err := q.Model(&entry).
		Where("entry_key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return entry.Value, nil
}

func (s *SQL) Write(ctx context.Context, key string, value []byte) error {
	return upsert(ctx, s.Bun, key, value)
}

func upsert(ctx context.Context, db bun.IDB, key string, value []byte) error {
	entry := Entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := db.NewInsert().
		Model(&entry).
		On("CONFLICT (entry_key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Update runs fn inside a transaction. On postgres the row is locked with FOR UPDATE.
func (s *SQL) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect()
		if s.Bun.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		current, err := selectValue(ctx, q, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		next, err := fn(current)
		if err != nil || next == nil {
			return err
		}
		return upsert(ctx, tx, key, next)
	})
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	_, err := s.Bun.NewDelete().
		Model((*Entry)(nil)).
		Where("entry_key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Close() error {
	return s.Bun.Close()
}
