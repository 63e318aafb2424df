package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-storefront/internal/config"
	"ms-storefront/internal/database/migrations"
	"ms-storefront/internal/logger"
)

const connectRetries = 5

// Open builds the backend named by cfg.Store.Backend and verifies it is reachable.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (Backend, error) {
	switch cfg.Store.Backend {
	case "memory":
		log.LogStore("OPEN", "memory", "carts are lost on restart")
		return NewMemory(), nil

	case "file", "":
		f, err := NewFile(cfg.Store.Dir)
		if err != nil {
			return nil, err
		}
		log.LogStore("OPEN", "file", cfg.Store.Dir)
		return f, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis connection error: %w", err)
		}
		log.Info("STORE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))
		return NewRedis(client, cfg.Store.CartTTL), nil

	case "sqlite":
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// one writer at a time; ":memory:" is also per connection
		sqldb.SetMaxOpenConns(1)
		store := &SQL{Bun: bun.NewDB(sqldb, sqlitedialect.New())}
		if err := store.CreateSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create kv schema: %w", err)
		}
		log.LogStore("OPEN", "sqlite", cfg.Store.SQLitePath)
		return store, nil

	case "postgres":
		if cfg.Store.PostgresDSN == "" {
			return nil, fmt.Errorf("POSTGRES_DSN not set")
		}
		sqldb, err := connectPostgres(cfg.Store.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		bunDB := bun.NewDB(sqldb, pgdialect.New())
		if err := migrations.NewRunner(bunDB, log).MigrateUp(); err != nil {
			bunDB.Close()
			return nil, err
		}
		log.LogStore("OPEN", "postgres", "✅ PostgreSQL store ready")
		return &SQL{Bun: bunDB}, nil
	}

	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend)
}

func connectPostgres(dsn string, log *logger.Logger) (*sql.DB, error) {
	var sqldb *sql.DB
	var err error

	for i := 0; i < connectRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, connectRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			return sqldb, nil
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < connectRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL after %d attempts: %w", connectRetries, err)
}
