package storage_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/storage"
)

// setupTestRedis starts an in-memory redis and returns a backend bound to it.
func setupTestRedis(t *testing.T, ttl time.Duration) (*storage.Redis, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return storage.NewRedis(client, ttl), mr
}

func setupTestSQL(t *testing.T) *storage.SQL {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// one connection, otherwise each pooled conn gets its own empty :memory: database
	sqldb.SetMaxOpenConns(1)

	store := &storage.SQL{Bun: bun.NewDB(sqldb, sqlitedialect.New())}
	require.NoError(t, store.CreateSchema(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func backends(t *testing.T) map[string]storage.Backend {
	fileStore, err := storage.NewFile(t.TempDir())
	require.NoError(t, err)
	redisStore, _ := setupTestRedis(t, 0)

	return map[string]storage.Backend{
		"memory": storage.NewMemory(),
		"file":   fileStore,
		"redis":  redisStore,
		"sqlite": setupTestSQL(t),
	}
}

func TestBackends_ReadWriteDelete(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Read(ctx, "ticketCart")
			assert.ErrorIs(t, err, storage.ErrNotFound)

			require.NoError(t, b.Write(ctx, "ticketCart", []byte(`{"1":{"10":2}}`)))
			got, err := b.Read(ctx, "ticketCart")
			require.NoError(t, err)
			assert.JSONEq(t, `{"1":{"10":2}}`, string(got))

			// overwrite replaces the whole value
			require.NoError(t, b.Write(ctx, "ticketCart", []byte(`{}`)))
			got, err = b.Read(ctx, "ticketCart")
			require.NoError(t, err)
			assert.Equal(t, "{}", string(got))

			require.NoError(t, b.Delete(ctx, "ticketCart"))
			_, err = b.Read(ctx, "ticketCart")
			assert.ErrorIs(t, err, storage.ErrNotFound)

			// deleting a missing key is not an error
			assert.NoError(t, b.Delete(ctx, "ticketCart"))
		})
	}
}

func TestBackends_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Write(ctx, "ticketCart:a", []byte("a")))
			require.NoError(t, b.Write(ctx, "ticketCart:b", []byte("b")))
			require.NoError(t, b.Delete(ctx, "ticketCart:a"))

			got, err := b.Read(ctx, "ticketCart:b")
			require.NoError(t, err)
			assert.Equal(t, "b", string(got))
		})
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemory()

	value := []byte("abc")
	require.NoError(t, m.Write(ctx, "k", value))
	value[0] = 'z'

	got, err := m.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f, err := storage.NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, f.Write(context.Background(), "ticketCart:abc/def", []byte("{}")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ticketCart:abc%2Fdef.json", entries[0].Name())
	assert.FileExists(t, filepath.Join(dir, entries[0].Name()))
}

func TestRedis_AppliesTTL(t *testing.T) {
	r, mr := setupTestRedis(t, 15*time.Minute)

	require.NoError(t, r.Write(context.Background(), "ticketCart", []byte("{}")))
	assert.Equal(t, 15*time.Minute, mr.TTL("ticketCart"))

	mr.FastForward(16 * time.Minute)
	_, err := r.Read(context.Background(), "ticketCart")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRedis_ReadFailsWhenServerDown(t *testing.T) {
	r, mr := setupTestRedis(t, 0)
	mr.Close()

	_, err := r.Read(context.Background(), "ticketCart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()
	log := logger.Discard()

	cfg := &config.Config{Store: config.StoreConfig{Backend: "memory"}}
	b, err := storage.Open(ctx, cfg, log)
	require.NoError(t, err)
	assert.IsType(t, &storage.Memory{}, b)

	cfg = &config.Config{Store: config.StoreConfig{Backend: "file", Dir: t.TempDir()}}
	b, err = storage.Open(ctx, cfg, log)
	require.NoError(t, err)
	assert.IsType(t, &storage.File{}, b)

	cfg = &config.Config{Store: config.StoreConfig{Backend: "sqlite", SQLitePath: "file:open_test?mode=memory&cache=shared"}}
	b, err = storage.Open(ctx, cfg, log)
	require.NoError(t, err)
	assert.IsType(t, &storage.SQL{}, b)
	require.NoError(t, b.Close())

	cfg = &config.Config{Store: config.StoreConfig{Backend: "postgres"}}
	_, err = storage.Open(ctx, cfg, log)
	assert.Error(t, err)

	cfg = &config.Config{Store: config.StoreConfig{Backend: "etcd"}}
	_, err = storage.Open(ctx, cfg, log)
	assert.ErrorContains(t, err, "unknown STORE_BACKEND")
}

func TestUpdaters_IncrementsAreNotLost(t *testing.T) {
	ctx := context.Background()
	redisStore, _ := setupTestRedis(t, 0)
	updaters := map[string]storage.Updater{
		"memory": storage.NewMemory(),
		"redis":  redisStore,
		"sqlite": setupTestSQL(t),
	}

	increment := func(current []byte) ([]byte, error) {
		n := 0
		if current != nil {
			n, _ = strconv.Atoi(string(current))
		}
		return []byte(strconv.Itoa(n + 1)), nil
	}

	for name, u := range updaters {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, u.Update(ctx, "counter", increment))
				}()
			}
			wg.Wait()

			got, err := u.(storage.Backend).Read(ctx, "counter")
			require.NoError(t, err)
			assert.Equal(t, "10", string(got))
		})
	}
}

func TestUpdaters_NilResultLeavesKeyUntouched(t *testing.T) {
	ctx := context.Background()
	redisStore, _ := setupTestRedis(t, 0)
	updaters := map[string]storage.Updater{
		"memory": storage.NewMemory(),
		"redis":  redisStore,
		"sqlite": setupTestSQL(t),
	}

	for name, u := range updaters {
		t.Run(name, func(t *testing.T) {
			var seen []byte
			require.NoError(t, u.Update(ctx, "absent", func(current []byte) ([]byte, error) {
				seen = current
				return nil, nil
			}))
			assert.Nil(t, seen)

			_, err := u.(storage.Backend).Read(ctx, "absent")
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestRedis_UpdateKeepsTTL(t *testing.T) {
	r, mr := setupTestRedis(t, 15*time.Minute)

	require.NoError(t, r.Update(context.Background(), "ticketCart", func([]byte) ([]byte, error) {
		return []byte("{}"), nil
	}))
	assert.Equal(t, 15*time.Minute, mr.TTL("ticketCart"))
}

func TestOpen_SQLiteInMemoryKeepsData(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Store: config.StoreConfig{Backend: "sqlite", SQLitePath: ":memory:"}}

	b, err := storage.Open(ctx, cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	// concurrent callers would each get a fresh, table-less database on a new connection
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, b.Write(ctx, "ticketCart:"+strconv.Itoa(i), []byte("{}")))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		got, err := b.Read(ctx, "ticketCart:"+strconv.Itoa(i))
		require.NoError(t, err)
		assert.Equal(t, "{}", string(got))
	}
}
