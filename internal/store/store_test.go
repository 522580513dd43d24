package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/PriceImport/internal/core"
)

// fakeDB records statements and answers QueryRow with a canned row.
type fakeDB struct {
	execs    []execCall
	execTag  pgconn.CommandTag
	execErr  error
	row      fakeRow
	queryErr error
}

type execCall struct {
	SQL  string
	Args []any
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *string:
			*p = r.values[i].(string)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{SQL: sql, Args: args})
	return f.execTag, f.execErr
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, f.queryErr
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.row
}

func TestProductRepository_GetBySKU(t *testing.T) {
	db := &fakeDB{row: fakeRow{values: []any{int64(7), "A1", "9.9900"}}}
	repo := NewProductRepository(db)

	p, err := repo.GetBySKU(context.Background(), "A1", 3)
	require.NoError(t, err)
	assert.Equal(t, &core.Product{ID: 7, SKU: "A1", Price: "9.9900", StoreID: 3}, p)

	db.row = fakeRow{err: pgx.ErrNoRows}
	_, err = repo.GetBySKU(context.Background(), "ZZ", 3)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestProductRepository_UpdateAttributes(t *testing.T) {
	tests := []struct {
		name    string
		store   core.StoreID
		tag     string
		attrs   map[string]any
		wantSQL string
		wantErr error
	}{
		{"global", core.GlobalStore, "UPDATE 1", map[string]any{"price": "12.50"}, "UPDATE products", nil},
		{"global missing row", core.GlobalStore, "UPDATE 0", map[string]any{"price": "1"}, "UPDATE products", core.ErrNotFound},
		{"scoped", 4, "INSERT 0 1", map[string]any{"price": "$3"}, "INSERT INTO product_prices", nil},
		{"bad price", 4, "", map[string]any{"price": "abc"}, "", core.ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{execTag: pgconn.NewCommandTag(tt.tag)}
			err := NewProductRepository(db).UpdateAttributes(context.Background(), []int64{7}, tt.attrs, tt.store)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tt.wantSQL == "" {
				assert.Empty(t, db.execs)
				return
			}
			require.Len(t, db.execs, 1)
			assert.Contains(t, db.execs[0].SQL, tt.wantSQL)
		})
	}
}

func TestProductRepository_UpdateAttributesArgs(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("INSERT 0 2")}

	err := NewProductRepository(db).UpdateAttributes(context.Background(), []int64{1, 2}, map[string]any{"price": "5.25"}, 9)
	require.NoError(t, err)

	args := db.execs[0].Args
	assert.Equal(t, []int64{1, 2}, args[0])
	assert.Equal(t, int64(9), args[1])
	price, ok := args[2].(pgtype.Numeric)
	require.True(t, ok)
	f, err := price.Float64Value()
	require.NoError(t, err)
	assert.Equal(t, 5.25, f.Float64)
}

func TestProductRepository_RejectsUnknownAttributes(t *testing.T) {
	db := &fakeDB{}
	err := NewProductRepository(db).UpdateAttributes(context.Background(), []int64{1}, map[string]any{"name": "x"}, 0)

	require.Error(t, err)
	assert.Empty(t, db.execs)
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, EnsureSchema(context.Background(), db))
	require.Len(t, db.execs, 1)
	for _, table := range []string{"products", "product_prices", "import_history"} {
		assert.True(t, strings.Contains(db.execs[0].SQL, "CREATE TABLE IF NOT EXISTS "+table), table)
	}

	db.execErr = errors.New("permission denied")
	assert.Error(t, EnsureSchema(context.Background(), db))
}

func TestHistoryStore_RecordImport(t *testing.T) {
	db := &fakeDB{}
	hs := NewHistoryStore(db)
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := core.NewHistoryEntry("3f1d7f8e-8a4c-4c56-9a0e-7b1f2a9c0d11", "prices.csv", true, started,
		core.Summary{Success: true, Behavior: core.BehaviorAppend, RowsProcessed: 3, ItemsUpdated: 2}, nil)

	require.NoError(t, hs.RecordImport(context.Background(), entry))
	require.Len(t, db.execs, 1)
	args := db.execs[0].Args
	assert.Equal(t, "prices.csv", args[1])
	assert.Equal(t, "completed", args[5])
	assert.Equal(t, 2, args[8])

	assert.Error(t, hs.RecordImport(context.Background(), core.HistoryEntry{ID: "not-a-uuid"}))
}

// memKV is an in-memory KV.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
	dels int
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.data[key] = value
	return nil
}

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		m.dels++
		delete(m.data, k)
	}
	return nil
}

// countingRepo counts lookups against a fixed catalog.
type countingRepo struct {
	products map[string]int64
	lookups  int
	updates  int
}

func (r *countingRepo) GetBySKU(_ context.Context, sku string, store core.StoreID) (*core.Product, error) {
	r.lookups++
	id, ok := r.products[sku]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &core.Product{ID: id, SKU: sku, Price: "1", StoreID: store}, nil
}

func (r *countingRepo) UpdateAttributes(context.Context, []int64, map[string]any, core.StoreID) error {
	r.updates++
	return nil
}

func TestCachedRepository(t *testing.T) {
	ctx := context.Background()
	next := &countingRepo{products: map[string]int64{"A1": 1}}
	kv := newMemKV()
	repo := NewCachedRepository(next, kv, time.Minute, "test")

	for i := 0; i < 3; i++ {
		p, err := repo.GetBySKU(ctx, "A1", 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), p.ID)
	}
	assert.Equal(t, 1, next.lookups, "later lookups are served from cache")

	for i := 0; i < 2; i++ {
		_, err := repo.GetBySKU(ctx, "NOPE", 2)
		assert.ErrorIs(t, err, core.ErrNotFound)
	}
	assert.Equal(t, 3, next.lookups, "not-found answers always reach the store")
	_, ok := kv.data["test:product:2:NOPE"]
	assert.False(t, ok)

	require.NoError(t, repo.UpdateAttributes(ctx, []int64{1}, map[string]any{"price": "2"}, 2))
	assert.Equal(t, 1, next.updates)
	_, ok = kv.data["test:product:2:A1"]
	assert.False(t, ok, "update drops the cached product")

	_, err := repo.GetBySKU(ctx, "A1", 2)
	require.NoError(t, err)
	assert.Equal(t, 4, next.lookups)
}

func TestCachedRepository_NewSkuVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	next := &countingRepo{products: map[string]int64{}}
	kv := newMemKV()
	// Negative entry left behind by another process.
	kv.data["test:product:0:NEW"] = []byte(`{"sku":"NEW","missing":true}`)
	repo := NewCachedRepository(next, kv, time.Minute, "test")

	_, err := repo.GetBySKU(ctx, "NEW", 0)
	assert.ErrorIs(t, err, core.ErrNotFound)

	next.products["NEW"] = 7
	p, err := repo.GetBySKU(ctx, "NEW", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, 2, next.lookups)
}

// savingCountingRepo adds core.EntitySaver to countingRepo.
type savingCountingRepo struct {
	*countingRepo
	saved []core.Product
}

func (r *savingCountingRepo) Save(_ context.Context, p *core.Product) error {
	r.saved = append(r.saved, *p)
	return nil
}

func TestCachedRepository_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("delegates to saver", func(t *testing.T) {
		next := &savingCountingRepo{countingRepo: &countingRepo{products: map[string]int64{"A1": 1}}}
		kv := newMemKV()
		repo := NewCachedRepository(next, kv, time.Minute, "test")

		p, err := repo.GetBySKU(ctx, "A1", 2)
		require.NoError(t, err)
		p.Price = "9.99"
		require.NoError(t, repo.Save(ctx, p))

		require.Len(t, next.saved, 1)
		assert.Equal(t, "9.99", next.saved[0].Price)
		assert.Zero(t, next.updates)
		_, ok := kv.data["test:product:2:A1"]
		assert.False(t, ok, "save drops the cached product")
	})

	t.Run("falls back to update", func(t *testing.T) {
		next := &countingRepo{products: map[string]int64{"A1": 1}}
		repo := NewCachedRepository(next, newMemKV(), time.Minute, "test")

		require.NoError(t, repo.Save(ctx, &core.Product{ID: 1, SKU: "A1", Price: "2", StoreID: 2}))
		assert.Equal(t, 1, next.updates)
	})
}

func TestCachedRepository_RedisDownFallsBack(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	next := &countingRepo{products: map[string]int64{"A1": 1}}
	repo := NewCachedRepository(next, NewRedisKV(client), time.Minute, "")

	p, err := repo.GetBySKU(context.Background(), "A1", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.NoError(t, repo.UpdateAttributes(context.Background(), []int64{1}, map[string]any{"price": "3"}, 0))
}
