package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// memoryRepo is an in-memory Repository keyed by sku.
type memoryRepo struct {
	mu       sync.Mutex
	products map[string]*Product
	prices   map[updateKey]string
	updates  []updateCall
	lookups  []string
	failSKU  map[string]error
	saves    int
}

type updateKey struct {
	id    int64
	store StoreID
}

type updateCall struct {
	IDs   []int64
	Attrs map[string]any
	Store StoreID
}

func newMemoryRepo(skus ...string) *memoryRepo {
	r := &memoryRepo{
		products: make(map[string]*Product),
		prices:   make(map[updateKey]string),
		failSKU:  make(map[string]error),
	}
	for i, sku := range skus {
		r.products[sku] = &Product{ID: int64(i + 1), SKU: sku, Price: "0"}
	}
	return r
}

func (r *memoryRepo) GetBySKU(_ context.Context, sku string, store StoreID) (*Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, sku)
	if err := r.failSKU[sku]; err != nil {
		return nil, err
	}
	p, ok := r.products[sku]
	if !ok {
		return nil, fmt.Errorf("sku %s: %w", sku, ErrNotFound)
	}
	cp := *p
	cp.StoreID = store
	return &cp, nil
}

func (r *memoryRepo) UpdateAttributes(_ context.Context, ids []int64, attrs map[string]any, store StoreID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, updateCall{IDs: ids, Attrs: attrs, Store: store})
	for _, id := range ids {
		r.prices[updateKey{id, store}] = fmt.Sprint(attrs[ColumnPrice])
	}
	return nil
}

func (r *memoryRepo) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

// savingRepo also implements EntitySaver.
type savingRepo struct {
	*memoryRepo
}

func (r savingRepo) Save(_ context.Context, p *Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.prices[updateKey{p.ID, p.StoreID}] = p.Price
	return nil
}

// sliceSource serves fixed bunches and then an empty one.
type sliceSource struct {
	bunches []Bunch
	calls   int
	err     error
	errAt   int
}

func bunchOf(start int, rows ...Row) Bunch {
	b := make(Bunch, len(rows))
	for i, r := range rows {
		b[i] = IndexedRow{Index: RowIndex(start + i), Row: r}
	}
	return b
}

func (s *sliceSource) NextBunch(context.Context) (Bunch, error) {
	s.calls++
	if s.err != nil && s.calls == s.errAt {
		return nil, s.err
	}
	if len(s.bunches) == 0 {
		return nil, nil
	}
	b := s.bunches[0]
	s.bunches = s.bunches[1:]
	return b, nil
}

var errBoom = errors.New("boom")
