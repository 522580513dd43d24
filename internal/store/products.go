package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/PriceImport/internal/core"
)

// ProductRepository resolves products by sku and writes global or
// store-scoped prices.
//
// The global scope (store 0) lives on products.price. Any other store is an
// upsert into product_prices keyed by (product_id, store_id).
type ProductRepository struct {
	db DBTX
}

// NewProductRepository returns a repository over db.
func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

const getBySKU = `
SELECT p.id, p.sku, COALESCE(pp.price, p.price)::text
FROM products p
LEFT JOIN product_prices pp ON pp.product_id = p.id AND pp.store_id = $2
WHERE p.sku = $1`

// GetBySKU implements core.Repository.
func (r *ProductRepository) GetBySKU(ctx context.Context, sku string, store core.StoreID) (*core.Product, error) {
	p := core.Product{StoreID: store}
	err := r.db.QueryRow(ctx, getBySKU, sku, int64(store)).Scan(&p.ID, &p.SKU, &p.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("sku %q: %w", sku, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %q: %w", sku, err)
	}
	return &p, nil
}

const updateGlobalPrice = `
UPDATE products SET price = $1, updated_at = now()
WHERE id = ANY($2)`

const upsertStorePrice = `
INSERT INTO product_prices (product_id, store_id, price)
SELECT id, $2, $3 FROM unnest($1::bigint[]) AS id
ON CONFLICT (product_id, store_id)
DO UPDATE SET price = EXCLUDED.price, updated_at = now()`

// UpdateAttributes implements core.Repository. Only the price attribute is writable.
func (r *ProductRepository) UpdateAttributes(ctx context.Context, ids []int64, attrs map[string]any, store core.StoreID) error {
	if len(ids) == 0 {
		return nil
	}
	for name := range attrs {
		if name != core.ColumnPrice {
			return fmt.Errorf("attribute %q is not writable", name)
		}
	}
	raw, ok := attrs[core.ColumnPrice].(string)
	if !ok {
		return fmt.Errorf("%w: price attribute must be a string, got %T", core.ErrInvalidPrice, attrs[core.ColumnPrice])
	}
	price, err := core.ParsePrice(raw)
	if err != nil {
		return err
	}

	if store == core.GlobalStore {
		tag, err := r.db.Exec(ctx, updateGlobalPrice, price, ids)
		if err != nil {
			return fmt.Errorf("update global price: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update global price: %w", core.ErrNotFound)
		}
		return nil
	}

	if _, err := r.db.Exec(ctx, upsertStorePrice, ids, int64(store), price); err != nil {
		return fmt.Errorf("upsert price for store %d: %w", store, err)
	}
	return nil
}

// Save implements core.EntitySaver by writing p.Price in p.StoreID.
func (r *ProductRepository) Save(ctx context.Context, p *core.Product) error {
	return r.UpdateAttributes(ctx, []int64{p.ID}, map[string]any{core.ColumnPrice: p.Price}, p.StoreID)
}
