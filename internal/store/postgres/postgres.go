// Package postgres implements store.Repository on PostgreSQL via the pgx
// stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ensureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	parent_id  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	category_id TEXT NOT NULL DEFAULT '',
	base_price  NUMERIC(14,2) NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS product_variants (
	product_id      TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	id              TEXT NOT NULL,
	purchased_price NUMERIC(14,2) NOT NULL,
	selling_price   NUMERIC(14,2) NOT NULL,
	stock           INTEGER NOT NULL CHECK (stock >= 0),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (product_id, id)
);
CREATE TABLE IF NOT EXISTS sales (
	id            TEXT PRIMARY KEY,
	customer_name TEXT NOT NULL DEFAULT '',
	total         NUMERIC(14,2) NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS sale_items (
	sale_id      TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	product_id   TEXT NOT NULL,
	product_name TEXT NOT NULL,
	variant_id   TEXT NOT NULL,
	quantity     INTEGER NOT NULL CHECK (quantity > 0),
	unit_price   NUMERIC(14,2) NOT NULL,
	line_total   NUMERIC(14,2) NOT NULL,
	PRIMARY KEY (sale_id, position)
);
CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales (created_at);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category_id, base_price, created_at FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID, &p.BasePrice, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range products {
		variants, err := s.loadVariants(ctx, products[i].ID)
		if err != nil {
			return nil, err
		}
		products[i].Variants = variants
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, category_id, base_price, created_at FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.CategoryID, &p.BasePrice, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}

	p.Variants, err = s.loadVariants(ctx, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) loadVariants(ctx context.Context, productID string) ([]domain.ProductVariant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, purchased_price, selling_price, stock FROM product_variants WHERE product_id = $1 ORDER BY id`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("load variants for %s: %w", productID, err)
	}
	defer rows.Close()

	var variants []domain.ProductVariant
	for rows.Next() {
		var v domain.ProductVariant
		if err := rows.Scan(&v.ID, &v.PurchasedPrice, &v.SellingPrice, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, p *domain.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO products (id, name, category_id, base_price, created_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.CategoryID, p.BasePrice, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert product %s: %w", p.ID, err)
	}
	if err := insertVariants(ctx, tx, p.ID, p.Variants); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UpdateProduct(ctx context.Context, p *domain.Product) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET name = $1, category_id = $2, base_price = $3 WHERE id = $4`,
		p.Name, p.CategoryID, p.BasePrice, p.ID)
	if err != nil {
		return fmt.Errorf("update product %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveVariants(ctx context.Context, productID string, variants []domain.ProductVariant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check product %s: %w", productID, err)
	}
	if !exists {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("clear variants for %s: %w", productID, err)
	}
	if err := insertVariants(ctx, tx, productID, variants); err != nil {
		return err
	}
	return tx.Commit()
}

func insertVariants(ctx context.Context, tx *sql.Tx, productID string, variants []domain.ProductVariant) error {
	for _, v := range variants {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO product_variants (product_id, id, purchased_price, selling_price, stock)
			 VALUES ($1, $2, $3, $4, $5)`,
			productID, v.ID, v.PurchasedPrice, v.SellingPrice, v.Stock)
		if err != nil {
			return fmt.Errorf("insert variant %s/%s: %w", productID, v.ID, err)
		}
	}
	return nil
}

func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, parent_id, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.ParentID, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert category %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, parent_id, created_at FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, parent_id, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.ParentID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category %s: %w", id, err)
	}
	return &c, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TryDecrementStock relies on a single conditional UPDATE, so the check and
// the subtraction are one atomic statement in the database.
func (s *Store) TryDecrementStock(ctx context.Context, productID, variantID string, qty int) (int, error) {
	var remaining int
	err := s.db.QueryRowContext(ctx,
		`UPDATE product_variants
		 SET stock = stock - $1, updated_at = now()
		 WHERE product_id = $2 AND id = $3 AND stock >= $1
		 RETURNING stock`,
		qty, productID, variantID).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("decrement stock %s/%s: %w", productID, variantID, err)
	}

	// Either the variant is missing or stock was short. Re-read to tell
	// the two apart.
	var available int
	err = s.db.QueryRowContext(ctx,
		`SELECT stock FROM product_variants WHERE product_id = $1 AND id = $2`,
		productID, variantID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read stock %s/%s: %w", productID, variantID, err)
	}
	return available, &store.InsufficientStockError{
		ProductID: productID,
		VariantID: variantID,
		Available: available,
		Requested: qty,
	}
}

func (s *Store) IncrementStock(ctx context.Context, productID, variantID string, qty int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE product_variants SET stock = stock + $1, updated_at = now()
		 WHERE product_id = $2 AND id = $3`,
		qty, productID, variantID)
	if err != nil {
		return fmt.Errorf("increment stock %s/%s: %w", productID, variantID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateSale(ctx context.Context, sale *domain.Sale) error {
	if len(sale.Items) == 0 {
		return store.ErrInvalidRecord
	}
	sum := decimal.Zero
	for _, it := range sale.Items {
		sum = sum.Add(it.LineTotal)
	}
	if !sum.Equal(sale.Total) {
		return store.ErrInvalidRecord
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sales (id, customer_name, total, created_at) VALUES ($1, $2, $3, $4)`,
		sale.ID, sale.CustomerName, sale.Total, sale.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert sale %s: %w", sale.ID, err)
	}
	for i, it := range sale.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sale_items (sale_id, position, product_id, product_name, variant_id, quantity, unit_price, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			sale.ID, i, it.ProductID, it.ProductName, it.VariantID, it.Quantity, it.UnitPrice, it.LineTotal)
		if err != nil {
			return fmt.Errorf("insert sale item %s/%d: %w", sale.ID, i, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx,
		`SELECT id, customer_name, total, created_at FROM sales WHERE id = $1`, id).
		Scan(&sale.ID, &sale.CustomerName, &sale.Total, &sale.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sale %s: %w", id, err)
	}

	sale.Items, err = s.loadSaleItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) loadSaleItems(ctx context.Context, saleID string) ([]domain.SaleLineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, product_name, variant_id, quantity, unit_price, line_total
		 FROM sale_items WHERE sale_id = $1 ORDER BY position`, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale items for %s: %w", saleID, err)
	}
	defer rows.Close()

	var items []domain.SaleLineItem
	for rows.Next() {
		var it domain.SaleLineItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.VariantID, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) ListSales(ctx context.Context, from, to time.Time, ascending bool) ([]domain.Sale, error) {
	order := "DESC"
	if ascending {
		order = "ASC"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_name, total, created_at FROM sales
		 WHERE created_at >= $1 AND created_at < $2
		 ORDER BY created_at `+order+`, id`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return s.collectSales(ctx, rows)
}

func (s *Store) ListAllSales(ctx context.Context, ascending bool) ([]domain.Sale, error) {
	order := "DESC"
	if ascending {
		order = "ASC"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_name, total, created_at FROM sales ORDER BY created_at `+order+`, id`)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return s.collectSales(ctx, rows)
}

func (s *Store) ListRecentSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_name, total, created_at FROM sales
		 ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent sales: %w", err)
	}
	return s.collectSales(ctx, rows)
}

func (s *Store) collectSales(ctx context.Context, rows *sql.Rows) ([]domain.Sale, error) {
	defer rows.Close()

	var sales []domain.Sale
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.CustomerName, &sale.Total, &sale.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sales {
		items, err := s.loadSaleItems(ctx, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Items = items
	}
	return sales, nil
}

func (s *Store) CountSales(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sales: %w", err)
	}
	return n, nil
}
