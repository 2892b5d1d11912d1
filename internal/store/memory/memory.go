// Package memory implements store.Repository with in-process maps. It is
// the default backend for tests and local development.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/xid"
)

type Store struct {
	mu         sync.RWMutex
	products   map[string]*domain.Product
	categories map[string]*domain.Category
	sales      map[string]*domain.Sale
}

func New() *Store {
	return &Store{
		products:   make(map[string]*domain.Product),
		categories: make(map[string]*domain.Category),
		sales:      make(map[string]*domain.Sale),
	}
}

// NewSeeded returns a store preloaded with a small retail catalog. Some
// products carry real variants, some none, so callers exercise both paths.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	drinks := &domain.Category{ID: xid.New("cat"), Name: "Drinks", CreatedAt: now}
	snacks := &domain.Category{ID: xid.New("cat"), Name: "Snacks", CreatedAt: now}
	_ = s.CreateCategory(ctx, drinks)
	_ = s.CreateCategory(ctx, snacks)

	seed := []*domain.Product{
		{
			ID:         xid.New("prd"),
			Name:       "Iced Tea",
			CategoryID: drinks.ID,
			BasePrice:  decimal.NewFromInt(3),
			Variants: []domain.ProductVariant{
				{ID: "small", PurchasedPrice: decimal.NewFromInt(1), SellingPrice: decimal.NewFromInt(3), Stock: 40},
				{ID: "large", PurchasedPrice: decimal.NewFromInt(2), SellingPrice: decimal.NewFromInt(5), Stock: 25},
			},
			CreatedAt: now,
		},
		{
			ID:         xid.New("prd"),
			Name:       "Drip Coffee",
			CategoryID: drinks.ID,
			BasePrice:  decimal.RequireFromString("4.50"),
			Variants: []domain.ProductVariant{
				{ID: "hot", PurchasedPrice: decimal.NewFromInt(2), SellingPrice: decimal.RequireFromString("4.50"), Stock: 30},
				{ID: "iced", PurchasedPrice: decimal.NewFromInt(2), SellingPrice: decimal.NewFromInt(5), Stock: 30},
			},
			CreatedAt: now,
		},
		{
			ID:         xid.New("prd"),
			Name:       "Banana Bread",
			CategoryID: snacks.ID,
			BasePrice:  decimal.RequireFromString("2.75"),
			CreatedAt:  now,
		},
		{
			ID:         xid.New("prd"),
			Name:       "Trail Mix",
			CategoryID: snacks.ID,
			BasePrice:  decimal.RequireFromString("6.25"),
			CreatedAt:  now,
		},
	}
	for _, p := range seed {
		_ = s.CreateProduct(ctx, p)
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *cloneProduct(p))
	}
	slices.SortFunc(out, func(a, b domain.Product) int { return cmpString(a.ID, b.ID) })
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (s *Store) CreateProduct(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ID] = cloneProduct(p)
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; !ok {
		return store.ErrNotFound
	}
	s.products[p.ID] = cloneProduct(p)
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) SaveVariants(_ context.Context, productID string, variants []domain.ProductVariant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.Variants = slices.Clone(variants)
	return nil
}

func (s *Store) CountProducts(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.products)), nil
}

func (s *Store) CreateCategory(_ context.Context, c *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cc := *c
	s.categories[c.ID] = &cc
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b domain.Category) int { return cmpString(a.ID, b.ID) })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cc := *c
	return &cc, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

// TryDecrementStock holds the write lock across the check and the
// subtraction, so concurrent callers serialize on the same balance.
func (s *Store) TryDecrementStock(_ context.Context, productID, variantID string, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.findVariant(productID, variantID)
	if err != nil {
		return 0, err
	}
	if v.Stock < qty {
		return v.Stock, &store.InsufficientStockError{
			ProductID: productID,
			VariantID: variantID,
			Available: v.Stock,
			Requested: qty,
		}
	}
	v.Stock -= qty
	return v.Stock, nil
}

func (s *Store) IncrementStock(_ context.Context, productID, variantID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.findVariant(productID, variantID)
	if err != nil {
		return err
	}
	v.Stock += qty
	return nil
}

// findVariant returns a pointer into the live product, caller must hold mu.
func (s *Store) findVariant(productID, variantID string) (*domain.ProductVariant, error) {
	p, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			return &p.Variants[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateSale(_ context.Context, sale *domain.Sale) error {
	if len(sale.Items) == 0 {
		return store.ErrInvalidRecord
	}
	sum := decimal.Zero
	for _, it := range sale.Items {
		if it.Quantity <= 0 {
			return store.ErrInvalidRecord
		}
		sum = sum.Add(it.LineTotal)
	}
	if !sum.Equal(sale.Total) {
		return store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sales[sale.ID] = cloneSale(sale)
	return nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, from, to time.Time, ascending bool) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0)
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		out = append(out, *cloneSale(sale))
	}
	sortSales(out, ascending)
	return out, nil
}

func (s *Store) ListAllSales(_ context.Context, ascending bool) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		out = append(out, *cloneSale(sale))
	}
	sortSales(out, ascending)
	return out, nil
}

func (s *Store) ListRecentSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	all, _ := s.ListAllSales(ctx, false)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) CountSales(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.sales)), nil
}

func sortSales(sales []domain.Sale, ascending bool) {
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) == ascending {
			return -1
		}
		return 1
	})
}

func cloneProduct(p *domain.Product) *domain.Product {
	cp := *p
	cp.Variants = slices.Clone(p.Variants)
	return &cp
}

func cloneSale(s *domain.Sale) *domain.Sale {
	cs := *s
	cs.Items = slices.Clone(s.Items)
	return &cs
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
