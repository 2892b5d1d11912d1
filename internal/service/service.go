// Package service holds the business rules: catalog management and the
// sale transaction flow.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/ledger"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/xid"
)

type Service struct {
	repo   store.Repository
	ledger *ledger.StockLedger
	loc    *time.Location
	log    zerolog.Logger
}

func New(repo store.Repository, lg *ledger.StockLedger, loc *time.Location, log zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, ledger: lg, loc: loc, log: log}
}

// reservation is one planned stock decrement of the commit phase.
type reservation struct {
	ref domain.VariantRef
	qty int
}

// CreateSale runs in two phases. Validation resolves every line against the
// catalog and snapshots prices without touching stock. Commit then reserves
// stock line by line; if any reservation is refused, the ones already
// applied are released and the sale is rejected whole. A sale is never
// partially applied.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (*domain.Sale, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("sale needs at least one item: %w", store.ErrInvalidQuantity)
	}

	items := make([]domain.SaleLineItem, 0, len(req.Items))
	plan := make([]reservation, 0, len(req.Items))
	total := decimal.Zero

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item %d: %w", i, store.ErrInvalidQuantity)
		}
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item %d product %s: %w", i, item.ProductID, err)
		}
		normalized, err := s.ledger.EnsureNormalized(ctx, *product)
		if err != nil {
			return nil, err
		}

		// An omitted variant id resolves to the product's first variant,
		// which is the synthetic default for variantless products.
		variantID := item.VariantID
		if variantID == "" {
			variantID = normalized.Variants[0].ID
		}
		variant, ok := findVariant(normalized, variantID)
		if !ok {
			return nil, fmt.Errorf("item %d variant %s/%s: %w", i, item.ProductID, variantID, store.ErrNotFound)
		}
		if variant.Stock < item.Quantity {
			return nil, &store.InsufficientStockError{
				ProductID: item.ProductID,
				VariantID: variantID,
				Available: variant.Stock,
				Requested: item.Quantity,
			}
		}

		qty := decimal.NewFromInt(int64(item.Quantity))
		items = append(items, domain.SaleLineItem{
			ProductID:   normalized.ID,
			ProductName: normalized.Name,
			VariantID:   variantID,
			Quantity:    item.Quantity,
			UnitPrice:   variant.SellingPrice,
			LineTotal:   variant.SellingPrice.Mul(qty),
		})
		plan = append(plan, reservation{
			ref: domain.VariantRef{ProductID: item.ProductID, VariantID: variantID},
			qty: item.Quantity,
		})
		total = total.Add(variant.SellingPrice.Mul(qty))
	}

	// Commit phase. The validation read above is only advisory; the
	// reservations here are the authoritative stock check.
	applied := make([]reservation, 0, len(plan))
	for _, r := range plan {
		if err := s.ledger.CheckAndReserve(ctx, r.ref, r.qty); err != nil {
			s.rollback(ctx, applied)
			return nil, err
		}
		applied = append(applied, r)
	}

	sale := &domain.Sale{
		ID:           xid.New("sale"),
		Items:        items,
		Total:        total,
		CustomerName: req.CustomerName,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateSale(ctx, sale); err != nil {
		rbErr := s.rollback(ctx, applied)
		s.log.Error().Err(err).Str("sale_id", sale.ID).Msg("sale persist failed, stock released")
		return nil, &store.CommitError{SaleID: sale.ID, Err: err, RollbackErr: rbErr}
	}

	s.log.Info().Str("sale_id", sale.ID).Int("items", len(sale.Items)).
		Str("total", sale.Total.String()).Msg("sale committed")
	return sale, nil
}

// rollback releases reservations in reverse order and reports the first
// failure without stopping.
func (s *Service) rollback(ctx context.Context, applied []reservation) error {
	var first error
	for i := len(applied) - 1; i >= 0; i-- {
		r := applied[i]
		if err := s.ledger.Release(ctx, r.ref, r.qty); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func findVariant(p domain.Product, variantID string) (domain.ProductVariant, bool) {
	for _, v := range p.Variants {
		if v.ID == variantID {
			return v, true
		}
	}
	return domain.ProductVariant{}, false
}

func (s *Service) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func (s *Service) RecentSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.repo.ListRecentSales(ctx, limit)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("product name is required: %w", store.ErrInvalidRecord)
	}
	if !req.BasePrice.IsPositive() {
		return nil, fmt.Errorf("base price must be positive: %w", store.ErrInvalidRecord)
	}
	for _, v := range req.Variants {
		if v.ID == "" {
			return nil, fmt.Errorf("variant id is required: %w", store.ErrInvalidRecord)
		}
		if v.Stock < 0 {
			return nil, fmt.Errorf("variant %s stock must not be negative: %w", v.ID, store.ErrInvalidRecord)
		}
		if !v.SellingPrice.IsPositive() || !v.PurchasedPrice.IsPositive() {
			return nil, fmt.Errorf("variant %s prices must be positive: %w", v.ID, store.ErrInvalidRecord)
		}
	}

	p := domain.Product{
		ID:         xid.New("prd"),
		Name:       req.Name,
		CategoryID: req.CategoryID,
		BasePrice:  req.BasePrice,
		Variants:   req.Variants,
		CreatedAt:  time.Now().UTC(),
	}
	p, _ = ledger.Normalize(p)
	if err := s.repo.CreateProduct(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, fmt.Errorf("product name is required: %w", store.ErrInvalidRecord)
		}
		p.Name = *req.Name
	}
	if req.CategoryID != nil {
		p.CategoryID = *req.CategoryID
	}
	if req.BasePrice != nil {
		if !req.BasePrice.IsPositive() {
			return nil, fmt.Errorf("base price must be positive: %w", store.ErrInvalidRecord)
		}
		p.BasePrice = *req.BasePrice
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	np, err := s.ledger.EnsureNormalized(ctx, *p)
	if err != nil {
		return nil, err
	}
	return &np, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		np, err := s.ledger.EnsureNormalized(ctx, products[i])
		if err != nil {
			return nil, err
		}
		products[i] = np
	}
	return products, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.DeleteProduct(ctx, id)
}

// RestockVariant adds qty units of inventory to a variant. An omitted
// variant id targets the product's first variant.
func (s *Service) RestockVariant(ctx context.Context, ref domain.VariantRef, qty int) error {
	p, err := s.repo.GetProduct(ctx, ref.ProductID)
	if err != nil {
		return err
	}
	normalized, err := s.ledger.EnsureNormalized(ctx, *p)
	if err != nil {
		return err
	}
	if ref.VariantID == "" {
		ref.VariantID = normalized.Variants[0].ID
	}
	return s.ledger.Release(ctx, ref, qty)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (*domain.Category, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("category name is required: %w", store.ErrInvalidRecord)
	}
	c := domain.Category{
		ID:        xid.New("cat"),
		Name:      req.Name,
		ParentID:  req.ParentID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateCategory(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.repo.DeleteCategory(ctx, id)
}
