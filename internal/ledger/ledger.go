// Package ledger tracks per-variant stock balances. All mutations go
// through reserve/release pairs so a balance can never go negative.
package ledger

import (
	"context"
	"fmt"
	"slices"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
)

type StockLedger struct {
	repo store.Repository
}

func New(repo store.Repository) *StockLedger {
	return &StockLedger{repo: repo}
}

// CheckAndReserve atomically takes qty units from the variant's balance.
// The check and the decrement are one step in the repository, so two
// concurrent reservations for the last units cannot both succeed.
func (l *StockLedger) CheckAndReserve(ctx context.Context, ref domain.VariantRef, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("reserve %s/%s: %w", ref.ProductID, ref.VariantID, store.ErrInvalidQuantity)
	}
	_, err := l.repo.TryDecrementStock(ctx, ref.ProductID, ref.VariantID, qty)
	return err
}

// Release returns qty units to the variant's balance. It is the undo of a
// successful CheckAndReserve.
func (l *StockLedger) Release(ctx context.Context, ref domain.VariantRef, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("release %s/%s: %w", ref.ProductID, ref.VariantID, store.ErrInvalidQuantity)
	}
	return l.repo.IncrementStock(ctx, ref.ProductID, ref.VariantID, qty)
}

// Normalize gives a variantless product a synthetic default variant with
// zero stock and prices mirroring the base price. The second return value
// reports whether anything changed. Products that already have variants
// pass through untouched.
func Normalize(p domain.Product) (domain.Product, bool) {
	if len(p.Variants) > 0 {
		return p, false
	}
	p.Variants = []domain.ProductVariant{{
		ID:             domain.DefaultVariantID,
		PurchasedPrice: p.BasePrice,
		SellingPrice:   p.BasePrice,
		Stock:          0,
	}}
	return p, true
}

// EnsureNormalized normalizes the product and persists the synthetic
// variant when one was created, so the shape change survives restarts.
func (l *StockLedger) EnsureNormalized(ctx context.Context, p domain.Product) (domain.Product, error) {
	np, changed := Normalize(p)
	if !changed {
		return np, nil
	}
	if err := l.repo.SaveVariants(ctx, np.ID, slices.Clone(np.Variants)); err != nil {
		return domain.Product{}, fmt.Errorf("persist default variant for %s: %w", np.ID, err)
	}
	return np, nil
}
