package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/store/memory"
)

func seedVariant(t *testing.T, repo *memory.Store, productID string, stock int) domain.VariantRef {
	t.Helper()
	p := &domain.Product{
		ID:        productID,
		Name:      "Product " + productID,
		BasePrice: decimal.NewFromInt(5),
		Variants: []domain.ProductVariant{
			{ID: "std", SellingPrice: decimal.NewFromInt(5), Stock: stock},
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return domain.VariantRef{ProductID: productID, VariantID: "std"}
}

func stockOf(t *testing.T, repo *memory.Store, ref domain.VariantRef) int {
	t.Helper()
	p, err := repo.GetProduct(context.Background(), ref.ProductID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	for _, v := range p.Variants {
		if v.ID == ref.VariantID {
			return v.Stock
		}
	}
	t.Fatalf("variant %v not found", ref)
	return 0
}

func TestReserveAndRelease(t *testing.T) {
	repo := memory.New()
	ref := seedVariant(t, repo, "p1", 10)
	l := New(repo)

	if err := l.CheckAndReserve(context.Background(), ref, 4); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := stockOf(t, repo, ref); got != 6 {
		t.Fatalf("stock = %d, want 6", got)
	}
	if err := l.Release(context.Background(), ref, 4); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := stockOf(t, repo, ref); got != 10 {
		t.Fatalf("stock = %d, want 10", got)
	}
}

func TestReserveRefusesOverdraw(t *testing.T) {
	repo := memory.New()
	ref := seedVariant(t, repo, "p1", 3)
	l := New(repo)

	err := l.CheckAndReserve(context.Background(), ref, 4)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	var ise *store.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("err = %T, want *InsufficientStockError", err)
	}
	if ise.Available != 3 || ise.Requested != 4 {
		t.Fatalf("available/requested = %d/%d, want 3/4", ise.Available, ise.Requested)
	}
	if got := stockOf(t, repo, ref); got != 3 {
		t.Fatalf("stock = %d, want 3 untouched", got)
	}
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	repo := memory.New()
	ref := seedVariant(t, repo, "p1", 3)
	l := New(repo)

	for _, qty := range []int{0, -1} {
		if err := l.CheckAndReserve(context.Background(), ref, qty); !errors.Is(err, store.ErrInvalidQuantity) {
			t.Fatalf("qty %d: err = %v, want ErrInvalidQuantity", qty, err)
		}
		if err := l.Release(context.Background(), ref, qty); !errors.Is(err, store.ErrInvalidQuantity) {
			t.Fatalf("release qty %d: err = %v, want ErrInvalidQuantity", qty, err)
		}
	}
}

func TestReserveUnknownVariant(t *testing.T) {
	repo := memory.New()
	seedVariant(t, repo, "p1", 3)
	l := New(repo)

	err := l.CheckAndReserve(context.Background(), domain.VariantRef{ProductID: "p1", VariantID: "xl"}, 1)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentReservesNeverGoNegative(t *testing.T) {
	repo := memory.New()
	ref := seedVariant(t, repo, "p1", 10)
	l := New(repo)

	const workers = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.CheckAndReserve(context.Background(), ref, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("succeeded = %d, want exactly 10", succeeded)
	}
	if got := stockOf(t, repo, ref); got != 0 {
		t.Fatalf("stock = %d, want 0", got)
	}
}

func TestNormalize(t *testing.T) {
	base := decimal.RequireFromString("7.50")
	p := domain.Product{ID: "p1", Name: "Bare", BasePrice: base}

	np, changed := Normalize(p)
	if !changed {
		t.Fatal("expected normalization to report a change")
	}
	if len(np.Variants) != 1 {
		t.Fatalf("variants = %d, want 1", len(np.Variants))
	}
	v := np.Variants[0]
	if v.ID != domain.DefaultVariantID {
		t.Fatalf("variant id = %s, want %s", v.ID, domain.DefaultVariantID)
	}
	if v.Stock != 0 {
		t.Fatalf("stock = %d, want 0", v.Stock)
	}
	if !v.SellingPrice.Equal(base) || !v.PurchasedPrice.Equal(base) {
		t.Fatalf("prices = %s/%s, want base price %s", v.SellingPrice, v.PurchasedPrice, base)
	}

	// Idempotent: a second pass changes nothing.
	again, changed := Normalize(np)
	if changed {
		t.Fatal("second normalization reported a change")
	}
	if len(again.Variants) != 1 {
		t.Fatalf("variants after second pass = %d, want 1", len(again.Variants))
	}
}

func TestNormalizeLeavesRealVariantsAlone(t *testing.T) {
	p := domain.Product{
		ID: "p1", Name: "With Variants", BasePrice: decimal.NewFromInt(3),
		Variants: []domain.ProductVariant{
			{ID: "small", SellingPrice: decimal.NewFromInt(3), Stock: 2},
		},
	}
	np, changed := Normalize(p)
	if changed {
		t.Fatal("normalization changed a product that has variants")
	}
	if len(np.Variants) != 1 || np.Variants[0].ID != "small" {
		t.Fatalf("variants = %+v, want untouched", np.Variants)
	}
}

func TestEnsureNormalizedPersists(t *testing.T) {
	repo := memory.New()
	p := &domain.Product{
		ID:        "bare",
		Name:      "Bare",
		BasePrice: decimal.NewFromInt(4),
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateProduct(context.Background(), p); err != nil {
		t.Fatalf("seed: %v", err)
	}
	l := New(repo)

	np, err := l.EnsureNormalized(context.Background(), *p)
	if err != nil {
		t.Fatalf("ensure normalized: %v", err)
	}
	if len(np.Variants) != 1 {
		t.Fatalf("variants = %d, want 1", len(np.Variants))
	}

	stored, err := repo.GetProduct(context.Background(), "bare")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(stored.Variants) != 1 || stored.Variants[0].ID != domain.DefaultVariantID {
		t.Fatalf("stored variants = %+v, want persisted default variant", stored.Variants)
	}
}
