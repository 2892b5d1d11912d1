package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salepoint/backend/internal/domain"
)

var (
	// ErrNotFound is returned when a product, variant, category or sale
	// does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientStock is returned when a decrement would push a
	// variant's stock below zero. Use errors.Is against it; the concrete
	// value is usually an *InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidQuantity is returned for zero or negative quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInvalidDateRange is returned when a report range ends before it
	// starts or a date fails to parse.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrCommitFailed is returned when a validated sale could not be
	// persisted. Reserved stock has been released by then.
	ErrCommitFailed = errors.New("sale commit failed")

	// ErrInvalidRecord is returned when a write fails internal
	// consistency checks, for example a sale whose total does not match
	// its line items.
	ErrInvalidRecord = errors.New("invalid record")
)

// InsufficientStockError reports how much stock was available when a
// reservation was refused. It unwraps to ErrInsufficientStock.
type InsufficientStockError struct {
	ProductID string
	VariantID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s/%s: available %d, requested %d",
		e.ProductID, e.VariantID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// CommitError wraps the persistence failure behind ErrCommitFailed. If the
// compensating stock release also failed, RollbackErr records it.
type CommitError struct {
	SaleID      string
	Err         error
	RollbackErr error
}

func (e *CommitError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("sale %s commit failed: %v (rollback also failed: %v)", e.SaleID, e.Err, e.RollbackErr)
	}
	return fmt.Sprintf("sale %s commit failed: %v", e.SaleID, e.Err)
}

func (e *CommitError) Unwrap() []error { return []error{ErrCommitFailed, e.Err} }

// Repository is the persistence boundary. Implementations must make
// TryDecrementStock atomic per variant: the check and the decrement happen
// as one step, so concurrent sales can never drive stock negative.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	// SaveVariants replaces the variant set of a product.
	SaveVariants(ctx context.Context, productID string, variants []domain.ProductVariant) error
	CountProducts(ctx context.Context) (int64, error)

	CreateCategory(ctx context.Context, c *domain.Category) error
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	// TryDecrementStock subtracts qty from the variant's stock if at least
	// qty is available, returning the remaining stock. On refusal it
	// returns the current stock and an error wrapping
	// ErrInsufficientStock.
	TryDecrementStock(ctx context.Context, productID, variantID string, qty int) (int, error)
	// IncrementStock adds qty back, e.g. when a sale is rolled back.
	IncrementStock(ctx context.Context, productID, variantID string, qty int) error

	CreateSale(ctx context.Context, s *domain.Sale) error
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	// ListSales returns sales with from <= CreatedAt < to.
	ListSales(ctx context.Context, from, to time.Time, ascending bool) ([]domain.Sale, error)
	ListAllSales(ctx context.Context, ascending bool) ([]domain.Sale, error)
	ListRecentSales(ctx context.Context, limit int) ([]domain.Sale, error)
	CountSales(ctx context.Context) (int64, error)
}
