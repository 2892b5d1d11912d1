package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultVariantID is the id of the synthetic variant created for products
// declared without variants. Its stock starts at zero and its prices mirror
// the product base price.
const DefaultVariantID = "default"

type ProductVariant struct {
	ID             string          `json:"id"`
	PurchasedPrice decimal.Decimal `json:"purchased_price"`
	SellingPrice   decimal.Decimal `json:"selling_price"`
	Stock          int             `json:"stock"`
}

type Product struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	CategoryID string           `json:"category_id,omitempty"`
	BasePrice  decimal.Decimal  `json:"base_price"`
	Variants   []ProductVariant `json:"variants"`
	CreatedAt  time.Time        `json:"created_at"`
}

type ProductCreateRequest struct {
	Name       string           `json:"name"`
	CategoryID string           `json:"category_id,omitempty"`
	BasePrice  decimal.Decimal  `json:"base_price"`
	Variants   []ProductVariant `json:"variants,omitempty"`
}

type ProductUpdateRequest struct {
	Name       *string          `json:"name,omitempty"`
	CategoryID *string          `json:"category_id,omitempty"`
	BasePrice  *decimal.Decimal `json:"base_price,omitempty"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryCreateRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

// VariantRef addresses one variant's stock balance.
type VariantRef struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
}

type SaleItemRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type SaleCreateRequest struct {
	CustomerName string            `json:"customer_name,omitempty"`
	Items        []SaleItemRequest `json:"items"`
}

// SaleLineItem carries the price snapshot taken at sale time. UnitPrice is
// authoritative once the sale is committed; later catalog price changes do
// not touch it.
type SaleLineItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	VariantID   string          `json:"variant_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Sale is immutable once created. Items keep the caller's insertion order and
// Total is always the exact sum of the line totals.
type Sale struct {
	ID           string          `json:"id"`
	Items        []SaleLineItem  `json:"items"`
	Total        decimal.Decimal `json:"total"`
	CustomerName string          `json:"customer_name,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type SalesOverview struct {
	TotalSales        int64           `json:"total_sales"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	TotalProducts     int64           `json:"total_products"`
}

type DailySalesReport struct {
	Date              string          `json:"date"`
	TotalSales        int64           `json:"total_sales"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

type DailyStat struct {
	Date    string          `json:"date"`
	Sales   int64           `json:"sales"`
	Revenue decimal.Decimal `json:"revenue"`
}

type MonthlySalesReport struct {
	Month             int             `json:"month"`
	Year              int             `json:"year"`
	TotalSales        int64           `json:"total_sales"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	DailyStats        []DailyStat     `json:"daily_stats"`
}

type ProductSales struct {
	ProductID         string          `json:"product_id"`
	ProductName       string          `json:"product_name"`
	TotalQuantitySold int64           `json:"total_quantity_sold"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AveragePrice      decimal.Decimal `json:"average_price"`
}

type ProductSalesReport struct {
	Products []ProductSales `json:"products"`
}

type RangeSalesReport struct {
	Start             string          `json:"start"`
	End               string          `json:"end"`
	TotalSales        int64           `json:"total_sales"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}
