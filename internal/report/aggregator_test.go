package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"salepoint/backend/internal/cache"
	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/store/memory"
)

func newTestAggregator(repo store.Repository) *Aggregator {
	return NewAggregator(repo, cache.NoopReportCache{}, time.Minute, time.UTC, zerolog.Nop())
}

var saleSeq int

func addSale(t *testing.T, repo store.Repository, at time.Time, productID, name string, qty int, unitPrice string) {
	t.Helper()
	price := decimal.RequireFromString(unitPrice)
	line := price.Mul(decimal.NewFromInt(int64(qty)))
	saleSeq++
	sale := &domain.Sale{
		ID: fmt.Sprintf("sale-%03d", saleSeq),
		Items: []domain.SaleLineItem{{
			ProductID:   productID,
			ProductName: name,
			VariantID:   domain.DefaultVariantID,
			Quantity:    qty,
			UnitPrice:   price,
			LineTotal:   line,
		}},
		Total:     line,
		CreatedAt: at,
	}
	if err := repo.CreateSale(context.Background(), sale); err != nil {
		t.Fatalf("seed sale: %v", err)
	}
}

func TestOverviewEmpty(t *testing.T) {
	repo := memory.New()
	agg := newTestAggregator(repo)

	overview, err := agg.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.TotalSales != 0 {
		t.Fatalf("total sales = %d, want 0", overview.TotalSales)
	}
	if !overview.TotalRevenue.IsZero() {
		t.Fatalf("revenue = %s, want 0", overview.TotalRevenue)
	}
	// No sales means average order value zero, not a division error.
	if !overview.AverageOrderValue.IsZero() {
		t.Fatalf("aov = %s, want 0", overview.AverageOrderValue)
	}
}

func TestOverviewAggregates(t *testing.T) {
	repo := memory.New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	addSale(t, repo, now, "p1", "Tea", 2, "3.00")
	addSale(t, repo, now.Add(time.Hour), "p2", "Bread", 1, "2.75")
	agg := newTestAggregator(repo)

	overview, err := agg.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.TotalSales != 2 {
		t.Fatalf("total sales = %d, want 2", overview.TotalSales)
	}
	if want := decimal.RequireFromString("8.75"); !overview.TotalRevenue.Equal(want) {
		t.Fatalf("revenue = %s, want %s", overview.TotalRevenue, want)
	}
	if want := decimal.RequireFromString("4.38"); !overview.AverageOrderValue.Equal(want) {
		t.Fatalf("aov = %s, want %s", overview.AverageOrderValue, want)
	}
}

func TestDailyFiltersByDay(t *testing.T) {
	repo := memory.New()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	addSale(t, repo, day.Add(1*time.Minute), "p1", "Tea", 1, "3.00")
	addSale(t, repo, day.Add(23*time.Hour+59*time.Minute), "p1", "Tea", 1, "3.00")
	addSale(t, repo, day.Add(24*time.Hour), "p1", "Tea", 1, "3.00") // next day
	addSale(t, repo, day.Add(-time.Minute), "p1", "Tea", 1, "3.00") // previous day
	agg := newTestAggregator(repo)

	report, err := agg.Daily(context.Background(), "2026-03-10")
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if report.TotalSales != 2 {
		t.Fatalf("total sales = %d, want 2", report.TotalSales)
	}
	if want := decimal.RequireFromString("6.00"); !report.TotalRevenue.Equal(want) {
		t.Fatalf("revenue = %s, want %s", report.TotalRevenue, want)
	}
}

func TestDailyRejectsBadDate(t *testing.T) {
	agg := newTestAggregator(memory.New())
	_, err := agg.Daily(context.Background(), "10/03/2026")
	if !errors.Is(err, store.ErrInvalidDateRange) {
		t.Fatalf("err = %v, want ErrInvalidDateRange", err)
	}
}

func TestMonthlyDenseSeries(t *testing.T) {
	cases := []struct {
		month, year, days int
	}{
		{2, 2024, 29},
		{2, 2023, 28},
		{4, 2026, 30},
		{12, 2026, 31},
	}
	for _, tc := range cases {
		agg := newTestAggregator(memory.New())
		report, err := agg.Monthly(context.Background(), tc.month, tc.year)
		if err != nil {
			t.Fatalf("%d/%d: %v", tc.month, tc.year, err)
		}
		if len(report.DailyStats) != tc.days {
			t.Fatalf("%d/%d: daily stats = %d, want %d", tc.month, tc.year, len(report.DailyStats), tc.days)
		}
		for _, stat := range report.DailyStats {
			if stat.Sales != 0 || !stat.Revenue.IsZero() {
				t.Fatalf("%d/%d: empty month has nonzero day %+v", tc.month, tc.year, stat)
			}
		}
	}
}

func TestMonthlyBucketsByDay(t *testing.T) {
	repo := memory.New()
	addSale(t, repo, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), "p1", "Tea", 1, "3.00")
	addSale(t, repo, time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC), "p1", "Tea", 2, "3.00")
	addSale(t, repo, time.Date(2026, 3, 15, 17, 0, 0, 0, time.UTC), "p1", "Tea", 1, "3.00")
	addSale(t, repo, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), "p1", "Tea", 1, "3.00") // next month
	agg := newTestAggregator(repo)

	report, err := agg.Monthly(context.Background(), 3, 2026)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if report.TotalSales != 3 {
		t.Fatalf("total sales = %d, want 3", report.TotalSales)
	}
	if len(report.DailyStats) != 31 {
		t.Fatalf("daily stats = %d, want 31", len(report.DailyStats))
	}
	if report.DailyStats[0].Date != "2026-03-01" || report.DailyStats[0].Sales != 1 {
		t.Fatalf("day 1 = %+v, want 1 sale on 2026-03-01", report.DailyStats[0])
	}
	day15 := report.DailyStats[14]
	if day15.Sales != 2 {
		t.Fatalf("day 15 sales = %d, want 2", day15.Sales)
	}
	if want := decimal.RequireFromString("9.00"); !day15.Revenue.Equal(want) {
		t.Fatalf("day 15 revenue = %s, want %s", day15.Revenue, want)
	}
	if report.DailyStats[1].Sales != 0 {
		t.Fatalf("day 2 sales = %d, want 0", report.DailyStats[1].Sales)
	}
}

func TestMonthlyDenseSeriesAcrossDSTShifts(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	repo := memory.New()
	// March 2026 springs forward, so the month is short of 31*24 hours.
	addSale(t, repo, time.Date(2026, 3, 31, 12, 0, 0, 0, loc), "p1", "Tea", 1, "3.00")
	agg := NewAggregator(repo, cache.NoopReportCache{}, time.Minute, loc, zerolog.Nop())

	report, err := agg.Monthly(context.Background(), 3, 2026)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if len(report.DailyStats) != 31 {
		t.Fatalf("daily stats = %d, want 31", len(report.DailyStats))
	}
	last := report.DailyStats[30]
	if last.Date != "2026-03-31" || last.Sales != 1 {
		t.Fatalf("last day = %+v, want 1 sale on 2026-03-31", last)
	}

	// November falls back and must still have exactly 30 buckets.
	report, err = agg.Monthly(context.Background(), 11, 2026)
	if err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if len(report.DailyStats) != 30 {
		t.Fatalf("november daily stats = %d, want 30", len(report.DailyStats))
	}
}

func TestMonthlyRejectsBadMonth(t *testing.T) {
	agg := newTestAggregator(memory.New())
	for _, m := range []int{0, 13} {
		if _, err := agg.Monthly(context.Background(), m, 2026); !errors.Is(err, store.ErrInvalidDateRange) {
			t.Fatalf("month %d: err = %v, want ErrInvalidDateRange", m, err)
		}
	}
}

func TestProductReportOrdering(t *testing.T) {
	repo := memory.New()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	// p1 first sold, revenue 6. p2 revenue 20. p3 revenue 6, sold after p1.
	addSale(t, repo, base, "p1", "Tea", 2, "3.00")
	addSale(t, repo, base.Add(time.Minute), "p2", "Coffee", 4, "5.00")
	addSale(t, repo, base.Add(2*time.Minute), "p3", "Bread", 3, "2.00")
	agg := newTestAggregator(repo)

	report, err := agg.ProductReport(context.Background())
	if err != nil {
		t.Fatalf("product report: %v", err)
	}
	if len(report.Products) != 3 {
		t.Fatalf("products = %d, want 3", len(report.Products))
	}
	if report.Products[0].ProductID != "p2" {
		t.Fatalf("top product = %s, want p2", report.Products[0].ProductID)
	}
	// Revenue tie between p1 and p3: first-sold wins.
	if report.Products[1].ProductID != "p1" || report.Products[2].ProductID != "p3" {
		t.Fatalf("tie order = %s, %s, want p1, p3",
			report.Products[1].ProductID, report.Products[2].ProductID)
	}
	if report.Products[0].TotalQuantitySold != 4 {
		t.Fatalf("p2 quantity = %d, want 4", report.Products[0].TotalQuantitySold)
	}
	if want := decimal.RequireFromString("5.00"); !report.Products[0].AveragePrice.Equal(want) {
		t.Fatalf("p2 average price = %s, want %s", report.Products[0].AveragePrice, want)
	}
}

func TestProductReportAccumulatesAcrossSales(t *testing.T) {
	repo := memory.New()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	addSale(t, repo, base, "p1", "Tea", 1, "3.00")
	addSale(t, repo, base.Add(time.Hour), "p1", "Tea", 2, "4.50")
	agg := newTestAggregator(repo)

	report, err := agg.ProductReport(context.Background())
	if err != nil {
		t.Fatalf("product report: %v", err)
	}
	p := report.Products[0]
	if p.TotalQuantitySold != 3 {
		t.Fatalf("quantity = %d, want 3", p.TotalQuantitySold)
	}
	if want := decimal.RequireFromString("12.00"); !p.TotalRevenue.Equal(want) {
		t.Fatalf("revenue = %s, want %s", p.TotalRevenue, want)
	}
	// 12.00 / 3 units.
	if want := decimal.RequireFromString("4.00"); !p.AveragePrice.Equal(want) {
		t.Fatalf("average price = %s, want %s", p.AveragePrice, want)
	}
}

func TestByDateRangeInclusive(t *testing.T) {
	repo := memory.New()
	addSale(t, repo, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), "p1", "Tea", 1, "3.00")
	addSale(t, repo, time.Date(2026, 6, 3, 23, 59, 0, 0, time.UTC), "p1", "Tea", 1, "3.00")
	addSale(t, repo, time.Date(2026, 6, 4, 0, 0, 0, 0, time.UTC), "p1", "Tea", 1, "3.00")
	agg := newTestAggregator(repo)

	report, err := agg.ByDateRange(context.Background(), "2026-06-01", "2026-06-03")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	// Both endpoint days count, the day after the end does not.
	if report.TotalSales != 2 {
		t.Fatalf("total sales = %d, want 2", report.TotalSales)
	}
}

func TestByDateRangeSingleDay(t *testing.T) {
	repo := memory.New()
	addSale(t, repo, time.Date(2026, 6, 2, 12, 0, 0, 0, time.UTC), "p1", "Tea", 1, "3.00")
	agg := newTestAggregator(repo)

	report, err := agg.ByDateRange(context.Background(), "2026-06-02", "2026-06-02")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if report.TotalSales != 1 {
		t.Fatalf("total sales = %d, want 1", report.TotalSales)
	}
}

func TestByDateRangeRejectsReversedBounds(t *testing.T) {
	agg := newTestAggregator(memory.New())
	_, err := agg.ByDateRange(context.Background(), "2026-06-03", "2026-06-01")
	if !errors.Is(err, store.ErrInvalidDateRange) {
		t.Fatalf("err = %v, want ErrInvalidDateRange", err)
	}
}

// recordingCache counts hits and misses around the real overview flow.
type recordingCache struct {
	stored *domain.SalesOverview
	gets   int
	sets   int
}

func (c *recordingCache) GetOverview(context.Context, string) (*domain.SalesOverview, error) {
	c.gets++
	return c.stored, nil
}

func (c *recordingCache) SetOverview(_ context.Context, _ string, o *domain.SalesOverview, _ time.Duration) error {
	c.sets++
	c.stored = o
	return nil
}

func (c *recordingCache) Close() error { return nil }

func TestOverviewUsesCache(t *testing.T) {
	repo := memory.New()
	addSale(t, repo, time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC), "p1", "Tea", 1, "3.00")
	rc := &recordingCache{}
	agg := NewAggregator(repo, rc, time.Minute, time.UTC, zerolog.Nop())

	first, err := agg.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if rc.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", rc.sets)
	}

	second, err := agg.Overview(context.Background())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if rc.gets != 2 || rc.sets != 1 {
		t.Fatalf("gets/sets = %d/%d, want 2/1", rc.gets, rc.sets)
	}
	if second.TotalSales != first.TotalSales {
		t.Fatalf("cached overview differs: %+v vs %+v", second, first)
	}
}
