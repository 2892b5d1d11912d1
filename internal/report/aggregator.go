// Package report computes sales aggregates over committed sales.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"salepoint/backend/internal/cache"
	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
)

const dateLayout = "2006-01-02"

const overviewCacheKey = "report:overview"

type Aggregator struct {
	repo  store.Repository
	cache cache.ReportCache
	ttl   time.Duration
	loc   *time.Location
	log   zerolog.Logger
}

func NewAggregator(repo store.Repository, c cache.ReportCache, ttl time.Duration, loc *time.Location, log zerolog.Logger) *Aggregator {
	if c == nil {
		c = cache.NoopReportCache{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{repo: repo, cache: c, ttl: ttl, loc: loc, log: log}
}

// Overview aggregates all sales ever committed. The result is cached for a
// short TTL; cache failures only cost a recompute.
func (a *Aggregator) Overview(ctx context.Context) (*domain.SalesOverview, error) {
	if cached, err := a.cache.GetOverview(ctx, overviewCacheKey); err != nil {
		a.log.Warn().Err(err).Msg("overview cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	sales, err := a.repo.ListAllSales(ctx, true)
	if err != nil {
		return nil, err
	}
	productCount, err := a.repo.CountProducts(ctx)
	if err != nil {
		return nil, err
	}

	count, revenue := sumSales(sales)
	overview := &domain.SalesOverview{
		TotalSales:        count,
		TotalRevenue:      revenue,
		AverageOrderValue: averageOrder(count, revenue),
		TotalProducts:     productCount,
	}

	if err := a.cache.SetOverview(ctx, overviewCacheKey, overview, a.ttl); err != nil {
		a.log.Warn().Err(err).Msg("overview cache write failed")
	}
	return overview, nil
}

// Daily aggregates the sales of one calendar day, date in "2006-01-02".
func (a *Aggregator) Daily(ctx context.Context, date string) (*domain.DailySalesReport, error) {
	day, err := time.ParseInLocation(dateLayout, date, a.loc)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, store.ErrInvalidDateRange)
	}

	sales, err := a.repo.ListSales(ctx, day, day.AddDate(0, 0, 1), true)
	if err != nil {
		return nil, err
	}
	count, revenue := sumSales(sales)
	return &domain.DailySalesReport{
		Date:              date,
		TotalSales:        count,
		TotalRevenue:      revenue,
		AverageOrderValue: averageOrder(count, revenue),
	}, nil
}

// Monthly aggregates one calendar month and returns a dense per-day series:
// DailyStats has exactly one entry per day of the month, zero-filled for
// days without sales.
func (a *Aggregator) Monthly(ctx context.Context, month, year int) (*domain.MonthlySalesReport, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month %d out of range: %w", month, store.ErrInvalidDateRange)
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, a.loc)
	next := first.AddDate(0, 1, 0)
	// Count days off the calendar, not elapsed hours, so DST-shifting
	// months keep one bucket per day.
	days := next.AddDate(0, 0, -1).Day()

	sales, err := a.repo.ListSales(ctx, first, next, true)
	if err != nil {
		return nil, err
	}

	stats := make([]domain.DailyStat, days)
	for i := range stats {
		stats[i] = domain.DailyStat{
			Date:    first.AddDate(0, 0, i).Format(dateLayout),
			Revenue: decimal.Zero,
		}
	}
	for _, s := range sales {
		day := s.CreatedAt.In(a.loc).Day() - 1
		stats[day].Sales++
		stats[day].Revenue = stats[day].Revenue.Add(s.Total)
	}

	count, revenue := sumSales(sales)
	return &domain.MonthlySalesReport{
		Month:             month,
		Year:              year,
		TotalSales:        count,
		TotalRevenue:      revenue,
		AverageOrderValue: averageOrder(count, revenue),
		DailyStats:        stats,
	}, nil
}

// ProductReport aggregates quantity and revenue per product across all
// sales, ordered by revenue descending. Products with equal revenue keep
// the order they were first sold in.
func (a *Aggregator) ProductReport(ctx context.Context) (*domain.ProductSalesReport, error) {
	sales, err := a.repo.ListAllSales(ctx, true)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	products := make([]domain.ProductSales, 0)
	for _, s := range sales {
		for _, it := range s.Items {
			i, ok := index[it.ProductID]
			if !ok {
				i = len(products)
				index[it.ProductID] = i
				products = append(products, domain.ProductSales{
					ProductID:    it.ProductID,
					ProductName:  it.ProductName,
					TotalRevenue: decimal.Zero,
				})
			}
			products[i].TotalQuantitySold += int64(it.Quantity)
			products[i].TotalRevenue = products[i].TotalRevenue.Add(it.LineTotal)
		}
	}

	for i := range products {
		if products[i].TotalQuantitySold > 0 {
			qty := decimal.NewFromInt(products[i].TotalQuantitySold)
			products[i].AveragePrice = products[i].TotalRevenue.Div(qty).Round(2)
		}
	}

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].TotalRevenue.Cmp(products[j].TotalRevenue) > 0
	})
	return &domain.ProductSalesReport{Products: products}, nil
}

// ByDateRange aggregates sales between two dates inclusive, both in
// "2006-01-02".
func (a *Aggregator) ByDateRange(ctx context.Context, start, end string) (*domain.RangeSalesReport, error) {
	from, err := time.ParseInLocation(dateLayout, start, a.loc)
	if err != nil {
		return nil, fmt.Errorf("parse start %q: %w", start, store.ErrInvalidDateRange)
	}
	to, err := time.ParseInLocation(dateLayout, end, a.loc)
	if err != nil {
		return nil, fmt.Errorf("parse end %q: %w", end, store.ErrInvalidDateRange)
	}
	if from.After(to) {
		return nil, fmt.Errorf("start %s is after end %s: %w", start, end, store.ErrInvalidDateRange)
	}

	sales, err := a.repo.ListSales(ctx, from, to.AddDate(0, 0, 1), true)
	if err != nil {
		return nil, err
	}
	count, revenue := sumSales(sales)
	return &domain.RangeSalesReport{
		Start:             start,
		End:               end,
		TotalSales:        count,
		TotalRevenue:      revenue,
		AverageOrderValue: averageOrder(count, revenue),
	}, nil
}

func sumSales(sales []domain.Sale) (int64, decimal.Decimal) {
	revenue := decimal.Zero
	for _, s := range sales {
		revenue = revenue.Add(s.Total)
	}
	return int64(len(sales)), revenue
}

// averageOrder is zero when there are no sales, never a division error.
func averageOrder(count int64, revenue decimal.Decimal) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return revenue.Div(decimal.NewFromInt(count)).Round(2)
}
