// Command salesreport prints sales aggregates as JSON. It reads the same
// environment configuration as the rest of the backend and falls back to a
// seeded in-memory catalog when DATABASE_URL is not set.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"salepoint/backend/internal/cache"
	"salepoint/backend/internal/config"
	"salepoint/backend/internal/ledger"
	"salepoint/backend/internal/logging"
	"salepoint/backend/internal/report"
	"salepoint/backend/internal/service"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/store/memory"
	"salepoint/backend/internal/store/postgres"
)

func main() {
	var (
		daily    = flag.String("daily", "", "daily report for a date (2006-01-02)")
		month    = flag.Int("month", 0, "monthly report month (1-12), requires -year")
		year     = flag.Int("year", 0, "monthly report year")
		products = flag.Bool("products", false, "per-product sales report")
		start    = flag.String("start", "", "range report start date (2006-01-02)")
		end      = flag.String("end", "", "range report end date (2006-01-02)")
		recent   = flag.Int("recent", 0, "list the n most recent sales")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatal("load config", err)
	}
	log := logging.New(cfg.Env, cfg.LogLevel)
	ctx := context.Background()

	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			fatal("connect postgres", err)
		}
		defer pg.Close()
		repo = pg
	} else {
		log.Info().Msg("DATABASE_URL not set, using seeded in-memory store")
		repo = memory.NewSeeded()
	}

	var reportCache cache.ReportCache = cache.NoopReportCache{}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, reports uncached")
		} else {
			defer rc.Close()
			reportCache = rc
		}
	}

	agg := report.NewAggregator(repo, reportCache, cfg.ReportCacheTTL, cfg.ReportLocation, log)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch {
	case *daily != "":
		out, err := agg.Daily(ctx, *daily)
		if err != nil {
			fatal("daily report", err)
		}
		emit(out)
	case *month != 0 || *year != 0:
		out, err := agg.Monthly(ctx, *month, *year)
		if err != nil {
			fatal("monthly report", err)
		}
		emit(out)
	case *products:
		out, err := agg.ProductReport(ctx)
		if err != nil {
			fatal("product report", err)
		}
		emit(out)
	case *start != "" || *end != "":
		out, err := agg.ByDateRange(ctx, *start, *end)
		if err != nil {
			fatal("range report", err)
		}
		emit(out)
	case *recent > 0:
		svc := service.New(repo, ledger.New(repo), cfg.ReportLocation, log)
		out, err := svc.RecentSales(ctx, *recent)
		if err != nil {
			fatal("recent sales", err)
		}
		emit(out)
	default:
		out, err := agg.Overview(ctx)
		if err != nil {
			fatal("overview", err)
		}
		emit(out)
	}
}

func emit(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode report", err)
	}
}

func fatal(msg string, err error) {
	logger := logging.New("production", "error")
	logger.Fatal().Err(err).Msg(msg)
}
