// Command seedcatalog loads a demo catalog and a handful of sales into the
// configured database. Useful for trying the reports against real data.
package main

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"salepoint/backend/internal/config"
	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/ledger"
	"salepoint/backend/internal/logging"
	"salepoint/backend/internal/service"
	"salepoint/backend/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.Env, cfg.LogLevel)
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer repo.Close()

	svc := service.New(repo, ledger.New(repo), cfg.ReportLocation, log)

	drinks, err := svc.CreateCategory(ctx, domain.CategoryCreateRequest{Name: "Drinks"})
	if err != nil {
		log.Fatal().Err(err).Msg("seed category")
	}
	snacks, err := svc.CreateCategory(ctx, domain.CategoryCreateRequest{Name: "Snacks"})
	if err != nil {
		log.Fatal().Err(err).Msg("seed category")
	}

	tea, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:       "Iced Tea",
		CategoryID: drinks.ID,
		BasePrice:  decimal.NewFromInt(3),
		Variants: []domain.ProductVariant{
			{ID: "small", PurchasedPrice: decimal.NewFromInt(1), SellingPrice: decimal.NewFromInt(3), Stock: 40},
			{ID: "large", PurchasedPrice: decimal.NewFromInt(2), SellingPrice: decimal.NewFromInt(5), Stock: 25},
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("seed product")
	}

	bread, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name:       "Banana Bread",
		CategoryID: snacks.ID,
		BasePrice:  decimal.RequireFromString("2.75"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("seed product")
	}
	// Variantless product: stock arrives through a restock of the default
	// variant.
	err = svc.RestockVariant(ctx, domain.VariantRef{ProductID: bread.ID}, 20)
	if err != nil {
		log.Fatal().Err(err).Msg("seed stock")
	}

	sales := []domain.SaleCreateRequest{
		{CustomerName: "walk-in", Items: []domain.SaleItemRequest{
			{ProductID: tea.ID, VariantID: "small", Quantity: 2},
			{ProductID: bread.ID, Quantity: 1},
		}},
		{Items: []domain.SaleItemRequest{
			{ProductID: tea.ID, VariantID: "large", Quantity: 1},
		}},
	}
	for _, req := range sales {
		sale, err := svc.CreateSale(ctx, req)
		if err != nil {
			log.Fatal().Err(err).Msg("seed sale")
		}
		log.Info().Str("sale_id", sale.ID).Str("total", sale.Total.String()).Msg("seeded sale")
	}

	log.Info().Msg("seed complete")
}
