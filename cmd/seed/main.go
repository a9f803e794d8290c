package main

import (
	"context"
	"log"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/logging"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type seedProduct struct {
	title, description string
	price, oldPrice    int64
	stock              int
	isNew              bool
}

var demo = []struct {
	name, description string
	products          []seedProduct
}{
	{"Masques", "Masques sculptés à la main", []seedProduct{
		{"Masque Baoulé", "Masque en bois d'ébène", 15000, 20000, 4, true},
		{"Masque Dan", "Masque de cérémonie", 22000, 0, 2, false},
	}},
	{"Textiles", "Pagnes et tissus tissés", []seedProduct{
		{"Pagne Kita", "Pagne tissé à Bonwire", 12500, 0, 10, true},
		{"Bogolan", "Tissu teint à la boue", 9000, 11000, 6, false},
	}},
	{"Décoration", "Objets de décoration", []seedProduct{
		{"Tabouret Sénoufo", "Tabouret monoxyle", 18000, 0, 3, false},
		{"Panier en raphia", "Panier tressé", 4500, 0, 0, false},
	}},
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.ServiceName+"-seed")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	repo := &catalog.Repo{DB: db}
	existing, err := repo.ListCategories(ctx)
	if err != nil {
		logger.Fatal("list categories", zap.Error(err))
	}
	if len(existing) > 0 {
		logger.Info("catalog already seeded", zap.Int("categories", len(existing)))
		return
	}

	var n int
	for _, c := range demo {
		cat := catalog.Category{Name: c.name, Description: c.description}
		if err := repo.CreateCategory(ctx, &cat); err != nil {
			logger.Fatal("create category", zap.String("name", c.name), zap.Error(err))
		}
		for _, sp := range c.products {
			p := catalog.Product{
				Title:       sp.title,
				Description: sp.description,
				Price:       decimal.NewFromInt(sp.price),
				CategoryID:  cat.ID,
				Stock:       sp.stock,
				IsNew:       sp.isNew,
				IsActive:    true,
			}
			if sp.oldPrice > 0 {
				old := decimal.NewFromInt(sp.oldPrice)
				p.OldPrice = &old
			}
			if err := repo.CreateProduct(ctx, &p); err != nil {
				logger.Fatal("create product", zap.String("title", sp.title), zap.Error(err))
			}
			n++
		}
	}
	logger.Info("catalog seeded", zap.Int("categories", len(demo)), zap.Int("products", n))
}

func loadConfig() (config.Config, error) {
	_ = godotenv.Load()
	return config.Load()
}
