package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/auth"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/settings"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/storage/postgres"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/storage/settingsfile"
)

func main() {
	var (
		databaseURL  string
		configFiles  string
		option       string
		apiKey       string
		apiKeyPepper string
		siteID       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&configFiles, "products-config", "db/seed/products_config.json", "comma-separated product option exports, .json or .json.gz")
	flag.StringVar(&option, "option", settings.DefaultProductOption, "option name the products are stored under")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or PARRAINAGE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PARRAINAGE_API_KEY_PEPPER env)")
	flag.StringVar(&siteID, "site-id", "default", "identifier of the seeded site")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("PARRAINAGE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or PARRAINAGE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("PARRAINAGE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	files := strings.Split(configFiles, ",")
	site := auth.Site{
		ID:      siteID,
		KeyHash: auth.Hash([]byte(apiKeyPepper), apiKey),
		Name:    "Seeded site " + siteID,
	}
	if err := run(ctx, databaseURL, option, files, site); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, option string, files []string, site auth.Site) error {
	slog.Info("reading product option exports", slog.Any("files", files))

	cfg, err := settingsfile.Load(ctx, files)
	if err != nil {
		return errors.Wrap(err, "load product config")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("replacing product option", slog.String("option", option), slog.Int("products", len(cfg)))

	if err := postgres.NewSettingsRepository(pool).ReplaceProductConfig(ctx, option, cfg); err != nil {
		return errors.Wrap(err, "replace product config")
	}

	if err := postgres.NewSiteRepository(pool).Upsert(ctx, site); err != nil {
		return errors.Wrap(err, "upsert site")
	}

	slog.Info("upserted site", slog.String("id", site.ID), slog.String("name", site.Name))

	return nil
}
