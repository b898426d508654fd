package app

import (
	"context"
	"io/fs"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/auth"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/cart"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/referral"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/settings"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/storage/memory"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/storage/postgres"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/storage/redisstore"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/storage/settingsfile"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/pkg/health"
)

// cartStore is a session cart backend readable by the gate and writable by
// the cart sync endpoint.
type cartStore interface {
	cart.Store
	cart.Syncer
}

// orderStore holds referral windows and referral codes.
type orderStore interface {
	referral.Repository
	referral.OrderMeta
}

// stores groups the backends selected by the configuration.
type stores struct {
	carts    cartStore
	settings settings.Store
	orders   orderStore
	sites    auth.Repository

	// pingers become readiness checks.
	pingers map[string]health.Pinger
	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, lg *zap.Logger, cfg *Config, loc *time.Location) (_ *stores, rerr error) {
	s := &stores{pingers: make(map[string]health.Pinger)}
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	switch cfg.Storage {
	case StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.closers = append(s.closers, pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		s.settings = postgres.NewSettingsRepository(pool)
		s.orders = postgres.NewOrderMetaRepository(pool, loc)
		s.sites = postgres.NewSiteRepository(pool)
		s.pingers["postgres"] = pool
	case StorageMemory:
		lg.Warn("Using in-memory storage, data is lost on restart")
		mem := memory.NewSettings()
		if err := seedSettings(ctx, lg, cfg.Gate, mem); err != nil {
			return nil, err
		}
		s.settings = mem
		s.orders = memory.NewOrders()

		var sites []auth.Site
		if cfg.DevAPIKey != "" {
			sites = append(sites, auth.Site{
				ID:      "dev",
				KeyHash: auth.Hash([]byte(cfg.APIKeyPepper), cfg.DevAPIKey),
				Name:    "development",
			})
		}
		s.sites = memory.NewSites(sites...)
	}

	if cfg.RedisURL == "" {
		s.carts = memory.NewCarts()
		return s, nil
	}
	client, err := redisstore.Connect(cfg.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect redis")
	}
	s.closers = append(s.closers, func() { _ = client.Close() })

	carts := redisstore.NewCartStore(client, cfg.CartTTL)
	s.carts = carts
	s.pingers["redis"] = carts
	return s, nil
}

// seedSettings loads the product option exports into the memory store. A
// missing file leaves the option empty.
func seedSettings(ctx context.Context, lg *zap.Logger, cfg GateConfig, mem *memory.Settings) error {
	if cfg.ProductsFile == "" {
		return nil
	}
	products, err := settingsfile.Load(ctx, strings.Split(cfg.ProductsFile, ","))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		lg.Warn("Product option export not found, no product triggers coupon suppression",
			zap.String("file", cfg.ProductsFile),
		)
		return nil
	case err != nil:
		return errors.Wrap(err, "load product option")
	}
	if err := mem.ReplaceProductConfig(ctx, cfg.Option, products); err != nil {
		return errors.Wrap(err, "replace product option")
	}
	lg.Info("Product option loaded",
		zap.String("option", cfg.Option),
		zap.Int("products", len(products)),
	)
	return nil
}
