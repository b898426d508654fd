// Package settingsfile reads product option exports, plain or gzipped JSON
// keyed by product id:
//
//	{"6524": {"label": "Abonnement", "discount": "7.50"}}
package settingsfile

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/cart"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/settings"
)

type productJSON struct {
	Label    string          `json:"label"`
	Discount decimal.Decimal `json:"discount"`
}

// Load reads every file concurrently and merges them. A product present in
// several files keeps the entry of the last file listed.
func Load(ctx context.Context, files []string) (settings.ProductConfig, error) {
	parsed := make([]settings.ProductConfig, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		path = strings.TrimSpace(path)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cfg, err := ReadFile(path)
			if err != nil {
				return err
			}
			parsed[i] = cfg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := settings.ProductConfig{}
	for _, cfg := range parsed {
		for id, rec := range cfg {
			merged[id] = rec
		}
	}
	return merged, nil
}

// ReadFile reads one export. Paths ending in .gz are decompressed.
func ReadFile(path string) (settings.ProductConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	cfg, err := Decode(r)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

// Decode reads a single JSON export.
func Decode(r io.Reader) (settings.ProductConfig, error) {
	var raw map[string]productJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}

	cfg := make(settings.ProductConfig, len(raw))
	for key, p := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 {
			return nil, errors.Errorf("invalid product id %q", key)
		}
		cfg[cart.ProductID(id)] = settings.Record{Label: p.Label, Discount: p.Discount}
	}
	return cfg, nil
}
