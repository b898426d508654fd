package settings

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/cart"
)

// DefaultProductOption is the option holding the products for which the
// referral programme replaces coupons.
const DefaultProductOption = "wc_tb_parrainage_products_config"

// Record is the per-product configuration stored under a product option.
type Record struct {
	Label    string
	Discount decimal.Decimal
}

// ProductConfig maps product identifiers to their configuration.
type ProductConfig map[cart.ProductID]Record

// Has reports whether the product is configured.
func (c ProductConfig) Has(id cart.ProductID) bool {
	_, ok := c[id]
	return ok
}

// Store provides read access to named product options.
type Store interface {
	// ProductConfig returns the mapping stored under option. An absent option
	// yields an empty, non-nil mapping.
	ProductConfig(ctx context.Context, option string) (ProductConfig, error)
}
