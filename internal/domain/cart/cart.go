package cart

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/samber/lo"
)

// ErrNoCart is returned by a Store when the session has no active cart.
var ErrNoCart = errors.New("no active cart")

// ProductID identifies a catalog product or one of its variations.
type ProductID int64

// String implements fmt.Stringer.
func (id ProductID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Line is a single cart line item as held in the shopper session.
type Line struct {
	ProductID   ProductID `json:"product_id"`
	VariationID ProductID `json:"variation_id,omitempty"`
	Quantity    int       `json:"quantity"`
}

// Snapshot is the ordered set of distinct product identifiers in a cart,
// variation identifiers included.
type Snapshot []ProductID

// SnapshotOf builds a Snapshot from cart lines. Each line contributes its
// product id and, when positive, its variation id. The first occurrence of an
// id fixes its position.
func SnapshotOf(lines []Line) Snapshot {
	ids := make([]ProductID, 0, 2*len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
		if l.VariationID > 0 {
			ids = append(ids, l.VariationID)
		}
	}
	return lo.Uniq(ids)
}

// Contains reports whether id is part of the snapshot.
func (s Snapshot) Contains(id ProductID) bool {
	return lo.Contains(s, id)
}

// Int64s returns the snapshot as plain integers, suitable for logging.
func (s Snapshot) Int64s() []int64 {
	return lo.Map(s, func(id ProductID, _ int) int64 { return int64(id) })
}

// Store provides read access to the cart held in a shopper session.
type Store interface {
	// Lines returns the cart lines of the session in insertion order.
	// It returns ErrNoCart when the session has no active cart.
	Lines(ctx context.Context, sessionID string) ([]Line, error)
}

// Syncer replaces the cart held in a shopper session. The host platform
// pushes every cart mutation through it.
type Syncer interface {
	Replace(ctx context.Context, sessionID string, lines []Line) error
}
