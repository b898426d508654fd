// Package memory provides in-process implementations of the service stores.
// They back the "memory" storage mode used for local runs and tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/auth"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/cart"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/referral"
	"github.com/SrGabrysh/wc-tb-web-parrainage-sub001/internal/domain/settings"
)

var (
	_ cart.Store          = (*Carts)(nil)
	_ cart.Syncer         = (*Carts)(nil)
	_ settings.Store      = (*Settings)(nil)
	_ referral.Repository = (*Orders)(nil)
	_ referral.OrderMeta  = (*Orders)(nil)
	_ auth.Repository     = (*Sites)(nil)
)

// Carts keeps carts per session.
type Carts struct {
	mu    sync.RWMutex
	carts map[string][]cart.Line
}

// NewCarts creates an empty Carts.
func NewCarts() *Carts {
	return &Carts{carts: make(map[string][]cart.Line)}
}

// Lines returns a copy of the session's cart lines.
func (c *Carts) Lines(_ context.Context, sessionID string) ([]cart.Line, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lines, ok := c.carts[sessionID]
	if !ok {
		return nil, cart.ErrNoCart
	}
	return slices.Clone(lines), nil
}

// Replace overwrites the session's cart.
func (c *Carts) Replace(_ context.Context, sessionID string, lines []cart.Line) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lines == nil {
		lines = []cart.Line{}
	}
	c.carts[sessionID] = slices.Clone(lines)
	return nil
}

// Settings keeps product options.
type Settings struct {
	mu      sync.RWMutex
	options map[string]settings.ProductConfig
}

// NewSettings creates an empty Settings.
func NewSettings() *Settings {
	return &Settings{options: make(map[string]settings.ProductConfig)}
}

// ProductConfig returns a copy of the option, empty when absent.
func (s *Settings) ProductConfig(_ context.Context, option string) (settings.ProductConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := settings.ProductConfig{}
	maps.Copy(cfg, s.options[option])
	return cfg, nil
}

// ReplaceProductConfig overwrites the option.
func (s *Settings) ReplaceProductConfig(_ context.Context, option string, cfg settings.ProductConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.options[option] = maps.Clone(cfg)
	return nil
}

// Orders keeps referral records and referral codes per order.
type Orders struct {
	mu      sync.Mutex
	records map[string]referral.Record
	codes   map[string]string
}

// NewOrders creates an empty Orders.
func NewOrders() *Orders {
	return &Orders{
		records: make(map[string]referral.Record),
		codes:   make(map[string]string),
	}
}

// Find returns the order's record, nil when absent.
func (o *Orders) Find(_ context.Context, orderID string) (*referral.Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, ok := o.records[orderID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// SaveIfAbsent stores rec unless the order already has a record. The check
// and the write happen under one lock.
func (o *Orders) SaveIfAbsent(_ context.Context, rec *referral.Record) (bool, error) {
	if rec == nil || rec.OrderID == "" {
		return false, errors.New("record without order id")
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.records[rec.OrderID]; ok {
		return false, nil
	}
	o.records[rec.OrderID] = *rec
	return true, nil
}

// ReferralCode returns the order's referral code.
func (o *Orders) ReferralCode(_ context.Context, orderID string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[orderID], nil
}

// SetReferralCode stores the order's referral code.
func (o *Orders) SetReferralCode(_ context.Context, orderID, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.codes[orderID] = code
	return nil
}

// Sites keeps API key hashes.
type Sites struct {
	mu     sync.RWMutex
	byHash map[string]auth.Site
}

// NewSites creates Sites holding the given sites.
func NewSites(sites ...auth.Site) *Sites {
	s := &Sites{byHash: make(map[string]auth.Site, len(sites))}
	for _, site := range sites {
		s.byHash[site.KeyHash] = site
	}
	return s
}

// FindByHash returns the site registered under hash.
func (s *Sites) FindByHash(_ context.Context, hash string) (*auth.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	site, ok := s.byHash[hash]
	if !ok {
		return nil, errors.New("site not found")
	}
	return &site, nil
}
