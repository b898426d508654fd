package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned for any key that does not authenticate.
var ErrUnauthorized = errors.New("unauthorized")

// Site is a host storefront allowed to call the service.
type Site struct {
	ID      string
	KeyHash string
	Name    string
}

// Repository provides lookup of sites by the HMAC hash of their API key.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Site, error)
}

// Authenticator checks API keys against a Repository.
type Authenticator struct {
	sites  Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator hashing keys with pepper.
func NewAuthenticator(sites Repository, pepper []byte) *Authenticator {
	return &Authenticator{sites: sites, pepper: pepper}
}

// Hash returns the hex HMAC-SHA256 of key under pepper, as stored by the
// Repository.
func Hash(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate returns the site owning key.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (*Site, error) {
	if key == "" {
		return nil, ErrUnauthorized
	}
	hexHash := Hash(a.pepper, key)

	site, err := a.sites.FindByHash(ctx, hexHash)
	if err != nil || site == nil {
		return nil, ErrUnauthorized
	}

	// The repository matched on the hash; compare again in constant time in
	// case it returned a different row.
	stored, err := hex.DecodeString(site.KeyHash)
	if err != nil {
		return nil, ErrUnauthorized
	}
	computed, _ := hex.DecodeString(hexHash)
	if subtle.ConstantTimeCompare(computed, stored) != 1 {
		return nil, ErrUnauthorized
	}
	return site, nil
}
