// Package registry is the company-lookup seam. The core only consumes the
// Company shape; how a concrete registry is queried lives behind Lookup.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"

	"dmv-service/internal/domain/dmv"
)

// ErrNotFound reports that the registry has no record for the identifier.
// It is not fatal; callers may proceed with manually entered data.
var ErrNotFound = errors.New("company not found in registry")

// Lookup resolves a tax id or company id to a company record.
type Lookup interface {
	Lookup(ctx context.Context, taxID string) (dmv.Company, error)
}

// NormalizeTaxID strips everything but digits. A ten-digit tax id starting
// with 20 embeds the eight-digit company id.
func NormalizeTaxID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Static serves lookups from a seed file, a JSON array of company records
// keyed by tax id. It stands in for a live registry connection.
type Static struct {
	byID map[string]dmv.Company
}

func NewStatic(companies []dmv.Company) *Static {
	byID := make(map[string]dmv.Company, len(companies))
	for _, c := range companies {
		byID[NormalizeTaxID(c.TaxID)] = c
		if c.CompanyID != "" {
			byID[NormalizeTaxID(c.CompanyID)] = c
		}
	}
	return &Static{byID: byID}
}

// LoadStatic reads a seed file. A missing path yields an empty registry.
func LoadStatic(path string) (*Static, error) {
	if path == "" {
		return NewStatic(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry seed file: %w", err)
	}
	var companies []dmv.Company
	if err := json.Unmarshal(data, &companies); err != nil {
		return nil, fmt.Errorf("failed to parse registry seed file: %w", err)
	}
	return NewStatic(companies), nil
}

func (s *Static) Lookup(_ context.Context, taxID string) (dmv.Company, error) {
	c, ok := s.byID[NormalizeTaxID(taxID)]
	if !ok {
		return dmv.Company{}, ErrNotFound
	}
	return c, nil
}

const (
	cacheKeyPrefix       = "registry_company_"
	DefaultCacheTTL      = 15 * time.Minute
	cacheCleanupInterval = 30 * time.Minute
)

// Cached memoizes successful lookups so repeated queries for the same
// entity do not hit the underlying registry.
type Cached struct {
	next  Lookup
	cache *cache.Cache
}

func NewCached(next Lookup, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		next:  next,
		cache: cache.New(ttl, cacheCleanupInterval),
	}
}

func (c *Cached) Lookup(ctx context.Context, taxID string) (dmv.Company, error) {
	key := cacheKeyPrefix + NormalizeTaxID(taxID)
	if hit, ok := c.cache.Get(key); ok {
		return hit.(dmv.Company), nil
	}
	company, err := c.next.Lookup(ctx, taxID)
	if err != nil {
		return dmv.Company{}, err
	}
	c.cache.Set(key, company, cache.DefaultExpiration)
	return company, nil
}
