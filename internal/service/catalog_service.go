package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"cajapos/internal/pos"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	catalogKeyPrefix   = "producto:"
	defaultCatalogTTL  = 5 * time.Minute
	stockCatalogTTL    = 15 * time.Second
	catalogScanBatches = 100
)

// CatalogService puts a Redis cache in front of the backend's product lookup.
// Empty results and errors are never cached; a scanned code that misses today
// may be registered on the backend a minute later. Results carrying a stock
// count live for stockCatalogTTL at most.
type CatalogService struct {
	source pos.Catalog
	rdb    *redis.Client
	ttl    time.Duration
}

var _ pos.Catalog = (*CatalogService)(nil)

func NewCatalogService(source pos.Catalog, rdb *redis.Client, ttl time.Duration) *CatalogService {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	return &CatalogService{source: source, rdb: rdb, ttl: ttl}
}

func (s *CatalogService) Lookup(ctx context.Context, query string, exact bool) ([]pos.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	key := catalogKey(query, exact)

	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
			var products []pos.Product
			if jsonErr := json.Unmarshal(cached, &products); jsonErr == nil {
				return products, nil
			}
		}
	}

	products, err := s.source.Lookup(ctx, query, exact)
	if err != nil || len(products) == 0 {
		return products, err
	}

	if s.rdb != nil {
		if b, jsonErr := json.Marshal(products); jsonErr == nil {
			if setErr := s.rdb.Set(ctx, key, b, s.ttlFor(products)).Err(); setErr != nil {
				log.Debug().Err(setErr).Str("key", key).Msg("catalog: cache write failed")
			}
		}
	}
	return products, nil
}

func (s *CatalogService) ttlFor(products []pos.Product) time.Duration {
	if s.ttl <= stockCatalogTTL {
		return s.ttl
	}
	for _, p := range products {
		if p.Stock != nil {
			return stockCatalogTTL
		}
	}
	return s.ttl
}

// Invalidate drops every cached lookup. Called after an invoice is accepted
// so stock hints are refetched.
func (s *CatalogService) Invalidate(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	iter := s.rdb.Scan(ctx, 0, catalogKeyPrefix+"*", catalogScanBatches).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func catalogKey(query string, exact bool) string {
	if exact {
		return catalogKeyPrefix + "exact:" + query
	}
	return catalogKeyPrefix + "fuzzy:" + strings.ToLower(query)
}
