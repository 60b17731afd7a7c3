package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"cajapos/internal/pos"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCatalog struct {
	products []pos.Product
	err      error
	calls    int
}

func (c *countingCatalog) Lookup(context.Context, string, bool) ([]pos.Product, error) {
	c.calls++
	return c.products, c.err
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

var refresco = pos.Product{ID: "750100", Name: "Refresco", Price: decimal.RequireFromString("59.00"), Taxable: true}

func TestCatalogCachesHits(t *testing.T) {
	mr, rdb := newTestRedis(t)
	src := &countingCatalog{products: []pos.Product{refresco}}
	svc := NewCatalogService(src, rdb, time.Minute)
	ctx := context.Background()

	first, err := svc.Lookup(ctx, "750100", true)
	require.NoError(t, err)
	second, err := svc.Lookup(ctx, "750100", true)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.True(t, first[0].Price.Equal(second[0].Price))
	assert.True(t, mr.Exists("producto:exact:750100"))

	mr.FastForward(2 * time.Minute)
	_, err = svc.Lookup(ctx, "750100", true)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCatalogStockHintExpiresQuickly(t *testing.T) {
	mr, rdb := newTestRedis(t)
	stock := 3
	tracked := refresco
	tracked.Stock = &stock
	src := &countingCatalog{products: []pos.Product{tracked}}
	svc := NewCatalogService(src, rdb, 5*time.Minute)
	ctx := context.Background()

	_, err := svc.Lookup(ctx, "750100", true)
	require.NoError(t, err)
	assert.Equal(t, stockCatalogTTL, mr.TTL("producto:exact:750100"))

	stock = 0
	mr.FastForward(stockCatalogTTL + time.Second)
	got, err := svc.Lookup(ctx, "750100", true)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "stock count refetched from the backend")
	require.NotNil(t, got[0].Stock)
	assert.Equal(t, 0, *got[0].Stock)

	src.products = []pos.Product{refresco}
	_, err = svc.Lookup(ctx, "refresco", false)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, mr.TTL("producto:fuzzy:refresco"), "untracked products keep the full TTL")
}

func TestCatalogExactAndFuzzyAreSeparate(t *testing.T) {
	_, rdb := newTestRedis(t)
	src := &countingCatalog{products: []pos.Product{refresco}}
	svc := NewCatalogService(src, rdb, time.Minute)

	_, _ = svc.Lookup(context.Background(), "Refresco", true)
	_, _ = svc.Lookup(context.Background(), "Refresco", false)
	_, _ = svc.Lookup(context.Background(), "refresco", false)
	assert.Equal(t, 2, src.calls)
}

func TestCatalogDoesNotCacheMissesOrErrors(t *testing.T) {
	_, rdb := newTestRedis(t)
	src := &countingCatalog{}
	svc := NewCatalogService(src, rdb, time.Minute)

	_, _ = svc.Lookup(context.Background(), "000", true)
	_, _ = svc.Lookup(context.Background(), "000", true)
	assert.Equal(t, 2, src.calls)

	src.err = &pos.TransportError{Op: "productos", Err: errors.New("down")}
	_, err := svc.Lookup(context.Background(), "750100", true)
	var te *pos.TransportError
	assert.ErrorAs(t, err, &te)
}

func TestCatalogWorksWithRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()
	src := &countingCatalog{products: []pos.Product{refresco}}
	svc := NewCatalogService(src, rdb, time.Minute)

	got, err := svc.Lookup(context.Background(), "750100", true)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCatalogInvalidate(t *testing.T) {
	mr, rdb := newTestRedis(t)
	require.NoError(t, mr.Set("otra:clave", "x"))
	src := &countingCatalog{products: []pos.Product{refresco}}
	svc := NewCatalogService(src, rdb, time.Minute)

	_, _ = svc.Lookup(context.Background(), "750100", true)
	_, _ = svc.Lookup(context.Background(), "ref", false)
	require.NoError(t, svc.Invalidate(context.Background()))

	assert.False(t, mr.Exists("producto:exact:750100"))
	assert.False(t, mr.Exists("producto:fuzzy:ref"))
	assert.True(t, mr.Exists("otra:clave"))
}
