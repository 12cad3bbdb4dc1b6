package tokeninfo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	pumpMint = "9BB6NFEcjBCtnNLFko2FqVQBq8HHM13kCyYcdQbgpump"
)

const tokenList = `[{"address":"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263","name":"Bonk","symbol":"Bonk","decimals":5}]`

const bonkPairs = `{"pairs":[{"dexId":"raydium","pairAddress":"pair1","baseToken":{"address":"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263","name":"Bonk Inu","symbol":"BONK"},"priceUsd":"0.00002","priceNative":"0.0000001","liquidity":{"usd":1500000.5},"marketCap":1200000000,"volume":{"h24":987654},"priceChange":{"h24":-3.25}}]}`

const pumpPairs = `{"pairs":[{"dexId":"pumpfun","pairAddress":"pair2","baseToken":{"name":"Frog","symbol":"FROG"},"priceUsd":"0.0001","liquidity":{"usd":null},"marketCap":50000}]}`

type upstream struct {
	listHits int32
	dexHits  int32
	listFail bool
	dexFail  bool
}

func (u *upstream) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/strict":
			atomic.AddInt32(&u.listHits, 1)
			if u.listFail {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, tokenList)
		case strings.HasPrefix(r.URL.Path, "/dex/tokens/"):
			atomic.AddInt32(&u.dexHits, 1)
			if u.dexFail {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			switch strings.TrimPrefix(r.URL.Path, "/dex/tokens/") {
			case bonkMint:
				_, _ = io.WriteString(w, bonkPairs)
			case pumpMint:
				_, _ = io.WriteString(w, pumpPairs)
			default:
				_, _ = io.WriteString(w, `{"pairs":null}`)
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestService(t *testing.T, url string) *Service {
	return NewService(url+"/strict", url+"/dex", time.Second, zaptest.NewLogger(t))
}

func TestLookupMergesSources(t *testing.T) {
	up := &upstream{}
	server := up.server(t)
	defer server.Close()

	info, err := newTestService(t, server.URL).Lookup(context.Background(), bonkMint)
	require.NoError(t, err)

	assert.Equal(t, "Bonk", info.Name)
	assert.Equal(t, "Bonk", info.Symbol)
	assert.EqualValues(t, 5, info.Decimals)
	assert.True(t, info.Listed)
	assert.True(t, info.HasMarket)
	assert.Equal(t, "0.00002", info.PriceUSD.String())
	assert.Equal(t, "1500000.5", info.LiquidityUSD.String())
	assert.Equal(t, "-3.25", info.PriceChange24h.String())
	assert.Equal(t, "bonk.fun / Raydium", info.Platform())
	assert.Equal(t, "list+dexscreener", info.Source)
}

func TestLookupPairOnly(t *testing.T) {
	up := &upstream{}
	server := up.server(t)
	defer server.Close()

	info, err := newTestService(t, server.URL).Lookup(context.Background(), pumpMint)
	require.NoError(t, err)
	assert.Equal(t, "FROG", info.Symbol)
	assert.False(t, info.Listed)
	assert.True(t, info.LiquidityUSD.IsZero())
	assert.Equal(t, "pump.fun", info.Platform())
}

func TestLookupNotFound(t *testing.T) {
	up := &upstream{}
	server := up.server(t)
	defer server.Close()

	_, err := newTestService(t, server.URL).Lookup(context.Background(), "So11111111111111111111111111111111111111112")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestLookupSurvivesOneUpstreamDown(t *testing.T) {
	up := &upstream{listFail: true}
	server := up.server(t)
	defer server.Close()

	info, err := newTestService(t, server.URL).Lookup(context.Background(), bonkMint)
	require.NoError(t, err)
	assert.Equal(t, "BONK", info.Symbol)
	assert.False(t, info.Listed)
}

func TestLookupBothUpstreamsDown(t *testing.T) {
	up := &upstream{listFail: true, dexFail: true}
	server := up.server(t)
	defer server.Close()

	_, err := newTestService(t, server.URL).Lookup(context.Background(), bonkMint)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTokenNotFound))
	assert.Contains(t, err.Error(), "token metadata unavailable")
}

func TestLookupPartialResultIsNotCached(t *testing.T) {
	up := &upstream{dexFail: true}
	server := up.server(t)
	defer server.Close()

	svc := newTestService(t, server.URL)
	for i := 0; i < 2; i++ {
		info, err := svc.Lookup(context.Background(), bonkMint)
		require.NoError(t, err)
		assert.True(t, info.Listed)
		assert.False(t, info.HasMarket)
		assert.Equal(t, "list", info.Source)
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&up.dexHits), "degraded lookups are retried")
	assert.EqualValues(t, 1, atomic.LoadInt32(&up.listHits))
}

func TestLookupMissWhileUpstreamDownIsNotNotFound(t *testing.T) {
	up := &upstream{listFail: true}
	server := up.server(t)
	defer server.Close()

	_, err := newTestService(t, server.URL).Lookup(context.Background(), "So11111111111111111111111111111111111111112")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTokenNotFound))
	assert.Contains(t, err.Error(), "token list")
}

func TestLookupIsCached(t *testing.T) {
	up := &upstream{}
	server := up.server(t)
	defer server.Close()

	svc := newTestService(t, server.URL)
	for i := 0; i < 3; i++ {
		_, err := svc.Lookup(context.Background(), bonkMint)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&up.listHits))
	assert.EqualValues(t, 1, atomic.LoadInt32(&up.dexHits))

	// a second mint reuses the cached list
	_, err := svc.Lookup(context.Background(), pumpMint)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&up.listHits))
	assert.EqualValues(t, 2, atomic.LoadInt32(&up.dexHits))
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	up := &upstream{dexFail: true}
	server := up.server(t)
	defer server.Close()

	svc := newTestService(t, server.URL)
	for i := 0; i < 5; i++ {
		_, _ = svc.Lookup(context.Background(), pumpMint)
	}
	// three failures trip the breaker; later calls never reach the server
	assert.EqualValues(t, 3, atomic.LoadInt32(&up.dexHits))
}

func TestTTLCacheExpires(t *testing.T) {
	cache := newTTLCache[int](time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }
	cache.put("a", 1)

	value, ok := cache.get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, value)

	now = now.Add(2 * time.Minute)
	_, ok = cache.get("a")
	assert.False(t, ok)
}

func TestPlatform(t *testing.T) {
	tests := []struct {
		info TokenInfo
		want string
	}{
		{TokenInfo{DexID: "pumpswap"}, "pump.fun"},
		{TokenInfo{DexID: "raydium"}, "bonk.fun / Raydium"},
		{TokenInfo{Address: "abcbonk", DexID: "meteora"}, "bonk.fun / Raydium"},
		{TokenInfo{DexID: "orca"}, "orca"},
		{TokenInfo{}, "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.info.Platform())
	}
}
