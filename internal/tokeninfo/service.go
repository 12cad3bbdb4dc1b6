package tokeninfo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTokenListURL   = "https://token.jup.ag/strict"
	DefaultDexScreenerURL = "https://api.dexscreener.com/latest/dex"

	metadataTTL  = 5 * time.Minute
	tokenListTTL = time.Hour
	listCacheKey = "strict"
)

// Service looks tokens up in the Jupiter token list and on DexScreener.
type Service struct {
	http           *resty.Client
	tokenListURL   string
	dexScreenerURL string

	listBreaker *gobreaker.CircuitBreaker
	dexBreaker  *gobreaker.CircuitBreaker

	metadata *ttlCache[*TokenInfo]
	list     *ttlCache[map[string]listToken]
	logger   *zap.Logger
}

// NewService creates a lookup service. Empty URLs fall back to the public endpoints.
func NewService(tokenListURL, dexScreenerURL string, timeout time.Duration, logger *zap.Logger) *Service {
	if tokenListURL == "" {
		tokenListURL = DefaultTokenListURL
	}
	if dexScreenerURL == "" {
		dexScreenerURL = DefaultDexScreenerURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger = logger.Named("tokeninfo")

	return &Service{
		http:           resty.New().SetTimeout(timeout).SetHeader("Accept", "application/json"),
		tokenListURL:   tokenListURL,
		dexScreenerURL: strings.TrimRight(dexScreenerURL, "/"),
		listBreaker:    newBreaker("token-list", logger),
		dexBreaker:     newBreaker("dexscreener", logger),
		metadata:       newTTLCache[*TokenInfo](metadataTTL),
		list:           newTTLCache[map[string]listToken](tokenListTTL),
		logger:         logger,
	}
}

func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Lookup returns what the token list and DexScreener know about mint. Both
// sources are queried concurrently; the list wins for name, symbol and decimals.
func (s *Service) Lookup(ctx context.Context, mint string) (*TokenInfo, error) {
	if info, ok := s.metadata.get(mint); ok {
		s.logger.Debug("token metadata retrieved from cache", zap.String("mint", mint))
		return info, nil
	}

	var (
		listed  *listToken
		pair    *dexPair
		listErr error
		dexErr  error
	)

	// No shared context: one source failing must not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		if listed, err = s.lookupList(ctx, mint); err != nil {
			listErr = fmt.Errorf("token list: %w", err)
		}
		return listErr
	})
	g.Go(func() error {
		var err error
		if pair, err = s.lookupPair(ctx, mint); err != nil {
			dexErr = fmt.Errorf("dexscreener: %w", err)
		}
		return dexErr
	})
	degraded := g.Wait() != nil

	if listed == nil && pair == nil {
		// A source that failed may know the token, so this is not a miss.
		if degraded {
			return nil, fmt.Errorf("token metadata unavailable: %w", errors.Join(listErr, dexErr))
		}
		return nil, ErrTokenNotFound
	}

	info := merge(mint, listed, pair)
	if degraded {
		// partial answer: served, but not cached so the next lookup retries
		s.logger.Debug("token metadata incomplete",
			zap.String("mint", mint),
			zap.String("source", info.Source),
			zap.Error(errors.Join(listErr, dexErr)))
		return info, nil
	}
	s.metadata.put(mint, info)

	s.logger.Debug("token metadata retrieved",
		zap.String("mint", mint),
		zap.String("symbol", info.Symbol),
		zap.String("source", info.Source))
	return info, nil
}

func merge(mint string, listed *listToken, pair *dexPair) *TokenInfo {
	info := &TokenInfo{Address: mint, UpdatedAt: time.Now()}
	var sources []string

	if pair != nil {
		sources = append(sources, "dexscreener")
		info.Name = pair.BaseToken.Name
		info.Symbol = pair.BaseToken.Symbol
		info.PriceUSD = pair.PriceUSD
		info.PriceNative = pair.PriceNative
		info.LiquidityUSD = pair.Liquidity.USD
		info.MarketCap = pair.MarketCap
		info.Volume24h = pair.Volume.H24
		info.PriceChange24h = pair.PriceChange.H24
		info.DexID = pair.DexID
		info.PairAddress = pair.PairAddress
		info.HasMarket = true
	}
	if listed != nil {
		sources = append([]string{"list"}, sources...)
		info.Name = listed.Name
		info.Symbol = listed.Symbol
		info.Decimals = listed.Decimals
		info.Listed = true
	}

	info.Source = strings.Join(sources, "+")
	return info
}

func (s *Service) lookupList(ctx context.Context, mint string) (*listToken, error) {
	tokens, ok := s.list.get(listCacheKey)
	if !ok {
		result, err := s.listBreaker.Execute(func() (interface{}, error) {
			var out []listToken
			resp, err := s.http.R().SetContext(ctx).SetResult(&out).Get(s.tokenListURL)
			if err != nil {
				return nil, err
			}
			if resp.IsError() {
				return nil, fmt.Errorf("token list http %d", resp.StatusCode())
			}
			return out, nil
		})
		if err != nil {
			return nil, err
		}

		list := result.([]listToken)
		tokens = make(map[string]listToken, len(list))
		for _, token := range list {
			tokens[token.Address] = token
		}
		s.list.put(listCacheKey, tokens)
	}

	if token, found := tokens[mint]; found {
		return &token, nil
	}
	return nil, nil
}

func (s *Service) lookupPair(ctx context.Context, mint string) (*dexPair, error) {
	result, err := s.dexBreaker.Execute(func() (interface{}, error) {
		var out dexScreenerResponse
		resp, err := s.http.R().SetContext(ctx).SetResult(&out).Get(s.dexScreenerURL + "/tokens/" + mint)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("dexscreener http %d", resp.StatusCode())
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	pairs := result.(*dexScreenerResponse).Pairs
	if len(pairs) == 0 {
		return nil, nil
	}
	return &pairs[0], nil
}
