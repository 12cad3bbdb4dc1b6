package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rovshanmuradov/solsniper-bot/internal/blockchain"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 5
	quoteMaxTries    = 3
	submitMaxRetries = 3
)

// Submitter sends a signed transaction to the network.
type Submitter interface {
	SendRawTransaction(ctx context.Context, raw []byte, opts blockchain.SendOptions) (solana.Signature, error)
}

// Observer receives one call per aggregator stage.
type Observer interface {
	ObserveAggregator(stage string, latency time.Duration, err error)
}

// Client talks to the Jupiter swap API. It keeps no state between calls
// besides the shared rate limiter.
type Client struct {
	http       *resty.Client
	submitter  Submitter
	limiter    *rate.Limiter
	observer   Observer
	retryDelay time.Duration
	logger     *zap.Logger
}

type Option func(*Client)

// WithAPIKey sends key in the x-api-key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if key = strings.TrimSpace(key); key != "" {
			c.http.SetHeader("x-api-key", key)
		}
	}
}

// WithRateLimit caps outbound aggregator requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithRetryDelay sets the first backoff interval of quote retries.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, submitter Submitter, logger *zap.Logger, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
		submitter:  submitter,
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateLimit),
		retryDelay: 500 * time.Millisecond,
		logger:     logger.Named("jupiter"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote fetches the best ExactIn route. Throttling and server errors are
// retried; any other failure is returned at once.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.InputMint == "" || req.OutputMint == "" {
		return nil, &AggregatorError{Stage: StageQuote, Err: errors.New("input and output mints are required")}
	}
	if req.Amount == 0 {
		return nil, &AggregatorError{Stage: StageQuote, Err: errors.New("amount must be positive")}
	}

	params := map[string]string{
		"inputMint":   req.InputMint,
		"outputMint":  req.OutputMint,
		"amount":      strconv.FormatUint(req.Amount, 10),
		"slippageBps": strconv.FormatUint(uint64(req.SlippageBps), 10),
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.MaxInterval = c.retryDelay * 8

	attempt := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(&AggregatorError{Stage: StageQuote, Err: err})
		}
		resp, err := c.http.R().SetContext(ctx).SetQueryParams(params).Get("/quote")
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(&AggregatorError{Stage: StageQuote, Err: err})
			}
			return nil, &AggregatorError{Stage: StageQuote, Err: err}
		}
		if resp.IsError() {
			aggErr := &AggregatorError{Stage: StageQuote, StatusCode: resp.StatusCode(), Body: resp.String()}
			if isRetryableStatus(resp.StatusCode()) {
				return nil, aggErr
			}
			return nil, backoff.Permanent(aggErr)
		}
		return resp.Body(), nil
	}

	notify := func(err error, next time.Duration) {
		c.logger.Warn("🔄 Quote failed, retrying", zap.Duration("backoff", next), zap.Error(err))
	}

	start := time.Now()
	body, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(quoteMaxTries),
		backoff.WithNotify(notify))
	if err == nil {
		var quote *Quote
		quote, err = decodeQuote(body)
		if err == nil {
			c.observe(StageQuote, start, nil)
			c.logger.Debug("Quote received",
				zap.String("input_mint", quote.InputMint),
				zap.String("output_mint", quote.OutputMint),
				zap.Uint64("in_amount", quote.InAmount),
				zap.Uint64("out_amount", quote.OutAmount))
			return quote, nil
		}
	}

	err = asAggregatorError(StageQuote, err)
	c.observe(StageQuote, start, err)
	return nil, err
}

// BuildTransaction asks the aggregator to turn quote into an unsigned
// transaction paid by payer. Never retried.
func (c *Client) BuildTransaction(ctx context.Context, quote *Quote, payer solana.PublicKey, opts BuildOptions) (UnsignedTx, error) {
	start := time.Now()
	tx, err := c.buildTransaction(ctx, quote, payer, opts)
	c.observe(StageBuild, start, err)
	return tx, err
}

func (c *Client) buildTransaction(ctx context.Context, quote *Quote, payer solana.PublicKey, opts BuildOptions) (UnsignedTx, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return UnsignedTx{}, &AggregatorError{Stage: StageBuild, Err: errors.New("quote is empty")}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return UnsignedTx{}, &AggregatorError{Stage: StageBuild, Err: err}
	}

	var out swapResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(swapRequest{
			QuoteResponse:             quote.Raw,
			UserPublicKey:             payer.String(),
			WrapAndUnwrapSol:          true,
			DynamicComputeUnitLimit:   true,
			PrioritizationFeeLamports: opts.PrioritizationFeeLamports,
		}).
		SetResult(&out).
		Post("/swap")
	if err != nil {
		return UnsignedTx{}, &AggregatorError{Stage: StageBuild, Err: err}
	}
	if resp.IsError() {
		return UnsignedTx{}, &AggregatorError{Stage: StageBuild, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if out.SwapTransaction == "" {
		return UnsignedTx{}, &AggregatorError{Stage: StageBuild, Err: errors.New("response has no swapTransaction")}
	}

	raw, err := base64.StdEncoding.DecodeString(out.SwapTransaction)
	if err != nil {
		return UnsignedTx{}, &AggregatorError{Stage: StageBuild, Err: fmt.Errorf("decode swapTransaction: %w", err)}
	}
	return UnsignedTx{Raw: raw, LastValidBlockHeight: out.LastValidBlockHeight}, nil
}

// Submit sends a signed transaction with preflight skipped, letting the RPC
// node rebroadcast up to three times. Never retried here.
func (c *Client) Submit(ctx context.Context, signed []byte) (solana.Signature, error) {
	start := time.Now()
	sig, err := c.submitter.SendRawTransaction(ctx, signed, blockchain.SendOptions{
		SkipPreflight: true,
		MaxRetries:    submitMaxRetries,
	})
	if err != nil {
		err = &AggregatorError{Stage: StageSubmit, Err: err}
	}
	c.observe(StageSubmit, start, err)
	return sig, err
}

func (c *Client) observe(stage Stage, start time.Time, err error) {
	if c.observer != nil {
		c.observer.ObserveAggregator(string(stage), time.Since(start), err)
	}
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func asAggregatorError(stage Stage, err error) error {
	var aggErr *AggregatorError
	if errors.As(err, &aggErr) {
		return aggErr
	}
	return &AggregatorError{Stage: stage, Err: err}
}

func decodeQuote(body []byte) (*Quote, error) {
	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &AggregatorError{Stage: StageQuote, Body: string(body), Err: fmt.Errorf("decode quote: %w", err)}
	}
	outAmount, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return nil, &AggregatorError{Stage: StageQuote, Body: string(body), Err: fmt.Errorf("invalid outAmount %q", resp.OutAmount)}
	}
	inAmount, _ := strconv.ParseUint(resp.InAmount, 10, 64)

	impact := decimal.Zero
	if resp.PriceImpactPct != "" {
		if parsed, err := decimal.NewFromString(resp.PriceImpactPct); err == nil {
			impact = parsed
		}
	}

	labels := make([]string, 0, len(resp.RoutePlan))
	for _, step := range resp.RoutePlan {
		if step.SwapInfo.Label != "" {
			labels = append(labels, step.SwapInfo.Label)
		}
	}

	raw := make(json.RawMessage, len(body))
	copy(raw, body)
	return &Quote{
		InputMint:      resp.InputMint,
		OutputMint:     resp.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: impact,
		RouteLabels:    labels,
		Raw:            raw,
	}, nil
}
