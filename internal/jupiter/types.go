package jupiter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://quote-api.jup.ag/v6"
	// SOLMint is the wrapped SOL mint the aggregator uses for native SOL.
	SOLMint = "So11111111111111111111111111111111111111112"
)

// Stage names the aggregator step that failed.
type Stage string

const (
	StageQuote  Stage = "quote"
	StageBuild  Stage = "build"
	StageSubmit Stage = "submit"
)

// AggregatorError is returned for any failed quote, build or submit step.
// StatusCode and Body are set when the aggregator answered with a non-2xx.
type AggregatorError struct {
	Stage      Stage
	StatusCode int
	Body       string
	Err        error
}

func (e *AggregatorError) Error() string {
	switch {
	case e.StatusCode != 0:
		body := strings.TrimSpace(e.Body)
		if body == "" {
			return fmt.Sprintf("jupiter %s failed: http %d", e.Stage, e.StatusCode)
		}
		return fmt.Sprintf("jupiter %s failed: http %d: %s", e.Stage, e.StatusCode, body)
	case e.Err != nil:
		return fmt.Sprintf("jupiter %s failed: %v", e.Stage, e.Err)
	default:
		return fmt.Sprintf("jupiter %s failed", e.Stage)
	}
}

func (e *AggregatorError) Unwrap() error {
	return e.Err
}

// QuoteRequest asks for an ExactIn route. Amount is in the input mint's
// smallest unit.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps uint16
}

// Quote is a priced route. Raw holds the response body verbatim; it is what
// the swap endpoint expects back.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	PriceImpactPct decimal.Decimal
	RouteLabels    []string
	Raw            json.RawMessage
}

type quoteResponse struct {
	InputMint      string          `json:"inputMint"`
	OutputMint     string          `json:"outputMint"`
	InAmount       string          `json:"inAmount"`
	OutAmount      string          `json:"outAmount"`
	PriceImpactPct string          `json:"priceImpactPct"`
	RoutePlan      []routePlanStep `json:"routePlan"`
}

type routePlanStep struct {
	SwapInfo struct {
		AmmKey string `json:"ammKey"`
		Label  string `json:"label,omitempty"`
	} `json:"swapInfo"`
	Percent *uint8 `json:"percent,omitempty"`
}

// BuildOptions tunes the swap transaction.
type BuildOptions struct {
	PrioritizationFeeLamports uint64
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
	PrioritizationFeeLamports uint64          `json:"prioritizationFeeLamports,omitempty"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// UnsignedTx is the wire-format transaction returned by the swap endpoint.
type UnsignedTx struct {
	Raw                  []byte
	LastValidBlockHeight uint64
}
