// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solsniper-bot/internal/blockchain"
	"github.com/rovshanmuradov/solsniper-bot/internal/blockchain/solbc/rpc"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// Client – тонкий адаптер для чтения состояния Solana и отправки готовых транзакций.
type Client struct {
	pool     *rpc.Pool
	analyzer *ErrorAnalyzer
	logger   *zap.Logger
}

// NewClient создаёт клиент поверх пула RPC узлов.
func NewClient(urls []string, logger *zap.Logger) (*Client, error) {
	if len(urls) == 0 {
		return nil, rpc.ErrNoActiveClients
	}
	logger = logger.Named("solbc-client")
	return &Client{
		pool:     rpc.NewPool(urls, logger),
		analyzer: NewErrorAnalyzer(logger),
		logger:   logger,
	}, nil
}

// SetObserver attaches a latency/error observer to every RPC attempt.
func (c *Client) SetObserver(o rpc.Observer) {
	c.pool.Observer = o
}

// Pool exposes the node pool, mostly for tests and metrics.
func (c *Client) Pool() *rpc.Pool {
	return c.pool
}

// SOLBalance returns the confirmed SOL balance of owner. Errors are returned
// as is; callers that only display a balance use SOLBalanceOrZero.
func (c *Client) SOLBalance(ctx context.Context, owner solana.PublicKey) (decimal.Decimal, error) {
	var lamports uint64
	err := c.pool.ExecuteWithRetry(ctx, "getBalance", func(node *rpc.NodeClient) error {
		result, err := node.Client.GetBalance(ctx, owner, solanarpc.CommitmentConfirmed)
		if err != nil {
			return err
		}
		lamports = result.Value
		return nil
	})
	if err != nil {
		c.logger.Error("GetBalance error", zap.String("owner", owner.String()), zap.Error(err))
		return decimal.Zero, err
	}
	return LamportsToSOL(lamports), nil
}

// SOLBalanceOrZero is the display variant of SOLBalance.
func (c *Client) SOLBalanceOrZero(ctx context.Context, owner solana.PublicKey) decimal.Decimal {
	balance, err := c.SOLBalance(ctx, owner)
	if err != nil {
		c.logger.Warn("⚠️ Showing zero SOL balance after RPC failure", zap.String("owner", owner.String()))
		return decimal.Zero
	}
	return balance
}

// TokenBalance sums the raw amounts of every token account owner holds for mint.
func (c *Client) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	var accounts *solanarpc.GetTokenAccountsResult
	err := c.pool.ExecuteWithRetry(ctx, "getTokenAccountsByOwner", func(node *rpc.NodeClient) error {
		result, err := node.Client.GetTokenAccountsByOwner(ctx, owner,
			&solanarpc.GetTokenAccountsConfig{Mint: mint.ToPointer()},
			&solanarpc.GetTokenAccountsOpts{
				Commitment: solanarpc.CommitmentConfirmed,
				Encoding:   solana.EncodingJSONParsed,
			})
		if err != nil {
			return err
		}
		accounts = result
		return nil
	})
	if err != nil {
		c.logger.Error("GetTokenAccountsByOwner error",
			zap.String("owner", owner.String()),
			zap.String("mint", mint.String()),
			zap.Error(err))
		return 0, err
	}

	total := new(big.Int)
	for _, account := range accounts.Value {
		if account == nil || account.Account.Data == nil {
			continue
		}
		amount, err := parsedTokenAmount(account.Account.Data.GetRawJSON())
		if err != nil {
			return 0, fmt.Errorf("token account %s: %w", account.Pubkey, err)
		}
		total.Add(total, amount)
	}
	if !total.IsUint64() {
		return 0, fmt.Errorf("token balance %s overflows uint64", total)
	}
	return total.Uint64(), nil
}

// TokenBalanceOrZero is the display variant of TokenBalance.
func (c *Client) TokenBalanceOrZero(ctx context.Context, owner, mint solana.PublicKey) uint64 {
	balance, err := c.TokenBalance(ctx, owner, mint)
	if err != nil {
		c.logger.Warn("⚠️ Showing zero token balance after RPC failure",
			zap.String("owner", owner.String()),
			zap.String("mint", mint.String()))
		return 0
	}
	return balance
}

// SendRawTransaction submits an already signed wire-format transaction to a
// single node. It is never retried here.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte, opts blockchain.SendOptions) (solana.Signature, error) {
	node := c.pool.GetNextClient()
	if node == nil {
		return solana.Signature{}, rpc.ErrNoActiveClients
	}

	txOpts := solanarpc.TransactionOpts{SkipPreflight: opts.SkipPreflight}
	if opts.MaxRetries > 0 {
		maxRetries := opts.MaxRetries
		txOpts.MaxRetries = &maxRetries
	}

	sig, err := node.Client.SendRawTransactionWithOpts(ctx, raw, txOpts)
	if err != nil {
		analysis := c.analyzer.AnalyzeRPCError(err)
		c.logger.Error("SendRawTransaction error",
			zap.String("node", node.URL),
			zap.Any("analysis", analysis),
			zap.Error(err))
		return solana.Signature{}, rpc.NewError(err, node.URL, "sendTransaction")
	}
	c.logger.Info("📤 Transaction sent", zap.String("signature", sig.String()))
	return sig, nil
}

// Ping asks the next node for its health.
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.ExecuteWithRetry(ctx, "getHealth", func(node *rpc.NodeClient) error {
		_, err := node.Client.GetHealth(ctx)
		return err
	})
}

// LamportsToSOL converts an integer lamport amount to SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromUint64(lamports).Shift(-9)
}

// SOLToLamports converts a SOL amount to lamports, truncating sub-lamport dust.
func SOLToLamports(sol decimal.Decimal) (uint64, error) {
	lamports := sol.Shift(9).Truncate(0)
	if lamports.IsNegative() {
		return 0, fmt.Errorf("negative SOL amount %s", sol)
	}
	value := lamports.BigInt()
	if !value.IsUint64() {
		return 0, fmt.Errorf("SOL amount %s overflows lamports", sol)
	}
	return value.Uint64(), nil
}

type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			TokenAmount struct {
				Amount string `json:"amount"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

func parsedTokenAmount(raw []byte) (*big.Int, error) {
	var parsed parsedTokenAccount
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode jsonParsed account: %w", err)
	}
	amount, ok := new(big.Int).SetString(parsed.Parsed.Info.TokenAmount.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid token amount %q", parsed.Parsed.Info.TokenAmount.Amount)
	}
	return amount, nil
}

// Гарантируем, что Client реализует интерфейс blockchain.Ledger.
var _ blockchain.Ledger = (*Client)(nil)
