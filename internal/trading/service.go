// internal/trading/service.go
package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solsniper-bot/internal/blockchain"
	"github.com/rovshanmuradov/solsniper-bot/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solsniper-bot/internal/jupiter"
	"github.com/rovshanmuradov/solsniper-bot/internal/logger"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage"
	"github.com/rovshanmuradov/solsniper-bot/internal/storage/models"
	"github.com/rovshanmuradov/solsniper-bot/internal/tokeninfo"
	"github.com/rovshanmuradov/solsniper-bot/internal/wallet"
)

const (
	// DefaultSubmitTimeout bounds submission and bookkeeping once a signed
	// transaction exists. It is not tied to the caller's context.
	DefaultSubmitTimeout = 60 * time.Second
	metadataTimeout      = 5 * time.Second
)

// Aggregator is the swap router used for quote, build and submit.
type Aggregator interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error)
	BuildTransaction(ctx context.Context, quote *jupiter.Quote, payer solana.PublicKey, opts jupiter.BuildOptions) (jupiter.UnsignedTx, error)
	Submit(ctx context.Context, signed []byte) (solana.Signature, error)
}

// TokenLookup resolves token metadata; failures never block a trade.
type TokenLookup interface {
	Lookup(ctx context.Context, mint string) (*tokeninfo.TokenInfo, error)
}

// Config collects the collaborators of the Service.
type Config struct {
	Store      storage.Store
	Ledger     blockchain.Ledger
	Aggregator Aggregator
	Tokens     TokenLookup // optional
	Events     *EventBus   // optional
	Logger     *zap.Logger

	SubmitTimeout time.Duration
}

// Service orchestrates registration, balances, buys and sells.
type Service struct {
	store         storage.Store
	ledger        blockchain.Ledger
	aggregator    Aggregator
	tokens        TokenLookup
	events        *EventBus
	logger        *zap.Logger
	submitTimeout time.Duration
	now           func() time.Time
}

func NewService(cfg Config) *Service {
	timeout := cfg.SubmitTimeout
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	return &Service{
		store:         cfg.Store,
		ledger:        cfg.Ledger,
		aggregator:    cfg.Aggregator,
		tokens:        cfg.Tokens,
		events:        cfg.Events,
		logger:        cfg.Logger.Named("trading"),
		submitTimeout: timeout,
		now:           time.Now,
	}
}

// BuyRequest spends AmountSOL on TokenAddress.
type BuyRequest struct {
	TelegramID   int64
	TokenAddress string
	AmountSOL    decimal.Decimal
}

// SellRequest sells Percent (1-100) of the live token balance.
type SellRequest struct {
	TelegramID   int64
	TokenAddress string
	Percent      int
}

// TradeResult describes an executed swap. Recorded is false when the swap
// landed but the store write failed.
type TradeResult struct {
	Signature    solana.Signature
	Side         models.TradeSide
	TokenAddress string
	AmountIn     decimal.Decimal
	AmountOut    decimal.Decimal
	Token        *tokeninfo.TokenInfo
	Recorded     bool
}

// Register returns the user, creating a wallet on first contact.
// created reports whether a new user was stored.
func (s *Service) Register(ctx context.Context, telegramID int64, username string) (user *models.User, created bool, err error) {
	user, err = s.store.GetUser(ctx, telegramID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	w, err := wallet.Generate()
	if err != nil {
		return nil, false, err
	}
	user = &models.User{
		TelegramID:    telegramID,
		Username:      username,
		WalletAddress: w.Address(),
		PrivateKey:    w.ExportKey(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		// Two /start updates raced; the other one won.
		if errors.Is(err, storage.ErrAlreadyExists) {
			existing, getErr := s.store.GetUser(ctx, telegramID)
			return existing, false, getErr
		}
		return nil, false, err
	}

	logger.WithUser(s.logger, telegramID).Info("👛 Wallet created",
		zap.String("wallet", logger.ShortenAddress(user.WalletAddress)))
	s.events.Publish(UserRegisteredEvent{
		TelegramID:    telegramID,
		WalletAddress: user.WalletAddress,
		Timestamp:     s.now(),
	})
	return user, true, nil
}

// User loads a registered user.
func (s *Service) User(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := s.store.GetUser(ctx, telegramID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, err
	}
	return user, nil
}

// Balance is the display balance of a wallet; RPC failures read as zero.
func (s *Service) Balance(ctx context.Context, walletAddress string) decimal.Decimal {
	owner, err := solana.PublicKeyFromBase58(walletAddress)
	if err != nil {
		s.logger.Warn("Stored wallet address is invalid", zap.String("wallet", walletAddress))
		return decimal.Zero
	}
	return s.ledger.SOLBalanceOrZero(ctx, owner)
}

// Settings returns the user's settings, falling back to defaults on error.
func (s *Service) Settings(ctx context.Context, telegramID int64) models.Settings {
	settings, err := s.store.GetSettings(ctx, telegramID)
	if err != nil {
		logger.WithUser(s.logger, telegramID).Warn("Using default settings", zap.Error(err))
		return models.DefaultSettings(telegramID)
	}
	return settings
}

// Buy swaps SOL for a token: quote, build, sign, submit, record.
// Nothing is written to the store unless submission succeeded.
func (s *Service) Buy(ctx context.Context, req BuyRequest) (*TradeResult, error) {
	log := logger.WithUser(logger.WithOperation(s.logger, "buy"), req.TelegramID)

	result, err := s.buy(ctx, log, req)
	if err != nil {
		s.fail(log, req.TelegramID, models.SideBuy, req.TokenAddress, err)
		return nil, err
	}
	return result, nil
}

func (s *Service) buy(ctx context.Context, log *zap.Logger, req BuyRequest) (*TradeResult, error) {
	mint, err := wallet.ParseAddress(req.TokenAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, req.TokenAddress)
	}
	if !req.AmountSOL.IsPositive() {
		return nil, fmt.Errorf("%w: %s SOL", ErrInvalidAmount, req.AmountSOL)
	}
	lamports, err := solbc.SOLToLamports(req.AmountSOL)
	if err != nil || lamports == 0 {
		return nil, fmt.Errorf("%w: %s SOL", ErrInvalidAmount, req.AmountSOL)
	}

	user, w, err := s.loadWallet(ctx, req.TelegramID)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.SOLBalance(ctx, w.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	if balance.LessThan(req.AmountSOL) {
		return nil, &InsufficientFundsError{Required: req.AmountSOL, Available: balance}
	}

	settings := s.Settings(ctx, user.TelegramID)
	slippageBps, err := settings.SlippageBps()
	if err != nil {
		return nil, err
	}

	log.Info("🚀 Buy started",
		zap.String("token", logger.ShortenAddress(mint.String())),
		zap.String("amount_sol", req.AmountSOL.String()),
		zap.Uint16("slippage_bps", slippageBps))

	quote, err := s.aggregator.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   jupiter.SOLMint,
		OutputMint:  mint.String(),
		Amount:      lamports,
		SlippageBps: slippageBps,
	})
	if err != nil {
		return nil, err
	}

	signature, submitCtx, cancel, err := s.execute(ctx, w, quote, settings)
	if err != nil {
		return nil, err
	}
	defer cancel()

	info := s.lookupToken(submitCtx, log, mint.String())
	trade := &models.Trade{
		TelegramID:   user.TelegramID,
		TokenAddress: mint.String(),
		Side:         models.SideBuy,
		AmountIn:     req.AmountSOL,
		AmountOut:    decimal.NewFromUint64(quote.OutAmount),
		Signature:    signature.String(),
	}
	delta := models.PositionDelta{
		TelegramID:   user.TelegramID,
		TokenAddress: mint.String(),
		Amount:       decimal.NewFromUint64(quote.OutAmount),
	}
	if info != nil {
		delta.Symbol, delta.Name = info.Symbol, info.Name
		if info.PriceNative.IsPositive() {
			delta.EntryPrice = decimal.NewNullDecimal(info.PriceNative)
		}
	}

	return s.record(submitCtx, log, signature, trade, delta, info), nil
}

// Sell swaps Percent of the live token balance back to SOL.
func (s *Service) Sell(ctx context.Context, req SellRequest) (*TradeResult, error) {
	log := logger.WithUser(logger.WithOperation(s.logger, "sell"), req.TelegramID)

	result, err := s.sell(ctx, log, req)
	if err != nil {
		s.fail(log, req.TelegramID, models.SideSell, req.TokenAddress, err)
		return nil, err
	}
	return result, nil
}

func (s *Service) sell(ctx context.Context, log *zap.Logger, req SellRequest) (*TradeResult, error) {
	if req.Percent < 1 || req.Percent > 100 {
		return nil, fmt.Errorf("%w: %d%%", ErrInvalidAmount, req.Percent)
	}
	mint, err := wallet.ParseAddress(req.TokenAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, req.TokenAddress)
	}

	user, w, err := s.loadWallet(ctx, req.TelegramID)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.TokenBalance(ctx, w.PublicKey, mint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	if balance == 0 {
		return nil, ErrNoHoldings
	}
	amount := SellAmount(balance, req.Percent)
	if amount == 0 {
		return nil, fmt.Errorf("%w: %d%% of %d rounds to zero", ErrInvalidAmount, req.Percent, balance)
	}

	settings := s.Settings(ctx, user.TelegramID)
	slippageBps, err := settings.SlippageBps()
	if err != nil {
		return nil, err
	}

	log.Info("💸 Sell started",
		zap.String("token", logger.ShortenAddress(mint.String())),
		zap.Uint64("balance", balance),
		zap.Uint64("amount", amount),
		zap.Int("percent", req.Percent))

	quote, err := s.aggregator.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   mint.String(),
		OutputMint:  jupiter.SOLMint,
		Amount:      amount,
		SlippageBps: slippageBps,
	})
	if err != nil {
		return nil, err
	}

	signature, submitCtx, cancel, err := s.execute(ctx, w, quote, settings)
	if err != nil {
		return nil, err
	}
	defer cancel()

	sold := decimal.NewFromUint64(amount)
	trade := &models.Trade{
		TelegramID:   user.TelegramID,
		TokenAddress: mint.String(),
		Side:         models.SideSell,
		AmountIn:     sold,
		AmountOut:    solbc.LamportsToSOL(quote.OutAmount),
		Signature:    signature.String(),
	}
	delta := models.PositionDelta{
		TelegramID:   user.TelegramID,
		TokenAddress: mint.String(),
		Amount:       sold.Neg(),
	}

	return s.record(submitCtx, log, signature, trade, delta, nil), nil
}

// SellAmount is floor(balance * percent / 100) without overflowing uint64.
func SellAmount(balance uint64, percent int) uint64 {
	p := uint64(percent)
	return balance/100*p + balance%100*p/100
}

func (s *Service) loadWallet(ctx context.Context, telegramID int64) (*models.User, *wallet.Wallet, error) {
	user, err := s.User(ctx, telegramID)
	if err != nil {
		return nil, nil, err
	}
	w, err := wallet.NewWallet(user.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("load wallet: %w", err)
	}
	return user, w, nil
}

// execute builds, signs and submits the quoted swap. Submission runs on a
// context detached from ctx so an expiring update cannot abandon a signed
// transaction; the returned context is used for bookkeeping afterwards.
func (s *Service) execute(ctx context.Context, w *wallet.Wallet, quote *jupiter.Quote, settings models.Settings) (solana.Signature, context.Context, context.CancelFunc, error) {
	unsigned, err := s.aggregator.BuildTransaction(ctx, quote, w.PublicKey, jupiter.BuildOptions{
		PrioritizationFeeLamports: settings.PriorityFee.FeeLamports(),
	})
	if err != nil {
		return solana.Signature{}, nil, nil, err
	}

	signed, _, err := w.SignSerialized(unsigned.Raw)
	if err != nil {
		return solana.Signature{}, nil, nil, fmt.Errorf("sign swap transaction: %w", err)
	}

	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.submitTimeout)
	signature, err := s.aggregator.Submit(submitCtx, signed)
	if err != nil {
		cancel()
		return solana.Signature{}, nil, nil, err
	}
	return signature, submitCtx, cancel, nil
}

func (s *Service) record(ctx context.Context, log *zap.Logger, signature solana.Signature, trade *models.Trade, delta models.PositionDelta, info *tokeninfo.TokenInfo) *TradeResult {
	result := &TradeResult{
		Signature:    signature,
		Side:         trade.Side,
		TokenAddress: trade.TokenAddress,
		AmountIn:     trade.AmountIn,
		AmountOut:    trade.AmountOut,
		Token:        info,
		Recorded:     true,
	}

	txLog := logger.WithTransaction(log, trade.Signature)
	if err := s.store.RecordTrade(ctx, trade, delta); err != nil {
		result.Recorded = false
		txLog.Error("Swap landed but was not recorded", zap.Error(err))
	} else {
		txLog.Info("✅ Trade executed",
			zap.String("side", string(trade.Side)),
			zap.String("amount_in", trade.AmountIn.String()),
			zap.String("amount_out", trade.AmountOut.String()))
	}

	s.events.Publish(TradeExecutedEvent{
		TelegramID:  trade.TelegramID,
		Side:        trade.Side,
		TokenMint:   trade.TokenAddress,
		AmountIn:    trade.AmountIn,
		AmountOut:   trade.AmountOut,
		TxSignature: trade.Signature,
		Recorded:    result.Recorded,
		Timestamp:   s.now(),
	})
	return result
}

func (s *Service) fail(log *zap.Logger, telegramID int64, side models.TradeSide, token string, err error) {
	stage := FailureStage(err)
	log.Warn("Trade failed",
		zap.String("side", string(side)),
		zap.String("stage", stage),
		zap.Error(err))
	s.events.Publish(TradeFailedEvent{
		TelegramID: telegramID,
		Side:       side,
		TokenMint:  token,
		Stage:      stage,
		Error:      err.Error(),
		Timestamp:  s.now(),
	})
}

func (s *Service) lookupToken(ctx context.Context, log *zap.Logger, mint string) *tokeninfo.TokenInfo {
	if s.tokens == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	info, err := s.tokens.Lookup(ctx, mint)
	if err != nil {
		log.Debug("Token metadata unavailable", zap.Error(err))
		return nil
	}
	return info
}

// TokenInfo is the token card lookup for the front-end.
func (s *Service) TokenInfo(ctx context.Context, mint string) (*tokeninfo.TokenInfo, error) {
	if s.tokens == nil {
		return nil, tokeninfo.ErrTokenNotFound
	}
	return s.tokens.Lookup(ctx, mint)
}

// Positions lists open positions; on error the caller shows an empty list.
func (s *Service) Positions(ctx context.Context, telegramID int64) ([]models.Position, error) {
	return s.store.GetPositions(ctx, telegramID)
}

// Trades lists the latest trades of a user.
func (s *Service) Trades(ctx context.Context, telegramID int64, limit int) ([]models.Trade, error) {
	return s.store.GetTrades(ctx, telegramID, limit)
}

// SetSlippage stores a new slippage percentage.
func (s *Service) SetSlippage(ctx context.Context, telegramID int64, percent decimal.Decimal) error {
	if _, err := (models.Settings{Slippage: percent}).SlippageBps(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return s.store.UpdateSettings(ctx, telegramID, models.SettingsUpdate{Slippage: &percent})
}
