package binance

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"mex-balancer-bot-go/internal/config"

	gobinance "github.com/adshao/go-binance/v2"
	"go.uber.org/zap"
)

const (
	defaultSymbol   = "SOLUSDT"
	defaultCacheTTL = 60 * time.Second
)

// PriceSource returns the SOL price in USD.
type PriceSource interface {
	SOLPrice(ctx context.Context) (float64, error)
}

// PriceFeed reads the SOL/USDT ticker from Binance and caches it.
type PriceFeed struct {
	client *gobinance.Client
	symbol string
	ttl    time.Duration
	logger *zap.Logger

	mu        sync.Mutex
	price     float64
	fetchedAt time.Time
}

var _ PriceSource = (*PriceFeed)(nil)

// NewPriceFeed creates a public (unauthenticated) Binance price feed.
func NewPriceFeed(cfg *config.Binance, logger *zap.Logger) *PriceFeed {
	symbol := cfg.Symbol
	if symbol == "" {
		symbol = defaultSymbol
	}
	ttl := time.Duration(cfg.CacheTTL) * time.Second
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &PriceFeed{
		client: gobinance.NewClient("", ""),
		symbol: symbol,
		ttl:    ttl,
		logger: logger.Named("binance"),
	}
}

// SetBaseURL points the feed at another API host.
func (f *PriceFeed) SetBaseURL(url string) {
	f.client.BaseURL = url
}

// SOLPrice returns the cached price, refreshing it once the TTL has passed.
// A stale price is returned if the refresh fails.
func (f *PriceFeed) SOLPrice(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.price > 0 && time.Since(f.fetchedAt) < f.ttl {
		return f.price, nil
	}

	price, err := f.fetch(ctx)
	if err != nil {
		if f.price > 0 {
			f.logger.Warn("Using stale SOL price", zap.Float64("price", f.price), zap.Error(err))
			return f.price, nil
		}
		return 0, err
	}

	f.price = price
	f.fetchedAt = time.Now()
	return price, nil
}

func (f *PriceFeed) fetch(ctx context.Context) (float64, error) {
	prices, err := f.client.NewListPricesService().Symbol(f.symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch price for %s: %w", f.symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price data returned for symbol %s", f.symbol)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price for %s: %w", f.symbol, err)
	}
	f.logger.Debug("Fetched price", zap.String("symbol", f.symbol), zap.Float64("price", price))
	return price, nil
}
