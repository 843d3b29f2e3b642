// Package mocks holds testify mocks of the external service clients.
package mocks

import (
	"context"

	"mex-balancer-bot-go/internal/binance"
	"mex-balancer-bot-go/internal/chain"
	"mex-balancer-bot-go/internal/jito"
	"mex-balancer-bot-go/internal/jupiter"
	"mex-balancer-bot-go/internal/rugcheck"

	"github.com/stretchr/testify/mock"
)

// Jupiter is a mock implementation of jupiter.RestClientInterface.
type Jupiter struct {
	mock.Mock
}

var _ jupiter.RestClientInterface = (*Jupiter)(nil)

func (m *Jupiter) Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jupiter.QuoteResponse), args.Error(1)
}

func (m *Jupiter) Swap(ctx context.Context, req jupiter.SwapRequest) (*jupiter.SwapResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jupiter.SwapResponse), args.Error(1)
}

// RugCheck is a mock implementation of rugcheck.RestClientInterface.
type RugCheck struct {
	mock.Mock
}

var _ rugcheck.RestClientInterface = (*RugCheck)(nil)

func (m *RugCheck) Report(ctx context.Context, mint string) (*rugcheck.Report, error) {
	args := m.Called(ctx, mint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rugcheck.Report), args.Error(1)
}

// AssetFetcher is a mock implementation of chain.AssetFetcher.
type AssetFetcher struct {
	mock.Mock
}

var _ chain.AssetFetcher = (*AssetFetcher)(nil)

func (m *AssetFetcher) GetAsset(ctx context.Context, mint string) (*chain.Asset, error) {
	args := m.Called(ctx, mint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.Asset), args.Error(1)
}

// Chain is a mock implementation of chain.Client.
type Chain struct {
	mock.Mock
}

var _ chain.Client = (*Chain)(nil)

func (m *Chain) WalletAddress() string {
	return m.Called().String(0)
}

func (m *Chain) Balance(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

func (m *Chain) TokenBalance(ctx context.Context, mint string) (uint64, error) {
	args := m.Called(ctx, mint)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *Chain) TokenDecimals(ctx context.Context, mint string) (uint8, error) {
	args := m.Called(ctx, mint)
	return args.Get(0).(uint8), args.Error(1)
}

func (m *Chain) SignTransaction(txBase64 string) (string, string, error) {
	args := m.Called(txBase64)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *Chain) SendSigned(ctx context.Context, signedBase64 string) (string, error) {
	args := m.Called(ctx, signedBase64)
	return args.String(0), args.Error(1)
}

func (m *Chain) Confirm(ctx context.Context, signature string) error {
	return m.Called(ctx, signature).Error(0)
}

func (m *Chain) SignAndSend(ctx context.Context, txBase64 string) (string, error) {
	args := m.Called(ctx, txBase64)
	return args.String(0), args.Error(1)
}

func (m *Chain) Transfer(ctx context.Context, to string, lamports uint64) (string, error) {
	args := m.Called(ctx, to, lamports)
	return args.String(0), args.Error(1)
}

// BundleSender is a mock implementation of jito.BundleSender.
type BundleSender struct {
	mock.Mock
}

var _ jito.BundleSender = (*BundleSender)(nil)

func (m *BundleSender) SendBundle(ctx context.Context, txs []string) (string, error) {
	args := m.Called(ctx, txs)
	return args.String(0), args.Error(1)
}

func (m *BundleSender) GetBundleStatus(ctx context.Context, bundleID string) (*jito.BundleStatus, error) {
	args := m.Called(ctx, bundleID)
	status, _ := args.Get(0).(*jito.BundleStatus)
	return status, args.Error(1)
}

// PriceSource is a mock implementation of binance.PriceSource.
type PriceSource struct {
	mock.Mock
}

var _ binance.PriceSource = (*PriceSource)(nil)

func (m *PriceSource) SOLPrice(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}
