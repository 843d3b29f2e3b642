package fees

import (
	"context"
	"errors"
	"testing"

	"mex-balancer-bot-go/internal/chain"
	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	feeWallet     = "FeeWa11et111111111111111111111111111111111"
	tradingWallet = "Trad1ngWa11et11111111111111111111111111111"
)

func TestCalculateFee(t *testing.T) {
	m := NewManager(config.Fees{Percent: 0.5}, nil, false, zap.NewNop())

	testCases := []struct {
		name   string
		profit float64
		want   float64
	}{
		{name: "Profit", profit: 2, want: 0.01},
		{name: "SmallProfit", profit: 0.1, want: 0.0005},
		{name: "BreakEven", profit: 0, want: 0},
		{name: "Loss", profit: -1.5, want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, m.CalculateFee(tc.profit), 1e-12)
		})
	}
}

func TestCollect(t *testing.T) {
	t.Run("Transfers", func(t *testing.T) {
		// Arrange
		c := new(mocks.Chain)
		c.On("WalletAddress").Return(tradingWallet)
		c.On("Transfer", mock.Anything, feeWallet, uint64(5_000_000)).Return("feeSig", nil)
		m := NewManager(config.Fees{Percent: 0.5, Wallet: feeWallet}, c, false, zap.NewNop())

		// Act
		sig, err := m.Collect(context.Background(), 0.005)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "feeSig", sig)
		c.AssertExpectations(t)
	})

	t.Run("TransferError", func(t *testing.T) {
		c := new(mocks.Chain)
		c.On("WalletAddress").Return(tradingWallet)
		c.On("Transfer", mock.Anything, feeWallet, mock.Anything).Return("", errors.New("insufficient funds"))
		m := NewManager(config.Fees{Percent: 0.5, Wallet: feeWallet}, c, false, zap.NewNop())

		_, err := m.Collect(context.Background(), 0.01)

		assert.ErrorContains(t, err, "insufficient funds")
	})

	t.Run("NoOps", func(t *testing.T) {
		c := new(mocks.Chain)
		c.On("WalletAddress").Return(feeWallet)

		zero := NewManager(config.Fees{Percent: 0.5, Wallet: feeWallet}, c, false, zap.NewNop())
		sig, err := zero.Collect(context.Background(), 0)
		assert.NoError(t, err)
		assert.Empty(t, sig)

		dry := NewManager(config.Fees{Percent: 0.5, Wallet: feeWallet}, c, true, zap.NewNop())
		sig, err = dry.Collect(context.Background(), 1)
		assert.NoError(t, err)
		assert.Empty(t, sig)

		self := NewManager(config.Fees{Percent: 0.5, Wallet: feeWallet}, c, false, zap.NewNop())
		sig, err = self.Collect(context.Background(), 1)
		assert.NoError(t, err)
		assert.Empty(t, sig)

		c.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestNewManager_Wallet(t *testing.T) {
	testCases := []struct {
		name       string
		configured string
		withChain  bool
		want       string
	}{
		{"Configured", feeWallet, true, feeWallet},
		{"FallsBackToTradingWallet", "", true, tradingWallet},
		{"NoChain", "", false, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var client chain.Client
			if tc.withChain {
				c := new(mocks.Chain)
				c.On("WalletAddress").Return(tradingWallet).Maybe()
				client = c
			}

			m := NewManager(config.Fees{Percent: 0.5, Wallet: tc.configured}, client, false, zap.NewNop())

			assert.Equal(t, tc.want, m.Wallet())
		})
	}
}

func TestCollect_DefaultWalletSkipsSelfTransfer(t *testing.T) {
	c := new(mocks.Chain)
	c.On("WalletAddress").Return(tradingWallet)
	m := NewManager(config.Fees{Percent: 0.5}, c, false, zap.NewNop())

	sig, err := m.Collect(context.Background(), 0.01)

	require.NoError(t, err)
	assert.Empty(t, sig)
	c.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything)
}

func TestProjections(t *testing.T) {
	m := NewManager(config.Fees{Percent: 0.5}, nil, false, zap.NewNop())

	p := m.Projections(100)

	assert.Equal(t, 100.0, p.WeeklyVolumeSOL)
	assert.InDelta(t, 18.0, p.ProjectedProfitSOL, 1e-9)
	assert.InDelta(t, 0.09, p.PlatformFeesSOL, 1e-9)
	assert.InDelta(t, 17.91, p.UserNetProfitSOL, 1e-9)
	assert.InDelta(t, 0.36, p.MonthlyFeesSOL, 1e-9)
}
