package sniper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mex-balancer-bot-go/internal/chain"
	"mex-balancer-bot-go/internal/config"
	"mex-balancer-bot-go/internal/jito"
	"mex-balancer-bot-go/internal/jupiter"
	"mex-balancer-bot-go/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	testWallet = "Wa11et1111111111111111111111111111111111111"
)

func setupTest(dryRun bool, withJito bool) (*Sniper, *mocks.Jupiter, *mocks.Chain, *mocks.BundleSender) {
	jup := new(mocks.Jupiter)
	c := new(mocks.Chain)
	c.On("WalletAddress").Return(testWallet).Maybe()

	var s *Sniper
	bundles := new(mocks.BundleSender)
	trading := config.Trading{DryRun: dryRun, SellSlippageBps: 300}
	jupCfg := config.Jupiter{PriorityFeeLamports: 100000}
	jitoCfg := config.Jito{Enabled: withJito, TipLamports: 10000}
	if withJito {
		s = New(trading, jupCfg, jitoCfg, jup, c, bundles, zap.NewNop())
	} else {
		s = New(trading, jupCfg, jitoCfg, jup, c, nil, zap.NewNop())
	}
	return s, jup, c, bundles
}

func TestSnipe(t *testing.T) {
	buyReq := jupiter.QuoteRequest{InputMint: jupiter.SOLMint, OutputMint: testMint, Amount: 500_000_000, SlippageBps: 100}
	quote := &jupiter.QuoteResponse{OutAmount: "250000000", PriceImpactPct: "0.012", Raw: []byte(`{}`)}

	t.Run("LiveOverRPC", func(t *testing.T) {
		// Arrange
		s, jup, c, _ := setupTest(false, false)
		jup.On("Quote", mock.Anything, buyReq).Return(quote, nil)
		jup.On("Swap", mock.Anything, jupiter.SwapRequest{Quote: quote, UserPublicKey: testWallet, PriorityFeeLamports: 100000}).
			Return(&jupiter.SwapResponse{SwapTransaction: "dW5zaWduZWQ="}, nil)
		c.On("TokenDecimals", mock.Anything, testMint).Return(uint8(6), nil)
		c.On("SignAndSend", mock.Anything, "dW5zaWduZWQ=").Return("liveSig", nil)

		// Act
		res, err := s.Snipe(context.Background(), testMint, 0.5, 100)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "liveSig", res.Signature)
		assert.False(t, res.Simulated)
		assert.Equal(t, uint64(250_000_000), res.TokenAmount)
		assert.InDelta(t, 250.0, res.TokensUI(), 1e-9)
		assert.InDelta(t, 0.002, res.EntryPrice, 1e-12)
		assert.InDelta(t, 1.2, res.PriceImpact, 1e-9)
		jup.AssertExpectations(t)
		c.AssertExpectations(t)
	})

	t.Run("LiveOverJito", func(t *testing.T) {
		s, jup, c, bundles := setupTest(false, true)
		jup.On("Quote", mock.Anything, buyReq).Return(quote, nil)
		jup.On("Swap", mock.Anything, jupiter.SwapRequest{Quote: quote, UserPublicKey: testWallet, PriorityFeeLamports: 100000, JitoTipLamports: 10000}).
			Return(&jupiter.SwapResponse{SwapTransaction: "dW5zaWduZWQ="}, nil)
		c.On("TokenDecimals", mock.Anything, testMint).Return(uint8(6), nil)
		c.On("SignTransaction", "dW5zaWduZWQ=").Return("c2lnbmVk", "jitoSig", nil)
		bundles.On("SendBundle", mock.Anything, []string{"c2lnbmVk"}).Return("bundle-1", nil)
		c.On("Confirm", mock.Anything, "jitoSig").Return(nil)

		res, err := s.Snipe(context.Background(), testMint, 0.5, 100)

		require.NoError(t, err)
		assert.Equal(t, "jitoSig", res.Signature)
		assert.Equal(t, "bundle-1", res.BundleID)
		c.AssertNotCalled(t, "SendSigned", mock.Anything, mock.Anything)
		bundles.AssertExpectations(t)
	})

	t.Run("JitoRejectedFallsBackToRPC", func(t *testing.T) {
		s, jup, c, bundles := setupTest(false, true)
		jup.On("Quote", mock.Anything, buyReq).Return(quote, nil)
		jup.On("Swap", mock.Anything, mock.Anything).Return(&jupiter.SwapResponse{SwapTransaction: "dW5zaWduZWQ="}, nil)
		c.On("TokenDecimals", mock.Anything, testMint).Return(uint8(6), nil)
		c.On("SignTransaction", "dW5zaWduZWQ=").Return("c2lnbmVk", "jitoSig", nil)
		bundles.On("SendBundle", mock.Anything, mock.Anything).Return("", errors.New("rate limited"))
		c.On("SendSigned", mock.Anything, "c2lnbmVk").Return("jitoSig", nil)
		c.On("Confirm", mock.Anything, "jitoSig").Return(nil)

		res, err := s.Snipe(context.Background(), testMint, 0.5, 100)

		require.NoError(t, err)
		assert.Equal(t, "jitoSig", res.Signature)
		assert.Empty(t, res.BundleID)
	})

	t.Run("JitoConfirmTimeout", func(t *testing.T) {
		testCases := []struct {
			name       string
			status     *jito.BundleStatus
			statusErr  error
			wantResend bool
		}{
			{"BundleLanded", &jito.BundleStatus{BundleID: "bundle-1", Slot: 42, ConfirmationStatus: "finalized"}, nil, false},
			{"BundleNotLanded", nil, nil, true},
			{"BundleProcessedOnly", &jito.BundleStatus{BundleID: "bundle-1", ConfirmationStatus: "processed"}, nil, true},
			{"StatusLookupFails", nil, errors.New("rate limited"), true},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				// Arrange
				s, jup, c, bundles := setupTest(false, true)
				jup.On("Quote", mock.Anything, buyReq).Return(quote, nil)
				jup.On("Swap", mock.Anything, mock.Anything).Return(&jupiter.SwapResponse{SwapTransaction: "dW5zaWduZWQ="}, nil)
				c.On("TokenDecimals", mock.Anything, testMint).Return(uint8(6), nil)
				c.On("SignTransaction", "dW5zaWduZWQ=").Return("c2lnbmVk", "jitoSig", nil)
				bundles.On("SendBundle", mock.Anything, []string{"c2lnbmVk"}).Return("bundle-1", nil)
				c.On("Confirm", mock.Anything, "jitoSig").Return(chain.ErrConfirmTimeout).Once()
				bundles.On("GetBundleStatus", mock.Anything, "bundle-1").Return(tc.status, tc.statusErr)
				if tc.wantResend {
					c.On("SendSigned", mock.Anything, "c2lnbmVk").Return("jitoSig", nil)
					c.On("Confirm", mock.Anything, "jitoSig").Return(nil).Once()
				}

				// Act
				res, err := s.Snipe(context.Background(), testMint, 0.5, 100)

				// Assert
				require.NoError(t, err)
				assert.Equal(t, "jitoSig", res.Signature)
				assert.Equal(t, "bundle-1", res.BundleID)
				if tc.wantResend {
					c.AssertCalled(t, "SendSigned", mock.Anything, "c2lnbmVk")
				} else {
					c.AssertNotCalled(t, "SendSigned", mock.Anything, mock.Anything)
				}
				bundles.AssertExpectations(t)
			})
		}
	})

	t.Run("JitoFailedOnChain", func(t *testing.T) {
		s, jup, c, bundles := setupTest(false, true)
		jup.On("Quote", mock.Anything, buyReq).Return(quote, nil)
		jup.On("Swap", mock.Anything, mock.Anything).Return(&jupiter.SwapResponse{SwapTransaction: "dW5zaWduZWQ="}, nil)
		c.On("TokenDecimals", mock.Anything, testMint).Return(uint8(6), nil)
		c.On("SignTransaction", "dW5zaWduZWQ=").Return("c2lnbmVk", "jitoSig", nil)
		bundles.On("SendBundle", mock.Anything, mock.Anything).Return("bundle-1", nil)
		c.On("Confirm", mock.Anything, "jitoSig").Return(chain.ErrTxFailed)

		_, err := s.Snipe(context.Background(), testMint, 0.5, 100)

		assert.ErrorIs(t, err, chain.ErrTxFailed)
		bundles.AssertNotCalled(t, "GetBundleStatus", mock.Anything, mock.Anything)
	})

	t.Run("DryRun", func(t *testing.T) {
		s, jup, c, _ := setupTest(true, false)
		jup.On("Quote", mock.Anything, buyReq).Return(quote, nil)
		c.On("TokenDecimals", mock.Anything, testMint).Return(uint8(6), nil)

		res, err := s.Snipe(context.Background(), testMint, 0.5, 100)

		require.NoError(t, err)
		assert.True(t, res.Simulated)
		assert.True(t, strings.HasPrefix(res.Signature, SimulatedPrefix))
		jup.AssertNotCalled(t, "Swap", mock.Anything, mock.Anything)
	})

	t.Run("NoLiquidity", func(t *testing.T) {
		s, jup, _, _ := setupTest(false, false)
		jup.On("Quote", mock.Anything, buyReq).Return(nil, jupiter.ErrNoRoute)

		_, err := s.Snipe(context.Background(), testMint, 0.5, 100)

		assert.ErrorIs(t, err, ErrNoLiquidity)
	})

	t.Run("ZeroOut", func(t *testing.T) {
		s, jup, _, _ := setupTest(false, false)
		jup.On("Quote", mock.Anything, buyReq).Return(&jupiter.QuoteResponse{OutAmount: "0"}, nil)

		_, err := s.Snipe(context.Background(), testMint, 0.5, 100)

		assert.ErrorIs(t, err, ErrNoLiquidity)
	})

	t.Run("SendFails", func(t *testing.T) {
		s, jup, c, _ := setupTest(false, false)
		jup.On("Quote", mock.Anything, buyReq).Return(quote, nil)
		jup.On("Swap", mock.Anything, mock.Anything).Return(&jupiter.SwapResponse{SwapTransaction: "dW5zaWduZWQ="}, nil)
		c.On("TokenDecimals", mock.Anything, testMint).Return(uint8(6), nil)
		c.On("SignAndSend", mock.Anything, mock.Anything).Return("", errors.New("blockhash not found"))

		_, err := s.Snipe(context.Background(), testMint, 0.5, 100)

		assert.ErrorContains(t, err, "blockhash not found")
	})
}

func TestSell(t *testing.T) {
	t.Run("CapsAtBalance", func(t *testing.T) {
		// Arrange
		s, jup, c, _ := setupTest(false, false)
		c.On("TokenBalance", mock.Anything, testMint).Return(uint64(90), nil)
		sellReq := jupiter.QuoteRequest{InputMint: testMint, OutputMint: jupiter.SOLMint, Amount: 90, SlippageBps: 300}
		quote := &jupiter.QuoteResponse{OutAmount: "1200000000", Raw: []byte(`{}`)}
		jup.On("Quote", mock.Anything, sellReq).Return(quote, nil)
		jup.On("Swap", mock.Anything, mock.Anything).Return(&jupiter.SwapResponse{SwapTransaction: "dHg="}, nil)
		c.On("SignAndSend", mock.Anything, "dHg=").Return("sellSig", nil)

		// Act
		res, err := s.Sell(context.Background(), testMint, 100, 0)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, uint64(90), res.AmountSold)
		assert.InDelta(t, 1.2, res.OutSOL, 1e-9)
		assert.Equal(t, "sellSig", res.Signature)
	})

	t.Run("ZeroBalance", func(t *testing.T) {
		s, jup, c, _ := setupTest(false, false)
		c.On("TokenBalance", mock.Anything, testMint).Return(uint64(0), nil)

		_, err := s.Sell(context.Background(), testMint, 100, 0)

		assert.ErrorIs(t, err, ErrZeroBalance)
		jup.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
	})

	t.Run("DryRunSkipsBalance", func(t *testing.T) {
		s, jup, c, _ := setupTest(true, false)
		jup.On("Quote", mock.Anything, mock.Anything).Return(&jupiter.QuoteResponse{OutAmount: "500000000"}, nil)

		res, err := s.Sell(context.Background(), testMint, 100, 0)

		require.NoError(t, err)
		assert.True(t, res.Simulated)
		assert.InDelta(t, 0.5, res.OutSOL, 1e-9)
		c.AssertNotCalled(t, "TokenBalance", mock.Anything, mock.Anything)
	})
}

func TestTokenValue(t *testing.T) {
	s, jup, _, _ := setupTest(false, false)
	jup.On("Quote", mock.Anything, jupiter.QuoteRequest{InputMint: testMint, OutputMint: jupiter.SOLMint, Amount: 1000, SlippageBps: 300}).
		Return(&jupiter.QuoteResponse{OutAmount: "750000000"}, nil)

	v, err := s.TokenValue(context.Background(), testMint, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, v, 1e-9)

	zero, err := s.TokenValue(context.Background(), testMint, 0)
	require.NoError(t, err)
	assert.Zero(t, zero)
}
