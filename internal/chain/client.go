package chain

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"mex-balancer-bot-go/internal/config"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const (
	defaultConfirmPolls = 30
	defaultPollInterval = time.Second
	sendAttempts        = 3
)

var (
	ErrTxFailed       = errors.New("transaction failed on chain")
	ErrConfirmTimeout = errors.New("transaction not confirmed in time")
)

// Client is the on-chain surface used by the trading components.
type Client interface {
	WalletAddress() string
	Balance(ctx context.Context) (float64, error)
	TokenBalance(ctx context.Context, mint string) (uint64, error)
	TokenDecimals(ctx context.Context, mint string) (uint8, error)
	SignTransaction(txBase64 string) (signed string, signature string, err error)
	SendSigned(ctx context.Context, signedBase64 string) (string, error)
	Confirm(ctx context.Context, signature string) error
	SignAndSend(ctx context.Context, txBase64 string) (string, error)
	Transfer(ctx context.Context, to string, lamports uint64) (string, error)
}

// RPCClient implements Client on a Solana JSON-RPC endpoint with a single signing wallet.
type RPCClient struct {
	rpc          *rpc.Client
	wallet       solana.PrivateKey
	commitment   rpc.CommitmentType
	confirmPolls int
	pollInterval time.Duration
	sendBackoff  time.Duration
	logger       *zap.Logger
}

var _ Client = (*RPCClient)(nil)

// Option customizes an RPCClient.
type Option func(*RPCClient)

// WithPollInterval sets the delay between signature status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *RPCClient) { c.pollInterval = d }
}

// WithSendBackoff sets the base delay between send attempts.
func WithSendBackoff(d time.Duration) Option {
	return func(c *RPCClient) { c.sendBackoff = d }
}

// NewRPCClient creates a client for cfg.RPCURL signing with wallet.
func NewRPCClient(cfg *config.Solana, wallet solana.PrivateKey, logger *zap.Logger, opts ...Option) *RPCClient {
	commitment := rpc.CommitmentConfirmed
	if cfg.Commitment != "" {
		commitment = rpc.CommitmentType(cfg.Commitment)
	}
	polls := cfg.ConfirmPolls
	if polls <= 0 {
		polls = defaultConfirmPolls
	}

	c := &RPCClient{
		rpc:          rpc.New(cfg.RPCURL),
		wallet:       wallet,
		commitment:   commitment,
		confirmPolls: polls,
		pollInterval: defaultPollInterval,
		sendBackoff:  50 * time.Millisecond,
		logger:       logger.Named("chain"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WalletAddress returns the base58 public key of the trading wallet.
func (c *RPCClient) WalletAddress() string {
	return c.wallet.PublicKey().String()
}

// Balance returns the trading wallet balance in SOL.
func (c *RPCClient) Balance(ctx context.Context) (float64, error) {
	return c.balance(ctx, c.wallet.PublicKey())
}

func (c *RPCClient) balance(ctx context.Context, pk solana.PublicKey) (float64, error) {
	out, err := c.rpc.GetBalance(ctx, pk, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return LamportsToSOL(out.Value), nil
}

// TokenBalance sums the raw balance of every wallet token account for mint.
func (c *RPCClient) TokenBalance(ctx context.Context, mint string) (uint64, error) {
	mintPK, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint %q: %w", mint, err)
	}

	accounts, err := c.rpc.GetTokenAccountsByOwner(
		ctx,
		c.wallet.PublicKey(),
		&rpc.GetTokenAccountsConfig{Mint: &mintPK},
		&rpc.GetTokenAccountsOpts{
			Commitment: c.commitment,
			Encoding:   solana.EncodingBase64,
		},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to get token accounts: %w", err)
	}

	var total uint64
	for _, acc := range accounts.Value {
		if acc == nil || acc.Account.Data == nil {
			continue
		}
		// SPL token account layout: mint(32) owner(32) amount(u64 LE).
		data := acc.Account.Data.GetBinary()
		if len(data) < 72 {
			continue
		}
		total += binary.LittleEndian.Uint64(data[64:72])
	}
	return total, nil
}

// TokenDecimals returns the decimals of mint.
func (c *RPCClient) TokenDecimals(ctx context.Context, mint string) (uint8, error) {
	mintPK, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint %q: %w", mint, err)
	}
	out, err := c.rpc.GetTokenSupply(ctx, mintPK, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get token supply: %w", err)
	}
	if out.Value == nil {
		return 0, fmt.Errorf("no supply info for %s", mint)
	}
	return out.Value.Decimals, nil
}

// SignTransaction signs a base64 wire transaction with the wallet.
func (c *RPCClient) SignTransaction(txBase64 string) (string, string, error) {
	tx, err := decodeTransaction(txBase64)
	if err != nil {
		return "", "", err
	}

	// Swap APIs return zeroed signature slots; Sign appends, so start clean.
	tx.Signatures = nil
	walletPK := c.wallet.PublicKey()
	if _, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(walletPK) {
			return &c.wallet
		}
		return nil
	}); err != nil {
		return "", "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", "", fmt.Errorf("failed to encode transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), tx.Signatures[0].String(), nil
}

// SendSigned broadcasts a signed base64 transaction, retrying failed sends.
func (c *RPCClient) SendSigned(ctx context.Context, signedBase64 string) (string, error) {
	tx, err := decodeTransaction(signedBase64)
	if err != nil {
		return "", err
	}

	var lastErr error
	for i := 0; i < sendAttempts; i++ {
		sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       true,
			PreflightCommitment: rpc.CommitmentProcessed,
		})
		if err == nil {
			c.logger.Info("Transaction sent", zap.String("signature", sig.String()))
			return sig.String(), nil
		}

		lastErr = err
		c.logger.Warn("Send attempt failed", zap.Int("attempt", i+1), zap.Error(err))

		if i < sendAttempts-1 {
			select {
			case <-time.After(c.sendBackoff * time.Duration(i+1)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("failed to send transaction: %w", lastErr)
}

// Confirm polls the signature status until it is confirmed, failed or out of polls.
func (c *RPCClient) Confirm(ctx context.Context, signature string) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	for i := 0; i < c.confirmPolls; i++ {
		statuses, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err == nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %v", ErrTxFailed, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		} else if err != nil {
			c.logger.Debug("Signature status poll failed", zap.Error(err))
		}

		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %s", ErrConfirmTimeout, signature)
}

// SignAndSend signs, broadcasts and confirms a base64 transaction.
func (c *RPCClient) SignAndSend(ctx context.Context, txBase64 string) (string, error) {
	signed, _, err := c.SignTransaction(txBase64)
	if err != nil {
		return "", err
	}
	sig, err := c.SendSigned(ctx, signed)
	if err != nil {
		return "", err
	}
	if err := c.Confirm(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// Transfer sends lamports from the wallet to the given address.
func (c *RPCClient) Transfer(ctx context.Context, to string, lamports uint64) (string, error) {
	toPK, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return "", fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("failed to get blockhash: %w", err)
	}

	from := c.wallet.PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, from, toPK).Build(),
		},
		recent.Value.Blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build transfer: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to encode transfer: %w", err)
	}
	return c.SignAndSend(ctx, base64.StdEncoding.EncodeToString(raw))
}

func decodeTransaction(txBase64 string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	return tx, nil
}
