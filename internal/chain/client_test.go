package chain

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mex-balancer-bot-go/internal/config"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// rpcStub answers Solana JSON-RPC calls with canned results keyed by method.
type rpcStub struct {
	mu      sync.Mutex
	results map[string][]string
	calls   map[string]int
}

func newRPCStub() *rpcStub {
	return &rpcStub{results: map[string][]string{}, calls: map[string]int{}}
}

// on queues results for method; the last one repeats.
func (s *rpcStub) on(method string, results ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[method] = append(s.results[method], results...)
}

func (s *rpcStub) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *rpcStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	queue := s.results[req.Method]
	idx := s.calls[req.Method]
	s.calls[req.Method]++
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if len(queue) == 0 {
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
		return
	}
	if idx >= len(queue) {
		idx = len(queue) - 1
	}
	body := queue[idx]
	if len(body) > 0 && body[0] == '!' {
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32000,"message":%q}}`, req.ID, body[1:])
		return
	}
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, body)
}

func setupTestClient(t *testing.T) (*RPCClient, *rpcStub, solana.PrivateKey) {
	t.Helper()
	stub := newRPCStub()
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	wallet := solana.NewWallet().PrivateKey
	c := NewRPCClient(&config.Solana{RPCURL: server.URL, ConfirmPolls: 3}, wallet, zap.NewNop(),
		WithPollInterval(time.Millisecond), WithSendBackoff(time.Millisecond))
	return c, stub, wallet
}

func unsignedTransfer(t *testing.T, from solana.PublicKey) string {
	t.Helper()
	to := solana.NewWallet().PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1000, from, to).Build()},
		solana.Hash{7},
		solana.TransactionPayer(from),
	)
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestRPCClient_Balance(t *testing.T) {
	c, stub, _ := setupTestClient(t)
	stub.on("getBalance", `{"context":{"slot":1},"value":1500000000}`)

	bal, err := c.Balance(context.Background())

	require.NoError(t, err)
	assert.InDelta(t, 1.5, bal, 1e-9)
}

func TestRPCClient_TokenBalance(t *testing.T) {
	c, stub, _ := setupTestClient(t)

	accountData := func(amount uint64) string {
		data := make([]byte, 165)
		binary.LittleEndian.PutUint64(data[64:72], amount)
		return base64.StdEncoding.EncodeToString(data)
	}
	owner := solana.NewWallet().PublicKey().String()
	stub.on("getTokenAccountsByOwner", fmt.Sprintf(`{"context":{"slot":1},"value":[
		{"pubkey":%q,"account":{"data":[%q,"base64"],"executable":false,"lamports":2039280,"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA","rentEpoch":0}},
		{"pubkey":%q,"account":{"data":[%q,"base64"],"executable":false,"lamports":2039280,"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA","rentEpoch":0}},
		{"pubkey":%q,"account":{"data":["AAAA","base64"],"executable":false,"lamports":2039280,"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA","rentEpoch":0}},
		null]}`,
		owner, accountData(1_000_000), owner, accountData(250_000), owner))

	bal, err := c.TokenBalance(context.Background(), "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	require.NoError(t, err)
	assert.Equal(t, uint64(1_250_000), bal)
}

func TestRPCClient_TokenDecimals(t *testing.T) {
	c, stub, _ := setupTestClient(t)
	stub.on("getTokenSupply", `{"context":{"slot":1},"value":{"amount":"1000000000","decimals":6,"uiAmountString":"1000"}}`)

	dec, err := c.TokenDecimals(context.Background(), "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	require.NoError(t, err)
	assert.Equal(t, uint8(6), dec)
}

func TestRPCClient_SignTransaction(t *testing.T) {
	c, _, wallet := setupTestClient(t)
	txB64 := unsignedTransfer(t, wallet.PublicKey())

	signed, sig, err := c.SignTransaction(txB64)

	require.NoError(t, err)
	assert.NotEmpty(t, sig)

	raw, err := base64.StdEncoding.DecodeString(signed)
	require.NoError(t, err)
	tx, err := solana.TransactionFromBytes(raw)
	require.NoError(t, err)
	require.Len(t, tx.Signatures, 1)
	assert.Equal(t, sig, tx.Signatures[0].String())
	assert.NoError(t, tx.VerifySignatures())

	_, _, err = c.SignTransaction("%%%")
	assert.Error(t, err)
}

func TestRPCClient_SendAndConfirm(t *testing.T) {
	sig := solana.Signature{1, 2, 3}

	t.Run("ConfirmedAfterRetry", func(t *testing.T) {
		// Arrange
		c, stub, wallet := setupTestClient(t)
		stub.on("sendTransaction", "!node is behind", fmt.Sprintf("%q", sig.String()))
		stub.on("getSignatureStatuses",
			`{"context":{"slot":1},"value":[null]}`,
			`{"context":{"slot":2},"value":[{"slot":2,"confirmations":1,"err":null,"confirmationStatus":"confirmed"}]}`)

		// Act
		got, err := c.SignAndSend(context.Background(), unsignedTransfer(t, wallet.PublicKey()))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, sig.String(), got)
		assert.Equal(t, 2, stub.count("sendTransaction"))
		assert.Equal(t, 2, stub.count("getSignatureStatuses"))
	})

	t.Run("FailedOnChain", func(t *testing.T) {
		c, stub, _ := setupTestClient(t)
		stub.on("getSignatureStatuses",
			`{"context":{"slot":1},"value":[{"slot":1,"confirmations":0,"err":{"InstructionError":[0,"Custom"]},"confirmationStatus":"processed"}]}`)

		err := c.Confirm(context.Background(), sig.String())

		assert.ErrorIs(t, err, ErrTxFailed)
	})

	t.Run("Timeout", func(t *testing.T) {
		c, stub, _ := setupTestClient(t)
		stub.on("getSignatureStatuses", `{"context":{"slot":1},"value":[null]}`)

		err := c.Confirm(context.Background(), sig.String())

		assert.ErrorIs(t, err, ErrConfirmTimeout)
		assert.Equal(t, 3, stub.count("getSignatureStatuses"))
	})

	t.Run("SendExhausted", func(t *testing.T) {
		c, stub, wallet := setupTestClient(t)
		stub.on("sendTransaction", "!blockhash not found")

		_, err := c.SignAndSend(context.Background(), unsignedTransfer(t, wallet.PublicKey()))

		assert.ErrorContains(t, err, "failed to send transaction")
		assert.Equal(t, sendAttempts, stub.count("sendTransaction"))
	})
}

func TestRPCClient_Transfer(t *testing.T) {
	c, stub, _ := setupTestClient(t)
	sig := solana.Signature{9}
	stub.on("getLatestBlockhash", fmt.Sprintf(`{"context":{"slot":1},"value":{"blockhash":%q,"lastValidBlockHeight":100}}`, solana.Hash{4}.String()))
	stub.on("sendTransaction", fmt.Sprintf("%q", sig.String()))
	stub.on("getSignatureStatuses", `{"context":{"slot":1},"value":[{"slot":1,"confirmations":null,"err":null,"confirmationStatus":"finalized"}]}`)

	got, err := c.Transfer(context.Background(), solana.NewWallet().PublicKey().String(), 5_000_000)

	require.NoError(t, err)
	assert.Equal(t, sig.String(), got)

	_, err = c.Transfer(context.Background(), "bad", 1)
	assert.Error(t, err)
}
