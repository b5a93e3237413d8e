package evm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerwatch/chieftally/pkg/logger"
)

// Helper RPC server that always answers with a valid eth_blockNumber response
func newMockRPCServer(t *testing.T) *httptest.Server {
	t.Helper()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1"}`))
	})

	return httptest.NewServer(handler)
}

// Helper RPC server that always answers with a JSON-RPC error payload
func newBadRPCServer(t *testing.T) *httptest.Server {
	t.Helper()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"internal error"}}`))
	})

	return httptest.NewServer(handler)
}

func TestMultiClient(t *testing.T) {
	t.Parallel()

	mockSrv := newMockRPCServer(t)
	defer mockSrv.Close()

	lggr := logger.Test(t)

	// Expect defaults to be set if not provided.
	mc, err := NewMultiClient(lggr, RPCConfig{ChainName: "mainnet", RPCs: []RPC{
		{Name: "test-rpc", HTTPURL: mockSrv.URL},
	}})

	require.NoError(t, err)
	require.NotNil(t, mc)

	assert.Equal(t, "mainnet", mc.chainName)
	assert.Equal(t, uint(RPCDefaultRetryAttempts), mc.RetryConfig.Attempts)
	assert.Equal(t, RPCDefaultRetryDelay, mc.RetryConfig.Delay)
	assert.Equal(t, uint(RPCDefaultDialRetryAttempts), mc.RetryConfig.DialAttempts)
	assert.Equal(t, RPCDefaultDialRetryDelay, mc.RetryConfig.DialDelay)

	// Expect error if no RPCs provided.
	_, err = NewMultiClient(lggr, RPCConfig{ChainName: "mainnet", RPCs: []RPC{}})
	require.Error(t, err)

	// Expect second client to be set as backup.
	mc, err = NewMultiClient(lggr, RPCConfig{ChainName: "mainnet", RPCs: []RPC{
		{Name: "test-rpc", HTTPURL: mockSrv.URL}, // preferred
		{Name: "test-rpc", HTTPURL: mockSrv.URL}, // backup
	}})
	require.NoError(t, err)
	require.Len(t, mc.Backups, 1)
}

// Verifies that a bad eth_blockNumber response causes MultiClient to skip the
// first RPC and succeed with the next one.
func TestMultiClient_healthCheckSkipsBadRPC(t *testing.T) {
	t.Parallel()

	badSrv := newBadRPCServer(t)
	defer badSrv.Close()

	goodSrv := newMockRPCServer(t)
	defer goodSrv.Close()

	mc, err := NewMultiClient(logger.Test(t), RPCConfig{ChainName: "mainnet", RPCs: []RPC{
		// first RPC -> health-check fails
		{Name: "bad-rpc", HTTPURL: badSrv.URL},
		// second RPC -> health-check passes
		{Name: "good-rpc", HTTPURL: goodSrv.URL},
	}})
	require.NoError(t, err)

	// Only the good RPC should remain (primary) and there should be no backups.
	require.NotNil(t, mc.Client)
	require.Empty(t, mc.Backups)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	blockNum, err := mc.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), blockNum)
}

func TestMultiClient_CloseCoversBackups(t *testing.T) {
	t.Parallel()

	mockSrv := newMockRPCServer(t)
	defer mockSrv.Close()

	mc, err := NewMultiClient(logger.Test(t), RPCConfig{ChainName: "mainnet", RPCs: []RPC{
		{Name: "primary", HTTPURL: mockSrv.URL},
		{Name: "backup", HTTPURL: mockSrv.URL},
	}})
	require.NoError(t, err)
	require.Len(t, mc.Backups, 1)

	// Close walks the primary and every backup. HTTP connections make this
	// a near no-op, but the walk must hold with backups present.
	mc.Close()
}

func TestMultiClient_RejectsEmptyURL(t *testing.T) {
	t.Parallel()

	_, err := NewMultiClient(logger.Test(t), RPCConfig{ChainName: "mainnet", RPCs: []RPC{
		{Name: "nameless"},
	}})
	require.Error(t, err)
}
