package ethrpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRPCServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		result, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
}

func TestClientFetchLogsNormalisesCase(t *testing.T) {
	server := newRPCServer(t, map[string]string{
		"eth_getLogs": `[{"address":"0xA0B86991C6218B36C1D19D4A2E9EB0CE3606EB48","topics":["0xDDF252AD1BE2C89B69C2B068FC378DAA952BA7F163C4A11628F55A4DF523B3EF"],"data":"0x01","blockNumber":"0x10","transactionHash":"0xABC","logIndex":"0x2","removed":false}]`,
	})
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)
	logs, err := client.FetchLogs(t.Context(), 16, 16)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, uint64(16), logs[0].BlockNumber)
	assert.Equal(t, uint64(2), logs[0].LogIndex)
	assert.Equal(t, "0xabc", logs[0].TxHash)
	assert.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", logs[0].Address)
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", logs[0].Topics[0])
}

func TestClientBlockTimestamp(t *testing.T) {
	server := newRPCServer(t, map[string]string{
		"eth_getBlockByNumber": `{"number":"0x10","timestamp":"0x6553f100"}`,
	})
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)
	ts, ok, err := client.BlockTimestamp(t.Context(), 16)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1700000000), ts)
}

func TestClientBlockTimestampUnknownBlock(t *testing.T) {
	server := newRPCServer(t, map[string]string{"eth_getBlockByNumber": `null`})
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)
	_, ok, err := client.BlockTimestamp(t.Context(), 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientChainID(t *testing.T) {
	server := newRPCServer(t, map[string]string{"eth_chainId": `"0x1"`})
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)
	id, err := client.ChainID(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	fixed, err := NewClient(Config{URL: "http://unused", ChainID: 137})
	require.NoError(t, err)
	id, err = fixed.ChainID(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(137), id)
}

func TestClientRPCError(t *testing.T) {
	server := newRPCServer(t, map[string]string{})
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)
	_, err = client.LatestBlockNumber(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}
