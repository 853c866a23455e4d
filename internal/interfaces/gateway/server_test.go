package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"transfertracker/internal/infrastructure/subgraph"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	transfers []subgraph.Transfer
	err       error
	panics    bool
	calls     int
	address   string
}

func (s *stubSource) TransfersTo(ctx context.Context, address string) ([]subgraph.Transfer, error) {
	s.calls++
	s.address = address
	if s.panics {
		panic("boom")
	}
	return s.transfers, s.err
}

func get(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetTransfersReturnsArray(t *testing.T) {
	source := &stubSource{transfers: []subgraph.Transfer{
		{From: "0xA", To: "0xB", Value: "100", Timestamp: "1700000000"},
		{From: "0xC", To: "0xB", Value: "5", Timestamp: "1700000001"},
	}}
	server, err := NewServer(source, "0xB")
	require.NoError(t, err)

	rec := get(t, server, "/transfers")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[
		{"from":"0xA","to":"0xB","value":"100","timestamp":"1700000000"},
		{"from":"0xC","to":"0xB","value":"5","timestamp":"1700000001"}
	]`, rec.Body.String())
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, "0xB", source.address)
}

func TestGetTransfersEmptyIsEmptyArray(t *testing.T) {
	server, err := NewServer(&stubSource{transfers: []subgraph.Transfer{}}, "0xB")
	require.NoError(t, err)

	rec := get(t, server, "/transfers")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestGetTransfersNilUpstreamIsEmptyArray(t *testing.T) {
	server, err := NewServer(&stubSource{}, "0xB")
	require.NoError(t, err)

	rec := get(t, server, "/transfers")
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestGetTransfersUpstreamFailureIsGeneric500(t *testing.T) {
	server, err := NewServer(&stubSource{err: errors.Wrap(subgraph.ErrUpstreamMalformed, "data.transfers is missing")}, "0xB")
	require.NoError(t, err)

	rec := get(t, server, "/transfers")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "data.transfers")
}

func TestGetTransfersPanicIsRecovered(t *testing.T) {
	server, err := NewServer(&stubSource{panics: true}, "0xB")
	require.NoError(t, err)

	rec := get(t, server, "/transfers")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGatewayAgainstUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"transfers":[{"from":"0xA","to":"0xB","value":"100","timestamp":"1700000000"}]}}`))
	}))
	defer upstream.Close()

	client, err := subgraph.NewClient(upstream.URL, upstream.Client())
	require.NoError(t, err)
	server, err := NewServer(client, "0xB")
	require.NoError(t, err)

	rec := get(t, server, "/transfers")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"from":"0xA","to":"0xB","value":"100","timestamp":"1700000000"}]`, rec.Body.String())
}

func TestNewServerRequiresTarget(t *testing.T) {
	_, err := NewServer(&stubSource{}, "")
	assert.Error(t, err)
}
