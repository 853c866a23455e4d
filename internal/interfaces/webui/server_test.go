package webui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiServer stands in for <API base>/api/transfers.
func apiServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/transfers" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func renderIndex(t *testing.T, apiBase string) string {
	t.Helper()
	server, err := NewServer(NewClient(apiBase, nil), "http://gateway.invalid")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestIndexRendersTransfers(t *testing.T) {
	api := apiServer(t, http.StatusOK, `[{"from":"0xA","to":"0xB","value":"100","timestamp":"1700000000"}]`)

	body := renderIndex(t, api.URL)
	assert.Contains(t, body, "<li>0xA → 0xB: 100</li>")
	assert.Equal(t, 1, strings.Count(body, "<li>"))
	assert.NotContains(t, body, `class="error"`)
}

func TestIndexRendersNumericValues(t *testing.T) {
	api := apiServer(t, http.StatusOK, `[{"from":"0xA","to":"0xB","value":100,"timestamp":1000},{"from":"0xC","to":"0xB","value":340282366920938463463374607431768211456,"timestamp":"1001"}]`)

	body := renderIndex(t, api.URL)
	assert.Contains(t, body, "<li>0xA → 0xB: 100</li>")
	assert.Contains(t, body, "<li>0xC → 0xB: 340282366920938463463374607431768211456</li>")
	assert.NotContains(t, body, `class="error"`)
}

func TestIndexEmptyList(t *testing.T) {
	api := apiServer(t, http.StatusOK, `[]`)

	body := renderIndex(t, api.URL)
	assert.Contains(t, body, "<ol>")
	assert.NotContains(t, body, "<li>")
	assert.NotContains(t, body, `class="error"`)
}

func TestIndexUpstreamErrorShowsEmptyList(t *testing.T) {
	api := apiServer(t, http.StatusInternalServerError, `{"error":"internal error"}`)

	body := renderIndex(t, api.URL)
	assert.NotContains(t, body, "<li>")
	assert.Contains(t, body, `class="error"`)
}

func TestIndexNonJSONShowsEmptyList(t *testing.T) {
	api := apiServer(t, http.StatusOK, `<html>not json</html>`)

	body := renderIndex(t, api.URL)
	assert.NotContains(t, body, "<li>")
	assert.Contains(t, body, `class="error"`)
}

func TestIndexEscapesValues(t *testing.T) {
	api := apiServer(t, http.StatusOK, `[{"from":"<script>","to":"0xB","value":"1","timestamp":"1"}]`)

	body := renderIndex(t, api.URL)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestAPIProxyStripsPrefix(t *testing.T) {
	var gotPath string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[]`))
	}))
	defer gateway.Close()

	server, err := NewServer(NewClient("http://unused", nil), gateway.URL)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transfers", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/transfers", gotPath)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestNewServerRejectsRelativeGateway(t *testing.T) {
	_, err := NewServer(NewClient("http://unused", nil), "localhost:5000")
	assert.Error(t, err)
}
