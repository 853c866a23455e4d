package webui

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// Transfer is one gateway record. Value and Timestamp arrive as either JSON
// strings or numbers.
type Transfer struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	Value     json.Number `json:"value"`
	Timestamp json.Number `json:"timestamp"`
}

// Result is what one page render sees: the transfers, or the reason there
// are none.
type Result struct {
	Transfers []Transfer
	Err       error
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// FetchTransfers issues a single GET to <base>/api/transfers.
func (c *Client) FetchTransfers(ctx context.Context) Result {
	transfers, err := c.fetch(ctx)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Transfers: transfers}
}

func (c *Client) fetch(ctx context.Context) ([]Transfer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/transfers", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch transfers")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.Newf("fetch transfers: status %d", resp.StatusCode)
	}

	var transfers []Transfer
	if err := json.NewDecoder(resp.Body).Decode(&transfers); err != nil {
		return nil, errors.Wrap(err, "decode transfers")
	}
	return transfers, nil
}
