package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"transfertracker/internal/infrastructure/telemetry"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrUpstreamMalformed marks a response that is not a usable GraphQL result.
var ErrUpstreamMalformed = errors.New("malformed subgraph response")

// Transfer is one row of the subgraph answer. Value and Timestamp keep the
// BigInt string encoding the subgraph uses.
type Transfer struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	Timestamp string `json:"timestamp"`
}

type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, httpClient *http.Client) (*Client, error) {
	if url == "" {
		return nil, errors.New("subgraph url is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: url, httpClient: httpClient}, nil
}

// TransfersQuery is the one query the gateway issues.
func TransfersQuery(to string) string {
	return fmt.Sprintf(`{ transfers(where: { to: %s }) { from to value timestamp } }`, quoteString(to))
}

// quoteString renders s as a GraphQL string literal.
func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

type graphqlRequest struct {
	Query string `json:"query"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type transfersResponse struct {
	Data *struct {
		Transfers *[]rawTransfer `json:"transfers"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// rawTransfer accepts BigInt fields as strings or bare numbers.
type rawTransfer struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	Value     json.Number `json:"value"`
	Timestamp json.Number `json:"timestamp"`
}

// TransfersTo posts the fixed transfers query once. There is no retry.
func (c *Client) TransfersTo(ctx context.Context, address string) ([]Transfer, error) {
	ctx, span := otel.Tracer("transfertracker/subgraph").Start(ctx, "subgraph.transfers",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("transfer.to", address)),
	)
	defer span.End()

	transfers, err := c.transfersTo(ctx, address)
	telemetry.Fail(span, err)
	if err == nil {
		span.SetAttributes(attribute.Int("transfer.count", len(transfers)))
	}
	return transfers, err
}

func (c *Client) transfersTo(ctx context.Context, address string) ([]Transfer, error) {
	payload, err := json.Marshal(graphqlRequest{Query: TransfersQuery(address)})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	telemetry.InjectHTTPHeaders(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "subgraph request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, errors.Newf("subgraph status %d", resp.StatusCode)
	}

	var decoded transfersResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode subgraph response"), ErrUpstreamMalformed)
	}
	if len(decoded.Errors) > 0 {
		return nil, errors.Newf("subgraph error: %s", decoded.Errors[0].Message)
	}
	if decoded.Data == nil || decoded.Data.Transfers == nil {
		return nil, errors.Wrap(ErrUpstreamMalformed, "data.transfers is missing")
	}

	transfers := make([]Transfer, 0, len(*decoded.Data.Transfers))
	for _, raw := range *decoded.Data.Transfers {
		transfers = append(transfers, Transfer{
			From:      raw.From,
			To:        raw.To,
			Value:     raw.Value.String(),
			Timestamp: raw.Timestamp.String(),
		})
	}
	return transfers, nil
}
