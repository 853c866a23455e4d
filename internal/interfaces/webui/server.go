package webui

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var pageTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>USDC Transfer Tracker</title>
</head>
<body>
<h1>USDC Transfer Tracker</h1>
{{- if .Err}}
<p class="error">Could not load transfers.</p>
{{- end}}
<ol>
{{- range .Transfers}}
<li>{{.From}} → {{.To}}: {{.Value}}</li>
{{- end}}
</ol>
</body>
</html>
`))

type TransferFetcher interface {
	FetchTransfers(ctx context.Context) Result
}

type Server struct {
	fetcher TransferFetcher
	gateway *url.URL
}

// NewServer serves the page from fetcher and forwards /api/* to gatewayURL.
func NewServer(fetcher TransferFetcher, gatewayURL string) (*Server, error) {
	if fetcher == nil {
		return nil, errors.New("transfer fetcher is required")
	}
	gateway, err := url.Parse(gatewayURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse gateway url")
	}
	if gateway.Scheme == "" || gateway.Host == "" {
		return nil, errors.Newf("gateway url must be absolute: %q", gatewayURL)
	}
	return &Server{fetcher: fetcher, gateway: gateway}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Handle("/api/*", http.StripPrefix("/api", httputil.NewSingleHostReverseProxy(s.gateway)))
	return r
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	result := s.fetcher.FetchTransfers(r.Context())
	if result.Err != nil {
		slog.Warn("transfers unavailable", "err", result.Err)
		result.Transfers = nil
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, result); err != nil {
		slog.Error("render page failed", "err", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// requestLogger routes chi's access log through the default slog handler.
func requestLogger() func(http.Handler) http.Handler {
	return middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo),
		NoColor: true,
	})
}
