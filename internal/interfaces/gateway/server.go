package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"transfertracker/internal/infrastructure/subgraph"
	"transfertracker/internal/infrastructure/telemetry"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type TransferSource interface {
	TransfersTo(ctx context.Context, address string) ([]subgraph.Transfer, error)
}

// TransferView is the wire shape of one transfer in GET /transfers.
type TransferView struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	Timestamp string `json:"timestamp"`
}

type Server struct {
	source TransferSource
	target string
}

func NewServer(source TransferSource, target string) (*Server, error) {
	if source == nil {
		return nil, errors.New("transfer source is required")
	}
	if target == "" {
		return nil, errors.New("target address is required")
	}
	return &Server{source: source, target: target}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger())
	r.Use(middleware.Recoverer)
	r.Use(traceRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/transfers", s.handleTransfers)
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

// traceRequests continues an incoming trace, or starts one, for each request.
func traceRequests(next http.Handler) http.Handler {
	tracer := otel.Tracer("transfertracker/gateway")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := telemetry.ExtractHTTPHeaders(r.Context(), r.Header)
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.request_id", middleware.GetReqID(r.Context()))),
		)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTransfers makes one upstream call per request. Any upstream failure
// becomes a generic 500; details only go to the log.
func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := s.source.TransfersTo(r.Context(), s.target)
	if err != nil {
		slog.Error("fetch transfers failed",
			"request_id", middleware.GetReqID(r.Context()),
			"target", s.target,
			"err", err,
		)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]TransferView, 0, len(transfers))
	for _, transfer := range transfers {
		views = append(views, TransferView{
			From:      transfer.From,
			To:        transfer.To,
			Value:     transfer.Value,
			Timestamp: transfer.Timestamp,
		})
	}
	respondJSON(w, http.StatusOK, views)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// requestLogger routes chi's access log through the default slog handler.
func requestLogger() func(http.Handler) http.Handler {
	return middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo),
		NoColor: true,
	})
}
