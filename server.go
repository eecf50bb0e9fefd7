package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gregLibert/sim-bootstrap/pkg/bootstrap"
	"github.com/gregLibert/sim-bootstrap/pkg/csim"
	"github.com/gregLibert/sim-bootstrap/pkg/lwm2m"
	"github.com/gregLibert/sim-bootstrap/pkg/tlv"
)

// blobReader is the part of bootstrap.Reader the server uses.
type blobReader interface {
	Read(ctx context.Context, p []byte) (int, error)
}

// Server exposes the bootstrap blob over HTTP. The card has a single
// logical flow, so reads are serialised.
type Server struct {
	mu         sync.Mutex
	reader     blobReader
	bufferSize int
	logger     *slog.Logger
}

func NewServer(reader blobReader, bufferSize int, logger *slog.Logger) *Server {
	return &Server{reader: reader, bufferSize: bufferSize, logger: logger}
}

// BootstrapResponse is the JSON body of GET /api/v1/bootstrap.
type BootstrapResponse struct {
	Length      int    `json:"length"`
	Hex         string `json:"hex"`
	Description string `json:"description,omitempty"`
	DecodeError string `json:"decode_error,omitempty"`
}

func (s *Server) read(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, s.bufferSize)
	n, err := s.reader.Read(ctx, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Bootstrap reads the blob from the card. ?format=raw returns the bytes as is.
func (s *Server) Bootstrap(w http.ResponseWriter, r *http.Request) {
	blob, err := s.read(r.Context())
	if err != nil {
		s.logger.WarnContext(r.Context(), "bootstrap read failed", "error", err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	if r.URL.Query().Get("format") == "raw" {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(blob)
		return
	}

	resp := BootstrapResponse{Length: len(blob), Hex: tlv.EncodeUpperString(blob)}
	if desc, err := describeBlob(blob); err != nil {
		resp.DecodeError = err.Error()
	} else {
		resp.Description = desc
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WarnContext(r.Context(), "write response", "error", err)
	}
}

// describeBlob renders blob as LwM2M TLV entries.
func describeBlob(blob []byte) (string, error) {
	entries, err := lwm2m.Decode(blob)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := lwm2m.Describe(&sb, entries); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, bootstrap.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, csim.ErrInvalid):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

// NewRouter wires the API, metrics and health endpoints.
func NewRouter(s *Server, reg *prometheus.Registry) http.Handler {
	requestsTotal := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"code", "method"})

	r := chi.NewRouter()
	r.Use(middleware.Heartbeat("/health"))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(func(h http.Handler) http.Handler {
		return promhttp.InstrumentHandlerCounter(requestsTotal, h)
	})

	r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/api/v1/bootstrap", s.Bootstrap)
	r.Get("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	return r
}
