// Package server exposes the news pipeline over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/matheuskafuri/hrnews/internal/news"
)

// Handler is the piece of the news service the API needs.
type Handler interface {
	Handle(ctx context.Context, req news.Request) news.Response
}

// NewMux builds the route table for the API.
func NewMux(h Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/news", newsHandler(h))
	mux.HandleFunc("GET /health", healthHandler)
	return mux
}

func newsHandler(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req news.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("malformed request body")
			writeJSON(w, http.StatusBadRequest, news.Response{
				Status:  news.StatusError,
				Message: "Invalid request body.",
			})
			return
		}

		resp := h.Handle(r.Context(), req)
		writeJSON(w, statusCode(resp), resp)
	}
}

// statusCode maps the pipeline outcome onto an HTTP status. The body always
// carries the structured response; the code is advisory.
func statusCode(resp news.Response) int {
	switch resp.Kind {
	case "":
		return http.StatusOK
	case news.KindNoArticles:
		return http.StatusNotFound
	case news.KindPromptLoad:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encoding response")
	}
}

// Run starts the HTTP server with request logging and graceful shutdown.
func Run(h Handler, listenAddr string, logger zerolog.Logger) error {
	logger = logger.With().Str("service", "hrnews-api").Logger()

	var handler http.Handler = NewMux(h)
	handler = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("HTTP request")
	})(handler)
	handler = hlog.RemoteAddrHandler("remote_addr")(handler)
	handler = hlog.RequestIDHandler("req_id", "Request-Id")(handler)
	handler = hlog.NewHandler(logger)(handler)

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second, // summarization fan-out can be slow
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", listenAddr).Msg("API server starting")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err

	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("HTTP server force close error")
			}
		}
		if err := <-serverErr; err != nil {
			logger.Error().Err(err).Msg("ListenAndServe error during shutdown")
		}
	}

	logger.Info().Msg("server exiting")
	return nil
}
