// Package status serves a read-only view of the bridge over HTTP.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"github.com/norasector/rtlbridge/pkg/bridge"
)

const shutdownTimeout = 5 * time.Second

type Provider interface {
	Status() bridge.Status
}

type Server struct {
	port     int
	provider Provider
	logger   zerolog.Logger
	srv      *http.Server
}

func NewServer(port int, provider Provider, logger zerolog.Logger) *Server {
	s := &Server{
		port:     port,
		provider: provider,
		logger:   logger,
		srv:      &http.Server{Addr: fmt.Sprintf(":%d", port)},
	}
	s.srv.Handler = s.Handler()
	return s
}

func (s *Server) Handler() http.Handler {
	handler := httprouter.New()

	handler.GET("/status", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s.provider.Status()); err != nil {
			s.logger.Warn().Err(err).Msg("error writing status")
		}
	})

	handler.GET("/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	return handler
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Run blocks until the server is stopped or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("error stopping status server")
		}
	}()

	s.logger.Info().Int("port", s.port).Msg("serving status")

	err := s.srv.ListenAndServe()
	switch {
	case err == http.ErrServerClosed:
		return nil
	default:
		return err
	}
}
