/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package api is the HTTP surface of the agent: health, questions and
// stored conversations.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"pgedge-nla/internal/auth"
	"pgedge-nla/internal/conversations"
	"pgedge-nla/internal/logging"
)

// shutdownTimeout bounds graceful shutdown
const shutdownTimeout = 10 * time.Second

// RouterConfig wires the router to its collaborators
type RouterConfig struct {
	Agent Answerer

	// Conversations enables /conversations and persistence from /ask
	Conversations *conversations.Store

	Tokens      *auth.TokenStore
	AuthEnabled bool

	CORSOrigins []string

	// RequestTimeout cancels the request context; zero disables it
	RequestTimeout time.Duration
}

// NewRouter builds the HTTP routes
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger,
		middleware.Recoverer,
		CORS(cfg.CORSOrigins),
	)

	tokens := cfg.Tokens
	if tokens == nil {
		tokens = auth.NewTokenStore(nil)
	}
	r.Use(auth.Middleware(tokens, cfg.AuthEnabled))

	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	h := NewHandler(cfg.Agent, cfg.Conversations)
	r.Get("/health", HandleHealth)
	r.Post("/ask", h.HandleAsk)

	if cfg.Conversations != nil {
		r.Route("/conversations", conversations.NewHandler(cfg.Conversations, Owner).Routes)
	}

	return r
}

// TLSConfig names the certificate and key used for HTTPS
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

// Server runs the HTTP listener
type Server struct {
	srv *http.Server
	tls TLSConfig
}

// NewServer creates a server for handler on addr. writeTimeout should
// exceed the request timeout so that timed-out requests still get a reply.
func NewServer(addr string, handler http.Handler, tls TLSConfig, writeTimeout time.Duration) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       2 * time.Minute,
		},
		tls: tls,
	}
}

// Serve listens until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)
	s.srv.BaseContext = func(net.Listener) context.Context { return egctx }

	eg.Go(func() error {
		var err error
		if s.tls.Enabled {
			logging.Info("server_starting", "address", s.srv.Addr, "tls", true, "cert", s.tls.CertFile)
			err = s.srv.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		} else {
			logging.Info("server_starting", "address", s.srv.Addr, "tls", false)
			err = s.srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logging.Info("server_stopping", "address", s.srv.Addr)
		return s.srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
