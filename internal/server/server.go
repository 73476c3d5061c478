// Package server exposes the bounded decoder over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnyUserName/boundimg/internal/config"
	"github.com/AnyUserName/boundimg/internal/decoder"
	"github.com/AnyUserName/boundimg/internal/encoder"
)

// Server manages the HTTP decode service.
type Server struct {
	config     *config.Config
	decoder    *decoder.Decoder
	registry   *encoder.Registry
	engine     *gin.Engine
	httpServer *http.Server
}

// New creates a server. A nil registry uses JPEG and fast PNG only, so
// requests never shell out to external encoders.
func New(cfg *config.Config, dec *decoder.Decoder, reg *encoder.Registry) *Server {
	if reg == nil {
		reg = encoder.NewRegistryWith(&encoder.JPEGEncoder{}, &encoder.PNGEncoder{Fast: true})
	}

	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	s := &Server{
		config:   cfg,
		decoder:  dec,
		registry: reg,
		engine:   engine,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)

	v1 := s.engine.Group("/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/decode", s.handleDecode)
	v1.POST("/probe", s.handleProbe)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves until ctx is done or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[boundimg] listening on %s", s.config.ServerAddress())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		log.Println("[boundimg] context canceled")
	case sig := <-sigCh:
		log.Printf("[boundimg] received %v", sig)
	case err := <-errCh:
		return err
	}

	return s.Shutdown()
}

// Shutdown stops the server, waiting up to five seconds for requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Println("[boundimg] server stopped")
	return nil
}
