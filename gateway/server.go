// Package gateway exposes the latest portfolio state over HTTP and pushes
// snapshot updates to websocket subscribers.
package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"coinview/config"
	"coinview/internal/channel"
	"coinview/logger"
	"coinview/models"
)

// Server hosts the Gin-powered portfolio gateway.
type Server struct {
	cfg        config.GatewayConfig
	log        *logger.Log
	snapshots  *channel.Snapshots
	hub        *hub
	httpServer *http.Server

	mu     sync.RWMutex
	latest models.PortfolioSnapshot
	seen   bool
}

// NewServer constructs a gateway server when the gateway feature is enabled.
// When the gateway is disabled the returned server will be nil.
func NewServer(cfg config.GatewayConfig, log *logger.Log, snapshots *channel.Snapshots) *Server {
	if !cfg.Enabled {
		return nil
	}

	cfg.Address = normalizeAddress(cfg.Address)

	return &Server{
		cfg:       cfg,
		log:       log,
		snapshots: snapshots,
		hub:       newHub(log),
	}
}

// Run consumes the snapshot stream and serves it until the provided context
// is cancelled or the underlying HTTP server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}

	router := s.buildRouter()

	consumeDone := make(chan struct{})
	go func() {
		defer close(consumeDone)
		s.consume(ctx)
	}()

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.WithComponent("gateway").WithFields(logger.Fields{
		"address": s.cfg.Address,
	}).Info("gateway listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.closeAll()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		<-consumeDone
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return err
	}
}

// Address reports the network address the gateway server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-s.snapshots.C:
			if !ok {
				return
			}
			s.mu.Lock()
			s.latest = snapshot
			s.seen = true
			s.mu.Unlock()
			s.hub.broadcast(snapshot)
		}
	}
}

func (s *Server) latestSnapshot() (models.PortfolioSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.seen
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/portfolio", func(c *gin.Context) {
		snapshot, ok := s.latestSnapshot()
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot available yet"})
			return
		}
		c.JSON(http.StatusOK, snapshot)
	})

	router.GET("/ws", func(c *gin.Context) {
		s.hub.serve(c.Writer, c.Request, s.latestSnapshot)
	})

	return router
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "0.0.0.0:8081"
	}
	if strings.HasPrefix(addr, ":") {
		return "0.0.0.0" + addr
	}
	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8081")
	}
	return addr
}
