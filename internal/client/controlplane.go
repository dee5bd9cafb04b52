package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pilehq/pilebox/internal/client/middleware"
	"github.com/pilehq/pilebox/internal/client/pilemgr"
)

// ControlPlaneServer is the local HTTP server the desktop app drives the
// daemon through.
type ControlPlaneServer struct {
	config *ControlPlaneConfig
	server *http.Server
	url    string
	mgr    *pilemgr.PileManager
}

func NewControlPlaneServer(config *ControlPlaneConfig, mgr *pilemgr.PileManager) (*ControlPlaneServer, error) {
	url, err := addrToURL(config.Addr)
	if err != nil {
		return nil, err
	}

	routes := SetupRoutes(mgr, &RouteConfig{
		Auth: middleware.TokenAuthConfig{
			Token: config.AuthToken,
		},
	})

	httpServer := &http.Server{
		Addr:    config.Addr,
		Handler: routes,
		// Timeouts to prevent slow client attacks
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// Connection control
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	return &ControlPlaneServer{
		config: config,
		server: httpServer,
		url:    url,
		mgr:    mgr,
	}, nil
}

func (s *ControlPlaneServer) URL() string {
	return s.url
}

func (s *ControlPlaneServer) Start(ctx context.Context) error {
	slog.Info("control plane start", "url", s.url, "auth", s.config.AuthToken != "")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("control plane serve: %w", err)
	}

	return nil
}

func (s *ControlPlaneServer) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	return s.server.Shutdown(ctx)
}

// addrToURL resolves a listen address to the URL the control plane is
// reachable at. An empty host means all interfaces.
func addrToURL(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid addr %q: %w", addr, err)
	}
	if port == "" {
		return "", fmt.Errorf("invalid addr %q: missing port", addr)
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("http://%s:%s", host, port), nil
}
