// Package client wires the pile manager and the local control plane
// into the long-running pilebox daemon.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pilehq/pilebox/internal/client/config"
	"github.com/pilehq/pilebox/internal/client/pilemgr"
	"github.com/pilehq/pilebox/internal/version"
)

type Daemon struct {
	config *config.Config
	mgr    *pilemgr.PileManager
	cps    *ControlPlaneServer
}

func NewDaemon(cfg *config.Config, opts ...pilemgr.Option) (*Daemon, error) {
	mgr, err := pilemgr.New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	cps, err := NewControlPlaneServer(&ControlPlaneConfig{
		Addr:      cfg.ControlAddr,
		AuthToken: cfg.ControlToken,
	}, mgr)
	if err != nil {
		return nil, err
	}

	return &Daemon{
		config: cfg,
		mgr:    mgr,
		cps:    cps,
	}, nil
}

func (d *Daemon) Manager() *pilemgr.PileManager {
	return d.mgr
}

func (d *Daemon) ControlPlane() *ControlPlaneServer {
	return d.cps
}

// Start runs the daemon until ctx is cancelled, then shuts down with a
// 10s grace period.
func (d *Daemon) Start(ctx context.Context) error {
	slog.Info("pilebox daemon start", "version", version.Short())

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := d.mgr.Start(egCtx); err != nil {
			return fmt.Errorf("start pile manager: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		if err := d.cps.Start(egCtx); err != nil {
			return fmt.Errorf("start control plane: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("shutting down daemon")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return d.Stop(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("pilebox daemon failure", "error", err)
		return err
	}

	slog.Info("pilebox daemon stopped")
	return nil
}

func (d *Daemon) Stop(ctx context.Context) error {
	d.mgr.Stop()
	if err := d.cps.Stop(ctx); err != nil {
		return fmt.Errorf("stop control plane: %w", err)
	}
	return nil
}
