// Package daemon runs the bootforge HTTP service: a single-instance
// process exposing the portal surface over a bound address, guarded by a
// lock file so two daemons never mutate the same data directory.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"bootforge/internal/api"
	"bootforge/internal/config"
	"bootforge/internal/logging"
)

// Daemon coordinates the HTTP service and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	portal *api.Portal

	lockPath string
	lock     *flock.Flock
	server   *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon around an assembled portal.
func New(cfg *config.Config, portal *api.Portal, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || portal == nil || logger == nil {
		return nil, errors.New("daemon requires config, portal, and logger")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "bootforged.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		portal:   portal,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and begins serving. It returns once the
// listener is bound; serving continues until Stop or context cancel.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bootforged instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	server, err := newAPIServer(d.cfg, d.portal, d.logger)
	if err != nil {
		d.releaseStartup()
		return err
	}
	d.server = server
	if err := d.server.start(d.ctx); err != nil {
		d.releaseStartup()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.cfg.Paths.APIBind))
	return nil
}

func (d *Daemon) releaseStartup() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// Stop shuts the server down and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.server != nil {
		d.server.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Addr reports the bound listener address, empty before Start.
func (d *Daemon) Addr() string {
	if d.server == nil {
		return ""
	}
	return d.server.addr()
}

// LockPath returns the single-instance lock file path.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Running reports whether the daemon is serving.
func (d *Daemon) Running() bool {
	return d.running.Load()
}
