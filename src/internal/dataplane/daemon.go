package dataplane

import (
	"context"
	"errors"
	"fmt"

	"github.com/redhat-et/patu/src/internal/config"
	"github.com/redhat-et/patu/src/internal/log"
)

// connectionLimit caps the connections kept per snapshot.
const connectionLimit = 1024

// Daemon ties the loader, the map poller and the metrics together.
type Daemon struct {
	cfg     *config.DataplaneConfig
	loader  *Loader
	metrics *Metrics
	poller  *Poller
}

// NewDaemon creates a daemon for cfg. Nothing touches the kernel until Start.
func NewDaemon(cfg *config.DataplaneConfig) *Daemon {
	metrics := NewMetrics()
	metrics.SetMaxEntries(cfg.MaxEntries)
	return &Daemon{
		cfg:     cfg,
		loader:  NewLoader(cfg),
		metrics: metrics,
	}
}

// Start loads and attaches the programs. On attach failure everything loaded
// so far is released again.
func (d *Daemon) Start() error {
	if err := d.loader.Load(); err != nil {
		return err
	}
	if err := d.loader.Attach(); err != nil {
		if cerr := d.loader.Close(); cerr != nil {
			log.Warnf("Failed to release dataplane: %v", cerr)
		}
		return err
	}
	d.metrics.SetAttached(true)
	d.poller = NewPoller(d.loader.Map(), d.metrics, connectionLimit, d.cfg.MaxEntries)
	return nil
}

// Run polls the redirect map until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	if d.poller == nil {
		return errors.New("dataplane is not started")
	}
	d.poller.Run(ctx, d.cfg.PollInterval.Duration)
	return nil
}

// Close detaches the programs and unpins the map.
func (d *Daemon) Close() error {
	d.metrics.SetAttached(false)
	if err := d.loader.Close(); err != nil {
		return fmt.Errorf("failed to detach dataplane: %w", err)
	}
	return nil
}

// Attached reports whether both programs are attached.
func (d *Daemon) Attached() bool {
	return d.loader.Attached()
}

// Snapshot returns the last poll result.
func (d *Daemon) Snapshot() Snapshot {
	if d.poller == nil {
		return Snapshot{}
	}
	return d.poller.Snapshot()
}

// MaxEntries returns the configured map capacity.
func (d *Daemon) MaxEntries() uint32 {
	return d.cfg.MaxEntries
}

// Metrics returns the daemon metrics.
func (d *Daemon) Metrics() *Metrics {
	return d.metrics
}
