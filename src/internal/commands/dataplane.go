package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redhat-et/patu/src/internal/api"
	"github.com/redhat-et/patu/src/internal/config"
	"github.com/redhat-et/patu/src/internal/dataplane"
	"github.com/redhat-et/patu/src/internal/log"
)

// DataplaneCommand loads the socket redirect programs and keeps them attached
// until it is signalled.
type DataplaneCommand struct {
	fs  *flag.FlagSet
	ctx *AppContext
	cfg *config.DataplaneConfig

	configPath string
	listenAddr string
	objectPath string
}

// CreateDataplaneCommand creates the dataplane subcommand.
func CreateDataplaneCommand() Runner {
	c := &DataplaneCommand{fs: flag.NewFlagSet("dataplane", flag.ContinueOnError)}
	c.fs.StringVar(&c.configPath, "config", "", "Path to the dataplane TOML config (defaults are used when empty)")
	c.fs.StringVar(&c.listenAddr, "listen", "", "Override the health/metrics listen address")
	c.fs.StringVar(&c.objectPath, "object", "", "Override the BPF object path")
	return c
}

func (c *DataplaneCommand) Name() string {
	return c.fs.Name()
}

func (c *DataplaneCommand) Init(args []string, ctx *AppContext) error {
	c.ctx = ctx

	if err := c.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadDataplaneConfig(c.configPath)
	if err != nil {
		return err
	}
	if c.listenAddr != "" {
		cfg.ListenAddr = c.listenAddr
	}
	if c.objectPath != "" {
		cfg.ObjectPath = c.objectPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid dataplane config: %w", err)
	}
	c.cfg = cfg
	return nil
}

func (c *DataplaneCommand) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	daemon := dataplane.NewDaemon(c.cfg)
	if err := daemon.Start(); err != nil {
		return err
	}
	defer func() {
		if err := daemon.Close(); err != nil {
			log.Errorf("%v", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return Supervise(gctx, Task{Name: "map poller", Run: daemon.Run})
	})

	if c.cfg.ListenAddr != "" {
		b := c.ctx.Build
		router := api.NewRouter(daemon, daemon.Metrics().Handler(), api.VersionInfo{
			Version: b.Version,
			Commit:  b.Commit,
			Date:    b.Date,
		})
		server := api.NewServer(c.cfg.ListenAddr, router)

		g.Go(func() error {
			return Supervise(gctx, Task{Name: "api server", Run: func(context.Context) error {
				return server.Start()
			}})
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Stop(shutdownCtx)
		})
	}

	log.Infof("Dataplane running, send SIGINT or SIGTERM to detach")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Infof("Received shutdown signal, detaching")
	return nil
}
