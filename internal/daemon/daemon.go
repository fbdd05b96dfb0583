// Package daemon assembles the supervisory core into a runnable process:
// MQTT link, topic store, Exec supervisor, and the status HTTP server, all
// driven by independent tick loops under one errgroup.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skylark-uav/skylark/internal/exec"
	"github.com/skylark-uav/skylark/internal/link"
	"github.com/skylark-uav/skylark/internal/statusserver"
	"github.com/skylark-uav/skylark/internal/topics"
	"github.com/skylark-uav/skylark/pkg/log"
	"github.com/skylark-uav/skylark/pkg/mqtt"
	genericoptions "github.com/skylark-uav/skylark/pkg/options"
)

// Config is everything the daemon needs, resolved from flags and the
// configuration file.
type Config struct {
	Mqtt *genericoptions.MqttOptions
	Http *genericoptions.HttpOptions
	Exec *exec.Config

	// ExecTickInterval is the outer supervisor's scheduling cycle.
	ExecTickInterval time.Duration

	// AutoTickInterval is the inner supervisor's scheduling cycle.
	AutoTickInterval time.Duration
}

// Daemon is the assembled process.
type Daemon struct {
	cfg    *Config
	link   link.Link
	exec   *exec.Exec
	server *statusserver.Server
	logger log.Logger
}

// NewDaemon wires the components together. Nothing runs until Run.
func (c *Config) NewDaemon() (*Daemon, error) {
	client, err := mqtt.NewClient(c.Mqtt.ToClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create mqtt client: %w", err)
	}
	lnk := link.NewMqtt(client, c.Mqtt.TopicRoot)

	e, err := exec.New(c.Exec, topics.NewStore(), lnk)
	if err != nil {
		return nil, fmt.Errorf("create exec supervisor: %w", err)
	}

	return &Daemon{
		cfg:    c,
		link:   lnk,
		exec:   e,
		server: statusserver.New(c.Http.Addr, e),
		logger: log.WithName("daemon"),
	}, nil
}

// Run brings the link up, starts the supervisor, and drives the tick loops
// and the status server until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.link.Start(ctx); err != nil {
		return fmt.Errorf("start link: %w", err)
	}
	if err := d.exec.Start(ctx); err != nil {
		return fmt.Errorf("start exec: %w", err)
	}
	d.logger.Info("Supervisory core running",
		"execTick", d.cfg.ExecTickInterval.String(), "autoTick", d.cfg.AutoTickInterval.String())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(d.cfg.ExecTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := d.exec.Tick(ctx); err != nil {
					d.logger.Error(err, "Exec tick failed")
				}
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(d.cfg.AutoTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				// Auto tick failures demote Exec internally; nothing to do
				// here beyond the log the supervisor already wrote.
				_ = d.exec.TickAuto(ctx)
			}
		}
	})

	g.Go(func() error {
		return d.server.Start(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Error(err, "Status server shutdown failed")
		}
		if err := d.exec.Shutdown(shutdownCtx); err != nil {
			d.logger.Error(err, "Exec shutdown failed")
		}
		if err := d.link.Close(shutdownCtx); err != nil {
			d.logger.Error(err, "Link close failed")
		}
		return ctx.Err()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
