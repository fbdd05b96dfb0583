package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skylark-uav/skylark/cmd/skylark-exec/app/options"
	"github.com/skylark-uav/skylark/pkg/log"
)

const commandDesc = `The Skylark exec daemon is the supervisory core of the vehicle: it brings
the flight controller link up, gates on health and positioning lock, arms the
vehicle, and supervises the autonomous flight sequence. Current stage and
health topics are exposed read-only over HTTP.`

// NewCommand builds the skylark-exec root command.
func NewCommand() *cobra.Command {
	opts := options.NewOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:          "skylark-exec",
		Short:        "Launch the Skylark supervisory core",
		Long:         commandDesc,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(configFile, opts); err != nil {
				return err
			}
			if err := opts.Complete(); err != nil {
				return err
			}
			if errs := opts.Validate(); len(errs) > 0 {
				return errors.Join(errs...)
			}

			log.Init(opts.Log)
			defer func() { _ = log.Sync() }()

			cfg, err := opts.Config()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			d, err := cfg.NewDaemon()
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return d.Run(ctx)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&configFile, "config", "c", "", "Path to the YAML configuration file.")
	opts.AddFlags(fs)
	return cmd
}

// loadConfig reads the YAML configuration file into opts and keeps watching
// it so the log level can be changed on a running vehicle.
func loadConfig(path string, opts *options.Options) error {
	if path == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("unmarshal config %s: %w", path, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed", "file", e.Name)
		if level := v.GetString("log.level"); level != "" {
			log.SetLevel(level)
		}
	})
	v.WatchConfig()
	return nil
}
