// Package cli implements the delaydeck command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bhandras/delaydeck/internal/app"
	"github.com/bhandras/delaydeck/internal/config"
	"github.com/bhandras/delaydeck/internal/delay"
	"github.com/bhandras/delaydeck/internal/obsws"
	"github.com/bhandras/delaydeck/internal/storage"
	"github.com/bhandras/delaydeck/internal/version"
	"github.com/bhandras/delaydeck/pkg/logger"
)

// Dependencies are shared by every command.
type Dependencies struct {
	// Config is used as loaded when set; otherwise it is read in the
	// pre-run hook from --config or the default location.
	Config *config.Config
	// Dialer opens switcher connections. Nil dials obs-websocket.
	Dialer delay.Dialer
	// Clock drives the delay timers. Nil uses the wall clock.
	Clock delay.Clock

	// portFlag is set when --port was given explicitly.
	portFlag bool
}

type globalFlags struct {
	configPath string
	host       string
	port       int
	password   string
	encoding   string
	logLevel   string
	dataDir    string
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "delaydeck",
		Short: "Put a live OBS feed on a timed delay",
		Long: "delaydeck drives OBS Studio over obs-websocket: it cuts the program to a delay\n" +
			"scene, masks the switch with a bridge input and reveals the delayed feed once\n" +
			"the configured delay has elapsed.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return resolveConfig(cmd, deps, &flags)
		},
	}

	rootCmd.Version = version.Version()
	rootCmd.SetVersionTemplate("delaydeck " + version.Full() + "\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/delaydeck/config.toml)")
	pf.StringVar(&flags.host, "host", "", "obs-websocket host")
	pf.IntVar(&flags.port, "port", 0, "obs-websocket port")
	pf.StringVar(&flags.password, "password", "", "obs-websocket password")
	pf.StringVar(&flags.encoding, "encoding", "", "Websocket encoding: json or msgpack")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	pf.StringVar(&flags.dataDir, "data-dir", "", "Directory for the settings database")

	rootCmd.AddCommand(NewServeCmd(deps))
	rootCmd.AddCommand(NewInventoryCmd(deps))
	rootCmd.AddCommand(NewRunCmd(deps))
	rootCmd.AddCommand(NewSettingsCmd(deps))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// resolveConfig loads the configuration and applies the global flags on top.
func resolveConfig(cmd *cobra.Command, deps *Dependencies, flags *globalFlags) error {
	var err error
	switch {
	case flags.configPath != "":
		deps.Config, err = config.LoadFile(flags.configPath)
	case deps.Config == nil:
		deps.Config, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := deps.Config

	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.Host = flags.host
	}
	if changed("port") {
		cfg.Port = flags.port
		deps.portFlag = true
	}
	if changed("password") {
		cfg.Password = flags.password
	}
	if changed("encoding") {
		enc, err := obsws.ParseEncoding(flags.encoding)
		if err != nil {
			return err
		}
		cfg.Encoding = enc
	}
	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if changed("data-dir") {
		cfg.DataDir = flags.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	return nil
}

// connectRequest returns the port and password overrides to connect with.
// The stored settings are used unless the port was given explicitly or
// differs from the default, or a password is configured.
func (d *Dependencies) connectRequest() app.ConnectRequest {
	var req app.ConnectRequest
	if d.portFlag || d.Config.Port != config.DefaultPort {
		port := d.Config.Port
		req.Port = &port
	}
	if d.Config.Password != "" {
		password := d.Config.Password
		req.Password = &password
	}
	return req
}

// openApp opens the settings store and builds an App on it. The returned
// func disconnects and closes the store.
func (d *Dependencies) openApp(ctx context.Context, opts app.Options) (*app.App, func(), error) {
	store, err := storage.Open(d.Config.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening settings: %w", err)
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = delay.OBSDialer(delay.DialOptions{
			Encoding:       d.Config.Encoding,
			RequestTimeout: d.Config.CallTimeout,
		})
	}
	opts.Host = d.Config.Host
	opts.Dialer = dialer
	opts.CallTimeout = d.Config.CallTimeout
	opts.Store = store
	if opts.Clock == nil {
		opts.Clock = d.Clock
	}

	a, err := app.New(ctx, opts)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		a.Close()
		if err := store.Close(); err != nil {
			logger.Warnf("cli: close settings: %v", err)
		}
	}
	return a, cleanup, nil
}
