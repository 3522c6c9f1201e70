package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sppchat/internal/config"
	"sppchat/internal/link"
	"sppchat/internal/logging"
)

// rootOptions holds global flags and the state set during PersistentPreRunE.
type rootOptions struct {
	cfgFile        string
	logLevel       string
	logFile        string
	adapter        string
	strategies     []string
	channel        uint8
	listen         string
	connectTimeout time.Duration
	powerOn        bool

	cfg *config.Config

	// Platform hooks, replaced in tests.
	newStrategies func(*config.Config, *zap.Logger) ([]link.Strategy, error)
	watchRadio    func(context.Context, *app)
}

func newRootCmd() *cobra.Command {
	return newRootCommand(&rootOptions{newStrategies: platformStrategies, watchRadio: watchRadio})
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "sppchat",
		Short: "Newline-delimited text chat over Bluetooth RFCOMM (Serial Port Profile)",
		Long: `sppchat connects to one Bluetooth peer over the Serial Port Profile and
exchanges UTF-8 text lines with it. The BlueZ profile is tried first and a
raw RFCOMM socket on a fixed channel is used as fallback.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.cfgFile, "config", "", "config file (default is ~/.config/sppchat/config.yaml)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")
	f.StringVar(&opts.adapter, "adapter", "", "local Bluetooth adapter (default \"hci0\")")
	f.StringSliceVar(&opts.strategies, "strategy", nil, "socket strategies in the order tried: profile, rfcomm")
	f.Uint8Var(&opts.channel, "channel", 0, "RFCOMM channel for the raw socket fallback (default 1)")
	f.StringVar(&opts.listen, "listen", "", "serve the WebSocket bridge on this address")
	f.BoolVar(&opts.powerOn, "power-on", false, "switch the adapter on if it is off")
	f.DurationVar(&opts.connectTimeout, "connect-timeout", 0, "abandon a connection attempt after this long (0 waits)")

	root.AddCommand(
		newChatCmd(opts),
		newPipeCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the config file and applies flag overrides.
func (o *rootOptions) load(cmd *cobra.Command) error {
	path := o.cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	f := cmd.Flags()
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}
	if o.adapter != "" {
		cfg.Adapter = o.adapter
	}
	if f.Changed("strategy") {
		cfg.Strategies = o.strategies
	}
	if f.Changed("channel") {
		cfg.RFCOMMChannel = o.channel
	}
	if o.listen != "" {
		cfg.Listen = o.listen
	}
	if f.Changed("power-on") {
		cfg.PowerOn = o.powerOn
	}
	if f.Changed("connect-timeout") {
		cfg.ConnectTimeout = o.connectTimeout
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	o.cfg = cfg
	return nil
}

// logger builds the zap logger. The chat screen owns the terminal, so it
// logs to a file even when none is configured.
func (o *rootOptions) logger(interactive bool) (*zap.Logger, error) {
	file := o.cfg.Log.File
	if file == "" && interactive {
		file = filepath.Join(os.TempDir(), "sppchat.log")
	}
	return logging.New(o.cfg.Log.Level, file)
}

// peerArg picks the peer from args or the config.
func (o *rootOptions) peerArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return o.cfg.Peer
}
