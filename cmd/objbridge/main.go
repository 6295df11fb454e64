// Command objbridge serves, watches and drives bridged object graphs over
// WebSocket.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vango-dev/objbridge/internal/config"
	clierrors "github.com/vango-dev/objbridge/internal/errors"
	"github.com/vango-dev/objbridge/pkg/bridge"
	"github.com/vango-dev/objbridge/pkg/transport"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		clierrors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries the configuration shared by every command.
type app struct {
	configFile string
	v          *viper.Viper
	cfg        *config.Config
	logger     *slog.Logger
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"throttle":   "bridge.throttle_ms",
	"addr":       "server.address",
	"url":        "client.url",
	"timeout":    "client.timeout_seconds",
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "objbridge",
		Short: "Mirror Go object graphs to remote peers",
		Long: `objbridge keeps a live mirror of a server-side object graph on a
remote peer. Properties are synchronised as they change, methods can
be called remotely and events are delivered to listeners.

Configuration is read from objbridge.yaml (in the working directory or
$HOME/.config/objbridge), then OBJBRIDGE_* environment variables, then
flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (default is ./objbridge.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
	flags.Int("throttle", 0, "flush delay in milliseconds (default from bridge.throttle_ms)")

	rootCmd.AddCommand(
		serveCmd(a),
		watchCmd(a),
		callCmd(a),
		versionCmd(),
	)

	return rootCmd
}

// load reads the configuration for cmd, with its flags taking precedence.
func (a *app) load(cmd *cobra.Command) error {
	v, err := config.New(a.configFile)
	if err != nil {
		return clierrors.New("B002").Wrap(err)
	}

	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return clierrors.New("B001").Wrap(err)
	}

	a.v = v
	a.cfg = cfg
	a.logger = cfg.Logging.NewLogger(cmd.ErrOrStderr())
	return nil
}

// bridgeOptions returns the options every bridge is created with.
func (a *app) bridgeOptions(extra ...bridge.Option) []bridge.Option {
	opts := []bridge.Option{
		bridge.WithThrottle(a.cfg.Bridge.Throttle()),
		bridge.WithLogger(a.logger),
	}
	return append(opts, extra...)
}

// wsConfig returns the transport configuration.
func (a *app) wsConfig() *transport.WSConfig {
	return &transport.WSConfig{
		ReadTimeout:    a.cfg.Bridge.ReadTimeout(),
		WriteTimeout:   a.cfg.Bridge.WriteTimeout(),
		PingInterval:   a.cfg.Bridge.PingInterval(),
		MaxMessageSize: a.cfg.Bridge.MaxMessageBytes,
		Logger:         a.logger,
	}
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
