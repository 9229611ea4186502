// Command huskyctl drives a HuskyLens sensor over a serial port.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/banshee-data/huskylens/internal/config"
	"github.com/banshee-data/huskylens/internal/huskylens"
	"github.com/banshee-data/huskylens/internal/monitoring"
	"github.com/banshee-data/huskylens/internal/serialport"
)

// errNotAcknowledged is returned when the device answers with something
// other than OK.
var errNotAcknowledged = errors.New("device did not acknowledge")

const skipSetup = "huskyctl/skip-setup"

// app is the state shared by every subcommand.
type app struct {
	configPath string
	factory    serialport.PortFactory

	cfg     *config.Config
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

func main() {
	if err := newRootCmd(serialport.NewRealPortFactory()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(factory serialport.PortFactory) *cobra.Command {
	a := &app{factory: factory}

	root := &cobra.Command{
		Use:   "huskyctl",
		Short: "Control a HuskyLens vision sensor over serial",
		Long: `huskyctl talks to a HuskyLens sensor over its serial protocol.

Device settings come from a huskylens.{yaml,toml,json} file, HUSKY_*
environment variables and the flags below, in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetup] != "" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default: ./huskylens.yaml or ~/.config/huskylens/huskylens.yaml)")
	pf.String("port", "/dev/ttyUSB0", "serial device path")
	pf.Int("baud", serialport.DefaultBaudRate, "serial baud rate")
	pf.Duration("timeout", serialport.DefaultReadTimeout, "per-read timeout")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")

	root.AddCommand(
		knockCmd(a),
		algorithmCmd(a),
		learnCmd(a),
		forgetCmd(a),
		photoCmd(a),
		screenshotCmd(a),
		nameCmd(a),
		textCmd(a),
		clearTextCmd(a),
		saveModelCmd(a),
		loadModelCmd(a),
		isProCmd(a),
		blocksCmd(a),
		arrowsCmd(a),
		recordCmd(a),
		statsCmd(a),
		versionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := monitoring.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// withClient opens the configured port, runs fn and always closes the port.
func (a *app) withClient(fn func(*huskylens.Client) error) error {
	observers := []huskylens.Observer{monitoring.NewLogObserver(a.logger)}
	if a.metrics != nil {
		observers = append(observers, monitoring.NewMetricsObserver(a.metrics))
	}
	a.logger.Debug("opening port",
		zap.String("port", a.cfg.Serial.Port),
		zap.Stringer("mode", a.cfg.Serial.PortOptions))
	return huskylens.WithSession(a.factory, a.cfg.Serial.Port, a.cfg.Serial.PortOptions, fn,
		huskylens.WithObserver(huskylens.MultiObserver(observers...)))
}

func parseUint16(what, s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", what, s, huskylens.ErrInvalidArgument)
	}
	return uint16(v), nil
}

func shortDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
