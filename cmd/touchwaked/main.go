// Command touchwaked keeps the touchscreen alive for a short while after the
// screen blanks and turns the next touch into a power-key press.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/sweeney/touchwake/internal/config"
	"github.com/sweeney/touchwake/internal/touchwake"
)

var log = logrus.WithField("component", "main")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// flagValues holds the raw flag targets; only flags the user set become
// config overrides.
type flagValues struct {
	configPath     string
	enabled        bool
	delayMs        int64
	logLevel       string
	touchDevice    string
	powerKeyDevice string
	suspendSource  string
	broker         string
	httpAddr       string
	heartbeat      time.Duration
}

func newRootCmd() *cobra.Command {
	fv := &flagValues{}

	root := &cobra.Command{
		Use:          "touchwaked",
		Short:        "Wake the device with a touch after the screen blanks",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, fv)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&fv.configPath, "config", "", "config file (default "+config.DefaultPath+")")
	pf.BoolVar(&fv.enabled, "enabled", false, "enable touch wake at startup")
	pf.Int64Var(&fv.delayMs, "delay", 5000, "touch-off delay in ms after a screen-off (0 keeps touch on until resume)")
	pf.StringVar(&fv.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&fv.touchDevice, "touch-device", "", "touchscreen evdev path")
	pf.StringVar(&fv.powerKeyDevice, "powerkey-device", "", "power key evdev path")
	pf.StringVar(&fv.suspendSource, "suspend-source", "logind", "suspend/resume source (logind, mqtt, none)")
	pf.StringVar(&fv.broker, "broker", "", "MQTT broker address (empty to disable)")
	pf.StringVar(&fv.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	pf.DurationVar(&fv.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")

	root.AddCommand(newVersionCmd(), newPrintStateCmd(fv))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the touch wake version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), touchwake.Version)
		},
	}
}

func newPrintStateCmd(fv *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "print-state",
		Short: "Print the running daemon's state and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, fv)
			if err != nil {
				return err
			}
			if cfg.HTTP == "" {
				return fmt.Errorf("print-state needs the HTTP server (--http)")
			}
			return printState(cmd.OutOrStdout(), http.DefaultClient, statusURL(cfg.HTTP))
		},
	}
}

// loadConfig resolves the config and applies the log level.
func loadConfig(cmd *cobra.Command, fv *flagValues) (*config.Config, error) {
	cfg, err := config.Load(fv.configPath, os.Getenv, overrides(cmd, fv))
	if err != nil {
		return nil, err
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, _ := logrus.ParseLevel(cfg.LogLevel) // validated by Load
	logrus.SetLevel(level)
	return cfg, nil
}

func overrides(cmd *cobra.Command, fv *flagValues) config.Overrides {
	var ov config.Overrides
	flags := cmd.Flags()
	if flags.Changed("enabled") {
		ov.Enabled = &fv.enabled
	}
	if flags.Changed("delay") {
		ov.DelayMs = &fv.delayMs
	}
	if flags.Changed("log-level") {
		ov.LogLevel = &fv.logLevel
	}
	if flags.Changed("touch-device") {
		ov.TouchDevice = &fv.touchDevice
	}
	if flags.Changed("powerkey-device") {
		ov.PowerKeyDevice = &fv.powerKeyDevice
	}
	if flags.Changed("suspend-source") {
		ov.SuspendSource = &fv.suspendSource
	}
	if flags.Changed("broker") {
		ov.Broker = &fv.broker
	}
	if flags.Changed("http") {
		ov.HTTP = &fv.httpAddr
	}
	if flags.Changed("heartbeat") {
		ov.Heartbeat = &fv.heartbeat
	}
	return ov
}

// statusURL turns a listen address into the local status URL.
func statusURL(httpAddr string) string {
	host := httpAddr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host + "/index.json"
}

func printState(w io.Writer, client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("query daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query daemon: %s", resp.Status)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}
