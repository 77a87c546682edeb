// Package config resolves daemon configuration from flags > env > config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing file at the
// default path is not an error.
const DefaultPath = "/etc/touchwake/config.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TOUCHWAKE_"

// Kinds accepted by the digitizer and wakelock sections.
const (
	KindSysfs  = "sysfs"
	KindGPIO   = "gpio"
	KindLogind = "logind"
	KindMQTT   = "mqtt"
	KindNone   = "none"
)

// GPIOLine names a line on a GPIO chip.
type GPIOLine struct {
	Chip string `yaml:"chip"`
	Line int    `yaml:"line"`
}

// Digitizer selects how the touch layers are switched.
type Digitizer struct {
	Kind    string `yaml:"kind"`
	Path    string `yaml:"path"`
	PenPath string `yaml:"pen_path"`
	Chip    string `yaml:"chip"`
	Line    int    `yaml:"line"`
	PenLine int    `yaml:"pen_line"` // -1: no pen line
}

// WakeLock selects how suspend is held off while touch is kept on.
type WakeLock struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
}

// MQTT configures the broker connection. An empty Broker disables MQTT.
type MQTT struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Config is the resolved daemon configuration.
type Config struct {
	Enabled        bool          `yaml:"enabled"`
	DelayMs        int64         `yaml:"delay_ms"`
	LogLevel       string        `yaml:"log_level"`
	TouchDevice    string        `yaml:"touch_device"`
	PowerKeyDevice string        `yaml:"powerkey_device"`
	PowerKeyGPIO   *GPIOLine     `yaml:"powerkey_gpio"`
	Digitizer      Digitizer     `yaml:"digitizer"`
	WakeLock       WakeLock      `yaml:"wakelock"`
	SuspendSource  string        `yaml:"suspend_source"`
	MQTT           MQTT          `yaml:"mqtt"`
	HTTP           string        `yaml:"http"`
	Heartbeat      time.Duration `yaml:"heartbeat"`
}

// Delay returns the touch-off delay as a duration.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// Default returns the configuration used before any source is applied.
func Default() *Config {
	return &Config{
		DelayMs:       5000,
		LogLevel:      "info",
		Digitizer:     Digitizer{Kind: KindNone, PenLine: -1},
		WakeLock:      WakeLock{Kind: KindNone, Name: "touchwake_wake"},
		SuspendSource: KindLogind,
		MQTT:          MQTT{ClientID: "touchwaked", TopicPrefix: "touchwake"},
		HTTP:          ":8080",
		Heartbeat:     15 * time.Minute,
	}
}

// Overrides carries command-line values. Nil fields were not given.
type Overrides struct {
	Enabled        *bool
	DelayMs        *int64
	LogLevel       *string
	TouchDevice    *string
	PowerKeyDevice *string
	SuspendSource  *string
	Broker         *string
	HTTP           *string
	Heartbeat      *time.Duration
}

// Load resolves configuration from flags > env > config file. path is the
// --config value; empty means DefaultPath, which may be absent. getenv is
// usually os.Getenv.
func Load(path string, getenv func(string) string, ov Overrides) (*Config, error) {
	cfg := Default()

	// 1. Load config file as base
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read config: %w", err)
	}

	// 2. Environment variables override config file
	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}

	// 3. CLI flags override everything
	applyOverrides(cfg, ov)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	env := func(key string) (string, bool) {
		v := getenv(EnvPrefix + key)
		return v, v != ""
	}

	if v, ok := env("ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sENABLED: %w", EnvPrefix, err)
		}
		cfg.Enabled = b
	}
	if v, ok := env("DELAY_MS"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sDELAY_MS: %w", EnvPrefix, err)
		}
		cfg.DelayMs = n
	}
	if v, ok := env("HEARTBEAT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sHEARTBEAT: %w", EnvPrefix, err)
		}
		cfg.Heartbeat = d
	}

	strs := map[string]*string{
		"LOG_LEVEL":         &cfg.LogLevel,
		"TOUCH_DEVICE":      &cfg.TouchDevice,
		"POWERKEY_DEVICE":   &cfg.PowerKeyDevice,
		"SUSPEND_SOURCE":    &cfg.SuspendSource,
		"DIGITIZER_KIND":    &cfg.Digitizer.Kind,
		"DIGITIZER_PATH":    &cfg.Digitizer.Path,
		"WAKELOCK_KIND":     &cfg.WakeLock.Kind,
		"MQTT_BROKER":       &cfg.MQTT.Broker,
		"MQTT_CLIENT_ID":    &cfg.MQTT.ClientID,
		"MQTT_TOPIC_PREFIX": &cfg.MQTT.TopicPrefix,
		"HTTP":              &cfg.HTTP,
	}
	for key, dst := range strs {
		if v, ok := env(key); ok {
			*dst = v
		}
	}
	return nil
}

func applyOverrides(cfg *Config, ov Overrides) {
	if ov.Enabled != nil {
		cfg.Enabled = *ov.Enabled
	}
	if ov.DelayMs != nil {
		cfg.DelayMs = *ov.DelayMs
	}
	if ov.LogLevel != nil {
		cfg.LogLevel = *ov.LogLevel
	}
	if ov.TouchDevice != nil {
		cfg.TouchDevice = *ov.TouchDevice
	}
	if ov.PowerKeyDevice != nil {
		cfg.PowerKeyDevice = *ov.PowerKeyDevice
	}
	if ov.SuspendSource != nil {
		cfg.SuspendSource = *ov.SuspendSource
	}
	if ov.Broker != nil {
		cfg.MQTT.Broker = *ov.Broker
	}
	if ov.HTTP != nil {
		cfg.HTTP = *ov.HTTP
	}
	if ov.Heartbeat != nil {
		cfg.Heartbeat = *ov.Heartbeat
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.DelayMs < 0 {
		errs = append(errs, fmt.Errorf("delay_ms must be >= 0, got %d", c.DelayMs))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must be >= 0, got %s", c.Heartbeat))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	switch c.Digitizer.Kind {
	case KindSysfs:
		if c.Digitizer.Path == "" {
			errs = append(errs, errors.New("digitizer.path is required for kind sysfs"))
		}
	case KindGPIO:
		if c.Digitizer.Line < 0 {
			errs = append(errs, fmt.Errorf("digitizer.line must be >= 0, got %d", c.Digitizer.Line))
		}
	case KindNone:
	default:
		errs = append(errs, fmt.Errorf("digitizer.kind %q: want sysfs, gpio or none", c.Digitizer.Kind))
	}

	switch c.WakeLock.Kind {
	case KindSysfs, KindLogind, KindNone:
	default:
		errs = append(errs, fmt.Errorf("wakelock.kind %q: want sysfs, logind or none", c.WakeLock.Kind))
	}

	switch c.SuspendSource {
	case KindLogind, KindNone:
	case KindMQTT:
		if c.MQTT.Broker == "" {
			errs = append(errs, errors.New("suspend_source mqtt requires mqtt.broker"))
		}
	default:
		errs = append(errs, fmt.Errorf("suspend_source %q: want logind, mqtt or none", c.SuspendSource))
	}

	// PrepareForSleep arrives after logind has committed to sleeping, so a
	// block inhibitor taken from that Suspend cannot hold the system up.
	if c.WakeLock.Kind == KindLogind && c.SuspendSource == KindLogind {
		errs = append(errs, errors.New("wakelock.kind logind cannot hold off a suspend reported by suspend_source logind; use sysfs, or suspend_source mqtt"))
	}

	if c.PowerKeyGPIO != nil && c.PowerKeyGPIO.Line < 0 {
		errs = append(errs, fmt.Errorf("powerkey_gpio.line must be >= 0, got %d", c.PowerKeyGPIO.Line))
	}
	if c.MQTT.Broker != "" && !strings.Contains(c.MQTT.Broker, "://") {
		errs = append(errs, fmt.Errorf("mqtt.broker %q: want scheme://host:port", c.MQTT.Broker))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
