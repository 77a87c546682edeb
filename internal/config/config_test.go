package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Enabled {
		t.Error("feature should default to disabled")
	}
	if cfg.Delay() != 5*time.Second {
		t.Errorf("Delay: got %v, want 5s", cfg.Delay())
	}
	if cfg.Digitizer.PenLine != -1 {
		t.Errorf("PenLine: got %d, want -1", cfg.Digitizer.PenLine)
	}
}

func TestLoadFile(t *testing.T) {
	p := writeConfig(t, `
enabled: true
delay_ms: 3000
log_level: debug
touch_device: /dev/input/event1
powerkey_gpio:
  chip: gpiochip1
  line: 17
digitizer:
  kind: sysfs
  path: /sys/class/touch/enabled
wakelock:
  kind: logind
suspend_source: mqtt
mqtt:
  broker: tcp://broker:1883
  topic_prefix: home/tablet
heartbeat: 1m
`)

	cfg, err := Load(p, envMap(nil), Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.Enabled || cfg.DelayMs != 3000 || cfg.LogLevel != "debug" {
		t.Errorf("scalars: %+v", cfg)
	}
	if cfg.PowerKeyGPIO == nil || cfg.PowerKeyGPIO.Chip != "gpiochip1" || cfg.PowerKeyGPIO.Line != 17 {
		t.Errorf("PowerKeyGPIO: %+v", cfg.PowerKeyGPIO)
	}
	if cfg.Digitizer.Kind != KindSysfs || cfg.Digitizer.Path != "/sys/class/touch/enabled" {
		t.Errorf("Digitizer: %+v", cfg.Digitizer)
	}
	if cfg.WakeLock.Kind != KindLogind || cfg.WakeLock.Name != "touchwake_wake" {
		t.Errorf("WakeLock: %+v", cfg.WakeLock)
	}
	if cfg.SuspendSource != KindMQTT {
		t.Errorf("SuspendSource: got %q", cfg.SuspendSource)
	}
	if cfg.MQTT.TopicPrefix != "home/tablet" || cfg.MQTT.ClientID != "touchwaked" {
		t.Errorf("MQTT: %+v", cfg.MQTT)
	}
	if cfg.Heartbeat != time.Minute {
		t.Errorf("Heartbeat: got %v", cfg.Heartbeat)
	}
	if cfg.HTTP != ":8080" {
		t.Errorf("HTTP default lost: %q", cfg.HTTP)
	}
}

func TestLoadPrecedence(t *testing.T) {
	p := writeConfig(t, "delay_ms: 1000\nhttp: \":81\"\nlog_level: warn\n")
	env := envMap(map[string]string{
		"TOUCHWAKE_DELAY_MS":  "2000",
		"TOUCHWAKE_HTTP":      ":82",
		"TOUCHWAKE_ENABLED":   "true",
		"TOUCHWAKE_HEARTBEAT": "30s",
	})
	delay := int64(3000)

	cfg, err := Load(p, env, Overrides{DelayMs: &delay})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DelayMs != 3000 {
		t.Errorf("flag should win: got %d", cfg.DelayMs)
	}
	if cfg.HTTP != ":82" {
		t.Errorf("env should beat file: got %q", cfg.HTTP)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("file should beat default: got %q", cfg.LogLevel)
	}
	if !cfg.Enabled {
		t.Error("env enabled not applied")
	}
	if cfg.Heartbeat != 30*time.Second {
		t.Errorf("Heartbeat: got %v", cfg.Heartbeat)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), envMap(nil), Overrides{})
	if err == nil {
		t.Fatal("expected error for missing --config file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	p := writeConfig(t, "delay_ms: [1, 2\n")
	_, err := Load(p, envMap(nil), Overrides{})
	if err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLoadBadEnv(t *testing.T) {
	p := writeConfig(t, "")
	tests := map[string]string{
		"TOUCHWAKE_ENABLED":   "maybe",
		"TOUCHWAKE_DELAY_MS":  "soon",
		"TOUCHWAKE_HEARTBEAT": "often",
	}
	for key, val := range tests {
		_, err := Load(p, envMap(map[string]string{key: val}), Overrides{})
		if err == nil || !strings.Contains(err.Error(), key) {
			t.Errorf("%s=%s: expected error naming the key, got %v", key, val, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative delay", func(c *Config) { c.DelayMs = -1 }, "delay_ms"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"sysfs without path", func(c *Config) { c.Digitizer.Kind = KindSysfs }, "digitizer.path"},
		{"gpio negative line", func(c *Config) { c.Digitizer.Kind = KindGPIO; c.Digitizer.Line = -2 }, "digitizer.line"},
		{"unknown digitizer", func(c *Config) { c.Digitizer.Kind = "i2c" }, "digitizer.kind"},
		{"unknown wakelock", func(c *Config) { c.WakeLock.Kind = "kernel" }, "wakelock.kind"},
		{"unknown suspend source", func(c *Config) { c.SuspendSource = "acpi" }, "suspend_source"},
		{"mqtt source without broker", func(c *Config) { c.SuspendSource = KindMQTT }, "mqtt.broker"},
		{"broker without scheme", func(c *Config) { c.MQTT.Broker = "broker:1883" }, "scheme"},
		{"logind wakelock with logind source", func(c *Config) { c.WakeLock.Kind = KindLogind; c.SuspendSource = KindLogind }, "wakelock.kind logind"},
		{"powerkey gpio negative", func(c *Config) { c.PowerKeyGPIO = &GPIOLine{Line: -1} }, "powerkey_gpio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	cfg := Default()
	cfg.DelayMs = -5
	cfg.WakeLock.Kind = "bogus"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "delay_ms") || !strings.Contains(err.Error(), "wakelock.kind") {
		t.Errorf("expected both problems reported: %v", err)
	}
}

func TestValidateLogindWakeLockWithMQTTSource(t *testing.T) {
	cfg := Default()
	cfg.WakeLock.Kind = KindLogind
	cfg.SuspendSource = KindMQTT
	cfg.MQTT.Broker = "tcp://broker:1883"
	if err := cfg.Validate(); err != nil {
		t.Errorf("logind inhibitor with an mqtt suspend source should be valid: %v", err)
	}
}

func TestValidateZeroDelay(t *testing.T) {
	cfg := Default()
	cfg.DelayMs = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero delay (indefinite) should be valid: %v", err)
	}
}
