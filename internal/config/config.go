// Package config holds torchd's settings. Values come from, in increasing
// precedence: built-in defaults, a TOML file, TORCHD_* environment variables
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"

	"github.com/sweeney/torchd/internal/motion"
	"github.com/sweeney/torchd/internal/pattern"
	"github.com/sweeney/torchd/internal/torch"
)

// DefaultPath is read when --config is not given. A missing file at this
// path is not an error.
const DefaultPath = "/etc/torchd.toml"

// EnvPrefix prefixes environment overrides, e.g. TORCHD_STROBE=150ms.
const EnvPrefix = "TORCHD_"

// Platform names.
const (
	PlatformAuto  = "auto"
	PlatformGPIO  = "gpio"
	PlatformSysfs = "sysfs"
)

// Config is the daemon configuration.
type Config struct {
	ConfigFile string

	Platform  string
	GPIOChip  string
	GPIOPin   int
	ActiveLow bool
	LEDRoot   string

	Strobe time.Duration

	ShakeThreshold float64
	ShakeCooldown  time.Duration
	ShakeMode      string
	SensorPoll     time.Duration // 0 disables shake detection
	IIORoot        string
	IIODevice      string // empty = first accelerometer under IIORoot

	Broker    string // empty disables MQTT
	Heartbeat time.Duration
	HTTP      string // empty disables the web server
	WSBroker  string
	AuthUser  string
	AuthHash  string // bcrypt
	Metrics   bool

	TUI        bool
	NetworkEnv string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ConfigFile:     DefaultPath,
		Platform:       PlatformAuto,
		GPIOChip:       torch.DefaultChip,
		GPIOPin:        torch.DefaultPin,
		LEDRoot:        torch.DefaultLEDRoot,
		Strobe:         pattern.DefaultStrobeInterval,
		ShakeThreshold: motion.DefaultThreshold,
		ShakeMode:      string(motion.ModeEdge),
		SensorPoll:     200 * time.Millisecond,
		IIORoot:        motion.DefaultIIORoot,
		Broker:         "tcp://localhost:1883",
		Heartbeat:      15 * time.Minute,
		HTTP:           ":80",
		WSBroker:       "=broker",
		Metrics:        true,
		NetworkEnv:     "/run/pi-helper.env",
	}
}

// BindFlags registers every setting on fs, backed by c. The current values
// of c are the flag defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.ConfigFile, "config", "c", c.ConfigFile, "TOML config file")

	fs.StringVar(&c.Platform, "platform", c.Platform, "torch backend: auto, gpio or sysfs")
	fs.StringVar(&c.GPIOChip, "gpio-chip", c.GPIOChip, "GPIO chip for the torch LED")
	fs.IntVar(&c.GPIOPin, "gpio-pin", c.GPIOPin, "GPIO line offset for the torch LED")
	fs.BoolVar(&c.ActiveLow, "active-low", c.ActiveLow, "drive the torch line low for ON")
	fs.StringVar(&c.LEDRoot, "led-root", c.LEDRoot, "LED class directory for the sysfs backend")

	fs.DurationVar(&c.Strobe, "strobe", c.Strobe, "strobe toggle interval")

	fs.Float64Var(&c.ShakeThreshold, "shake-threshold", c.ShakeThreshold, "shake magnitude in m/s² (strictly greater)")
	fs.DurationVar(&c.ShakeCooldown, "shake-cooldown", c.ShakeCooldown, "minimum time between shake toggles")
	fs.StringVar(&c.ShakeMode, "shake-mode", c.ShakeMode, "shake trigger: edge or level")
	fs.DurationVar(&c.SensorPoll, "sensor-poll", c.SensorPoll, "accelerometer polling interval (0 to disable)")
	fs.StringVar(&c.IIORoot, "iio-root", c.IIORoot, "IIO device directory")
	fs.StringVar(&c.IIODevice, "iio-device", c.IIODevice, "accelerometer device directory (empty to search --iio-root)")

	fs.StringVar(&c.Broker, "broker", c.Broker, "MQTT broker address (empty to disable)")
	fs.DurationVar(&c.Heartbeat, "heartbeat", c.Heartbeat, "heartbeat interval (0 to disable)")
	fs.StringVar(&c.HTTP, "http", c.HTTP, "HTTP address (empty to disable)")
	fs.StringVar(&c.WSBroker, "ws-broker", c.WSBroker, `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	fs.StringVar(&c.AuthUser, "auth-user", c.AuthUser, "basic auth user for control endpoints")
	fs.StringVar(&c.AuthHash, "auth-hash", c.AuthHash, "bcrypt hash of the basic auth password")
	fs.BoolVar(&c.Metrics, "metrics", c.Metrics, "serve Prometheus metrics at /metrics")

	fs.BoolVar(&c.TUI, "tui", c.TUI, "show the terminal UI")
	fs.StringVar(&c.NetworkEnv, "network-env", c.NetworkEnv, "env file with NETWORK_* status")
}

// Load applies the config file and environment to the flag-bound settings.
// Flags set on the command line keep their values. fs must have been
// populated by BindFlags and parsed.
func Load(fs *pflag.FlagSet, getenv func(string) string) error {
	explicit := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	_, required := explicit["config"]
	path := fs.Lookup("config").Value.String()
	if err := loadFile(fs, path, required); err != nil {
		return err
	}
	if err := loadEnv(fs, getenv); err != nil {
		return err
	}

	for name, v := range explicit {
		if err := fs.Set(name, v); err != nil {
			return fmt.Errorf("restore flag --%s: %w", name, err)
		}
	}
	return nil
}

func loadFile(fs *pflag.FlagSet, path string, required bool) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var values map[string]any
	if err := toml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := strings.ReplaceAll(k, "_", "-")
		if name == "config" || fs.Lookup(name) == nil {
			return fmt.Errorf("parse config %s: unknown key %q", path, k)
		}
		if err := fs.Set(name, fmt.Sprint(values[k])); err != nil {
			return fmt.Errorf("parse config %s: %s: %w", path, k, err)
		}
	}
	return nil
}

func loadEnv(fs *pflag.FlagSet, getenv func(string) string) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == "config" {
			return
		}
		key := EnvKey(f.Name)
		v := getenv(key)
		if v == "" {
			return
		}
		if setErr := fs.Set(f.Name, v); setErr != nil {
			err = fmt.Errorf("env %s: %w", key, setErr)
		}
	})
	return err
}

// EnvKey returns the environment variable that overrides a flag.
func EnvKey(flag string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// Validate checks values that flags cannot constrain by type.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformAuto, PlatformGPIO, PlatformSysfs:
	default:
		return fmt.Errorf("unknown platform %q (want auto, gpio or sysfs)", c.Platform)
	}
	if c.Strobe <= 0 {
		return fmt.Errorf("strobe interval must be positive, got %v", c.Strobe)
	}
	if c.ShakeThreshold <= 0 {
		return fmt.Errorf("shake threshold must be positive, got %v", c.ShakeThreshold)
	}
	if c.ShakeCooldown < 0 || c.SensorPoll < 0 || c.Heartbeat < 0 {
		return errors.New("durations must not be negative")
	}
	if _, err := motion.ParseMode(c.ShakeMode); err != nil {
		return err
	}
	if (c.AuthUser == "") != (c.AuthHash == "") {
		return errors.New("auth-user and auth-hash must be set together")
	}
	return nil
}
