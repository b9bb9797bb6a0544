// Package config loads skillrun settings through viper, along with the device
// inventory and the device service configuration files.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/dhwoox/Final-RAG/pkg/db"
	"github.com/dhwoox/Final-RAG/pkg/device"
)

const (
	// EnvPrefix is the prefix of environment variables overriding settings.
	EnvPrefix = "SKILLRUN"

	DefaultConfigPath  = "demo/demo/config.json"
	DefaultEnvironPath = "demo/demo/test/environ.json"
	DefaultDataDir     = "demo/demo/test/data"
)

// MonitorSettings tunes the event monitoring adapter.
type MonitorSettings struct {
	DefaultTimeout    time.Duration `mapstructure:"default_timeout"`
	SubscribeAttempts uint          `mapstructure:"subscribe_attempts"`
	SubscribeDelay    time.Duration `mapstructure:"subscribe_delay"`
}

// CommandSettings tunes the `run` instruction.
type CommandSettings struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// Allowed is a list of glob patterns. An empty list allows every command.
	Allowed []string `mapstructure:"allowed"`
}

// HistorySettings controls the run history database.
type HistorySettings struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// TracingSettings controls OpenTelemetry tracing.
type TracingSettings struct {
	Enabled bool    `mapstructure:"enabled"`
	Sampler string  `mapstructure:"sampler"`
	Ratio   float64 `mapstructure:"ratio"`
}

// Settings is the resolved skillrun configuration.
type Settings struct {
	BasePath    string          `mapstructure:"base_path"`
	ConfigPath  string          `mapstructure:"config_path"`
	EnvironPath string          `mapstructure:"environ_path"`
	DataDir     string          `mapstructure:"data_dir"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFormat   string          `mapstructure:"log_format"`
	Monitor     MonitorSettings `mapstructure:"monitor"`
	Command     CommandSettings `mapstructure:"command"`
	History     HistorySettings `mapstructure:"history"`
	Tracing     TracingSettings `mapstructure:"tracing"`
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_path", ".")
	v.SetDefault("config_path", DefaultConfigPath)
	v.SetDefault("environ_path", DefaultEnvironPath)
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")

	v.SetDefault("monitor.default_timeout", 3*time.Second)
	v.SetDefault("monitor.subscribe_attempts", 3)
	v.SetDefault("monitor.subscribe_delay", 200*time.Millisecond)

	v.SetDefault("command.timeout", time.Duration(0))
	v.SetDefault("command.allowed", []string{})

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.db_path", defaultHistoryPath())

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampler", "ratio")
	v.SetDefault("tracing.ratio", 1.0)
}

func defaultHistoryPath() string {
	path, err := db.DefaultDBPath()
	if err != nil {
		return filepath.Join(".skillrun", "storage.db")
	}
	return path
}

// Init configures v the way the CLI expects: SKILLRUN_ environment overrides
// and an optional config.yaml in $HOME/.skillrun or the working directory.
// A missing config file is not an error.
func Init(v *viper.Viper) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.skillrun")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

// Load decodes the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if s.BasePath == "" {
		s.BasePath = "."
	}
	return &s, nil
}

// Default returns the settings obtained from defaults alone.
func Default() *Settings {
	v := viper.New()
	SetDefaults(v)
	s, err := Load(v)
	if err != nil {
		// Defaults always decode.
		panic(err)
	}
	return s
}

// Resolve joins a relative path onto the base path. Absolute paths are
// returned unchanged.
func (s *Settings) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.BasePath, path)
}

// LoadInventory reads the device inventory (environ file) at path. JSON, YAML
// and TOML are accepted, chosen by file extension.
func LoadInventory(path string) (*device.Inventory, error) {
	v, err := readFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read device inventory")
	}
	var inv device.Inventory
	if err := v.Unmarshal(&inv); err != nil {
		return nil, errors.Wrapf(err, "failed to decode device inventory %s", path)
	}
	return &inv, nil
}

// LoadServiceConfig reads the device service configuration at path. A
// missing file yields the simulator backend.
func LoadServiceConfig(path string) (*device.ServiceConfig, error) {
	cfg := &device.ServiceConfig{Backend: "simulator"}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	v, err := readFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read device service config")
	}
	v.SetDefault("backend", "simulator")
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode device service config %s", path)
	}
	return cfg, nil
}

func readFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		v.SetConfigType(ext)
	} else {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return v, nil
}
