// Package config loads the TOML configuration shared by the testbench commands.
package config

import (
	"bytes"
	_ "embed"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

//go:embed default.toml
var defaultTOML []byte

// Duration is a time.Duration written as a string ("250ms", "30m") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "duration %q", text)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete configuration file.
type Config struct {
	Serve      Serve      `toml:"serve"`
	Posts      Posts      `toml:"posts"`
	PostServer PostServer `toml:"postserver"`
}

// Serve configures the showcase web app.
type Serve struct {
	Addr           string   `toml:"addr"`
	LogLevel       string   `toml:"log_level"`
	Title          string   `toml:"title"`
	SessionTTL     Duration `toml:"session_ttl"`
	DecrementDelay Duration `toml:"decrement_delay"`
	Items          []string `toml:"items"`
}

// Posts configures the outbound post client.
type Posts struct {
	Endpoint string   `toml:"endpoint"`
	Timeout  Duration `toml:"timeout"`
}

// PostServer configures the local post backend.
type PostServer struct {
	Addr string `toml:"addr"`
	DB   string `toml:"db"`
}

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	if _, err := toml.NewDecoder(bytes.NewReader(defaultTOML)).Decode(&cfg); err != nil {
		panic("config: embedded defaults: " + err.Error())
	}
	return cfg
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	return Parse(cfg, data)
}

// Parse decodes data over base. Keys missing from data keep base's values.
func Parse(base Config, data []byte) (Config, error) {
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&base)
	if err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.Errorf("unknown config key %q", undecoded[0].String())
	}
	return base, nil
}
