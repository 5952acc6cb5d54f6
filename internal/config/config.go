// Package config loads the bridge's YAML configuration file: the serial
// device and baud rate to the SRC handheld, the local/remote UDP
// endpoints for the EPC, and logging verbosity.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of the bridge's YAML configuration file.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	UDP    UDPConfig    `yaml:"udp"`
	Log    LogConfig    `yaml:"log"`
}

// SerialConfig describes the link to the SRC handheld.
type SerialConfig struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
}

// UDPConfig describes the link to the EPC.
type UDPConfig struct {
	LocalAddr  string `yaml:"localAddr"`
	RemoteAddr string `yaml:"remoteAddr"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config with the firmware's fixed serial parameters and
// a sensible local/remote UDP pairing, for use when no file is supplied or
// to fill in fields a partial file leaves zero.
func Default() Config {
	return Config{
		Serial: SerialConfig{
			Device:      "/dev/ttyUSB0",
			Baud:        115200,
			ReadTimeout: 200 * time.Millisecond,
		},
		UDP: UDPConfig{
			LocalAddr:  "127.0.0.1:5683",
			RemoteAddr: "127.0.0.1:5684",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads and parses the YAML file at path, overlaying it onto Default.
// Zero-valued fields in the file leave the default in place.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	overlay(&cfg, file)
	return cfg, nil
}

func overlay(cfg *Config, file Config) {
	if file.Serial.Device != "" {
		cfg.Serial.Device = file.Serial.Device
	}
	if file.Serial.Baud != 0 {
		cfg.Serial.Baud = file.Serial.Baud
	}
	if file.Serial.ReadTimeout != 0 {
		cfg.Serial.ReadTimeout = file.Serial.ReadTimeout
	}
	if file.UDP.LocalAddr != "" {
		cfg.UDP.LocalAddr = file.UDP.LocalAddr
	}
	if file.UDP.RemoteAddr != "" {
		cfg.UDP.RemoteAddr = file.UDP.RemoteAddr
	}
	if file.Log.Level != "" {
		cfg.Log.Level = file.Log.Level
	}
}

// ParseLevel resolves the configured log level, falling back to Info on an
// empty or unrecognized value.
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
