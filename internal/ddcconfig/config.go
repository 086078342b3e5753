// Package ddcconfig defines the configuration surface of spec.md §6 and
// loads it from an optional YAML file, the same struct-plus-file-loader
// shape the teacher's config.go uses for the TNC's larger configuration.
package ddcconfig

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every recognized option from spec.md §6
// "Configuration surface".
type Config struct {
	MaxTriesWriteOnly int  `yaml:"max_tries_write_only"`
	MaxTriesWriteRead int  `yaml:"max_tries_write_read"`
	MaxTriesMultiPart int  `yaml:"max_tries_multi_part"`
	ForceSlaveAddr    bool `yaml:"force_slave_addr"`
	ReadTimeoutMs     int  `yaml:"read_timeout_ms"`
	AllowAllZeroFirst bool `yaml:"allow_all_zero_first_fragment"`
}

// defaultMaxTries matches spec.md §4.5 "defaults 4, 4, 4, 4".
const defaultMaxTries = 4

// Default returns the spec-mandated default configuration.
func Default() Config {
	return Config{
		MaxTriesWriteOnly: defaultMaxTries,
		MaxTriesWriteRead: defaultMaxTries,
		MaxTriesMultiPart: defaultMaxTries,
		ForceSlaveAddr:    false,
		ReadTimeoutMs:     0,
		AllowAllZeroFirst: true,
	}
}

// Load reads a YAML config file at path and overlays it onto Default().
// A missing file is not an error — it simply yields the defaults, the
// same "empty string disables feature" tolerance the teacher's log_init
// applies to its own optional file path.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
