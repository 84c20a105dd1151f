// internal/config/load.go
package config

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load reads and decodes a YAML configuration file.
// Unknown keys are rejected. No defaults are applied here.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	return Parse(raw)
}

// Parse decodes YAML configuration bytes.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	return &cfg, nil
}
