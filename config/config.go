// Package config is the run configuration of the command line tools.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"bitbucket.org/dtolpin/salzberg/features"
	"bitbucket.org/dtolpin/salzberg/priors"
)

// ErrMissing is returned by Validate when a required path is empty.
var ErrMissing = errors.New("missing configuration")

// Config describes inputs and parameters of a run. Paths are
// relative to the working directory.
type Config struct {
	Alphabet string `yaml:"alphabet"`
	Estimate string `yaml:"estimate"`
	Train    string `yaml:"train"`
	Test     string `yaml:"test"`
	// Priors default to the label frequencies of the training set.
	Priors  *priors.Priors `yaml:"priors"`
	Noise   float64        `yaml:"noise"`
	Workers int            `yaml:"workers"`
}

// Default returns the configuration with default values.
func Default() Config {
	return Config{
		Alphabet: string(features.DNA),
		Noise:    0.01,
	}
}

// Read decodes YAML on top of the defaults.
func Read(r io.Reader) (Config, error) {
	c := Default()
	if err := yaml.NewDecoder(r).Decode(&c); err != nil && err != io.EOF {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// Load reads the configuration file; an empty path yields the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Read(f)
}

// Validate checks the configuration. The test set is needed only
// when requireTest is true.
func (c Config) Validate(requireTest bool) error {
	if c.Estimate == "" {
		return fmt.Errorf("%w: estimate", ErrMissing)
	}
	if c.Train == "" {
		return fmt.Errorf("%w: train", ErrMissing)
	}
	if requireTest && c.Test == "" {
		return fmt.Errorf("%w: test", ErrMissing)
	}
	if features.Alphabet(c.Alphabet).Size() == 0 {
		return fmt.Errorf("%w: alphabet", ErrMissing)
	}
	if !(c.Noise >= 0) {
		return fmt.Errorf("noise must be non-negative, got %v", c.Noise)
	}
	if c.Priors != nil {
		if err := c.Priors.Validate(); err != nil {
			return err
		}
	}
	return nil
}
