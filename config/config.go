// Package config loads the settings of the fatimg command-line tool from a YAML
// file. Command-line flags override anything set here.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/fatimg/fatimg"
	"github.com/fatimg/fatimg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the tool looks for its configuration if no path is
// given. It's relative to the working directory.
const DefaultPath = ".fatimg.yaml"

type LogConfig struct {
	// Level is one of the zap level names: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format"`
}

type OutputConfig struct {
	// Format controls how listings are printed: text, csv or yaml.
	Format     string `yaml:"format"`
	DateLayout string `yaml:"date_layout"`
	TimeLayout string `yaml:"time_layout"`
}

type ShellConfig struct {
	Prompt        string `yaml:"prompt"`
	ConfirmDelete bool   `yaml:"confirm_delete"`
}

type Config struct {
	// Image is the disk image opened when a command isn't given one.
	Image  string       `yaml:"image"`
	Log    LogConfig    `yaml:"log"`
	Output OutputConfig `yaml:"output"`
	Shell  ShellConfig  `yaml:"shell"`
}

// Default returns the configuration used when there's no file.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		Output: OutputConfig{
			Format:     "text",
			DateLayout: fatimg.DateLayout,
			TimeLayout: fatimg.TimeLayout,
		},
		Shell: ShellConfig{
			Prompt:        "fat16> ",
			ConfirmDelete: true,
		},
	}
}

// Load reads the configuration at `path` in `fs`. Settings missing from the
// file keep their defaults. A missing file isn't an error unless `required` is
// set; unknown keys always are.
func Load(fs afero.Fs, path string, required bool) (Config, error) {
	cfg := Default()

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, nil
		}
		if os.IsNotExist(err) {
			return cfg, errors.ErrFileNotFound.WithMessage(path).Wrap(err)
		}
		return cfg, errors.ErrIOFailed.Wrap(err)
	}

	cfg, err = Parse(raw)
	if err != nil {
		return cfg, errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("bad configuration in %s", path)).Wrap(err)
	}
	return cfg, nil
}

// Parse decodes a YAML document on top of the defaults and validates it.
func Parse(raw []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return Default(), err
	}
	return cfg, cfg.Validate()
}

// Validate checks that every enumerated setting has a known value.
func (cfg *Config) Validate() error {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("log.level must be debug, info, warn or error, not %q", cfg.Log.Level))
	}

	switch cfg.Log.Format {
	case "console", "json":
	default:
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("log.format must be console or json, not %q", cfg.Log.Format))
	}

	switch cfg.Output.Format {
	case "text", "csv", "yaml":
	default:
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("output.format must be text, csv or yaml, not %q", cfg.Output.Format))
	}

	if cfg.Output.DateLayout == "" || cfg.Output.TimeLayout == "" {
		return errors.ErrInvalidArgument.WithMessage("output date and time layouts can't be empty")
	}
	return nil
}

// Marshal renders the configuration as YAML, e.g. for writing a starter file.
func (cfg *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(cfg)
}
