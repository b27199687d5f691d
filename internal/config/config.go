// Package config loads the compiler settings.
//
// Settings are layered, later layers winning: built-in defaults, the
// aivi.yaml file, AIVI_ environment variables and command-line flags.
package config

import (
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/aivi-lang/aivi/internal/log"
)

const (
	EnvPrefix = "AIVI_"

	DefaultMaxResolutionRounds = 8
	DefaultLogLevel            = "warn"
	DefaultColor               = "auto"
)

// FileNames are the configuration files looked up in the working
// directory when none is given explicitly.
var FileNames = []string{"aivi.yaml", "aivi.yml"}

var colorModes = []string{"auto", "always", "never"}

type Config struct {
	// MaxResolutionRounds bounds the probe/resolve rounds per binding group.
	MaxResolutionRounds int `koanf:"max_resolution_rounds"`
	// Parallelism bounds how many modules of one level are checked at once.
	Parallelism int    `koanf:"parallelism"`
	LogLevel    string `koanf:"log_level"`
	// LogSections enables debug records of the named log sections.
	LogSections []string `koanf:"log_sections"`
	// Color is one of auto, always or never.
	Color string `koanf:"color"`

	// File is the configuration file that was read, if any.
	File string `koanf:"-"`
}

func defaults() map[string]any {
	return map[string]any{
		"max_resolution_rounds": DefaultMaxResolutionRounds,
		"parallelism":           runtime.NumCPU(),
		"log_level":             DefaultLogLevel,
		"log_sections":          []string{},
		"color":                 DefaultColor,
	}
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		MaxResolutionRounds: DefaultMaxResolutionRounds,
		Parallelism:         runtime.NumCPU(),
		LogLevel:            DefaultLogLevel,
		LogSections:         []string{},
		Color:               DefaultColor,
	}
}

// Load reads the configuration. cfgFile names the file to read; when it is
// empty the first of FileNames present in the working directory is used.
// Only flags that were set on the command line override other layers.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "loading defaults")
	}

	cfgFile = findFile(cfgFile)
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", cfgFile)
		}
	}

	// AIVI_MAX_RESOLUTION_ROUNDS -> max_resolution_rounds
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, errors.Wrap(err, "loading environment")
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, errors.Wrap(err, "loading flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	// A comma separated AIVI_LOG_SECTIONS arrives as a single string.
	if len(cfg.LogSections) == 1 && strings.Contains(cfg.LogSections[0], ",") {
		cfg.LogSections = strings.Split(cfg.LogSections[0], ",")
	}
	cfg.File = cfgFile
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range FileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func (c *Config) Validate() error {
	if c.MaxResolutionRounds < 1 {
		return errors.Errorf("max_resolution_rounds must be at least 1, got %d", c.MaxResolutionRounds)
	}
	if c.Parallelism < 1 {
		return errors.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	if !slices.Contains(colorModes, c.Color) {
		return errors.Errorf("color must be one of %s, got %q", strings.Join(colorModes, ", "), c.Color)
	}
	for _, s := range c.LogSections {
		if !log.KnownSection(s) {
			return errors.Errorf("log section must be one of %s, got %q", strings.Join(log.Sections, ", "), s)
		}
	}
	return nil
}
