package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/thoreinstein/snapback/internal/backup"
	"github.com/thoreinstein/snapback/internal/errors"
	"github.com/thoreinstein/snapback/internal/mounts"
	"github.com/thoreinstein/snapback/internal/paths"
	"github.com/thoreinstein/snapback/internal/rsync"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SNAPBACK"

// DirEnv overrides the directory searched for config.yaml.
const DirEnv = EnvPrefix + "_CONFIG_DIR"

// Config represents the configuration file.
type Config struct {
	Destination string      `mapstructure:"destination" yaml:"destination" toml:"destination"`
	Excludes    []string    `mapstructure:"excludes" yaml:"excludes" toml:"excludes"`
	Rsync       RsyncConfig `mapstructure:"rsync" yaml:"rsync" toml:"rsync"`
	Probe       ProbeConfig `mapstructure:"probe" yaml:"probe" toml:"probe"`
	File        FileConfig  `mapstructure:"file" yaml:"file" toml:"file"`
}

// RsyncConfig controls how rsync is invoked.
type RsyncConfig struct {
	Binary    string   `mapstructure:"binary" yaml:"binary" toml:"binary"`
	ExtraArgs []string `mapstructure:"extra_args" yaml:"extra_args" toml:"extra_args"`
}

// ProbeConfig controls mount discovery for system backups.
type ProbeConfig struct {
	Backend      string   `mapstructure:"backend" yaml:"backend" toml:"backend"`
	SkipPrefixes []string `mapstructure:"skip_prefixes" yaml:"skip_prefixes" toml:"skip_prefixes"`
}

// FileConfig controls file-mode copies.
type FileConfig struct {
	Suffix string `mapstructure:"suffix" yaml:"suffix" toml:"suffix"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Excludes: []string{},
		Rsync: RsyncConfig{
			Binary:    rsync.DefaultBinary,
			ExtraArgs: []string{},
		},
		Probe: ProbeConfig{
			Backend:      mounts.BackendPartitions,
			SkipPrefixes: append([]string(nil), mounts.DefaultSkipPrefixes...),
		},
		File: FileConfig{
			Suffix: string(backup.SuffixTimestamp),
		},
	}
}

// Dir returns the directory searched for config.yaml.
func Dir() string {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir
	}
	return paths.ConfigDir()
}

// Init resets Viper and registers the search paths, environment binding and
// defaults. Call it once at startup before Load.
func Init() {
	viper.Reset()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Search paths (in order of precedence)
	viper.AddConfigPath(".")
	viper.AddConfigPath(Dir())

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	d := Default()
	viper.SetDefault("destination", d.Destination)
	viper.SetDefault("excludes", d.Excludes)
	viper.SetDefault("rsync.binary", d.Rsync.Binary)
	viper.SetDefault("rsync.extra_args", d.Rsync.ExtraArgs)
	viper.SetDefault("probe.backend", d.Probe.Backend)
	viper.SetDefault("probe.skip_prefixes", d.Probe.SkipPrefixes)
	viper.SetDefault("file.suffix", d.File.Suffix)
}

// Load reads the configuration file, applies environment overrides and
// validates the result. With an empty path the search paths are used and a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && path == "":
			// defaults only
		case os.IsNotExist(err) || errors.As(err, &notFound):
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "config file not found at %s", path)
		default:
			return nil, errors.Wrapf(errors.Mark(err, errors.ErrInvalidConfig), "reading config file")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(errors.Mark(err, errors.ErrInvalidConfig), "unmarshaling config")
	}

	if cfg.Destination != "" {
		expanded, err := paths.ExpandHome(cfg.Destination)
		if err != nil {
			return nil, errors.Wrap(err, "expanding destination")
		}
		cfg.Destination = expanded
	}

	if errs := Validate(&cfg); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "validating config: %s", strings.Join(msgs, "; "))
	}

	return &cfg, nil
}

// FileUsed returns the config file Viper read, or "" when defaults are in use.
func FileUsed() string {
	return viper.ConfigFileUsed()
}
