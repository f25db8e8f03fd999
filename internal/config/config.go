// Package config loads settings from defaults, an optional YAML file,
// LEITNER_ environment variables and command line flags, in that order.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/conorfennell/leitner/internal/domain"
	"github.com/conorfennell/leitner/internal/validator"
)

const EnvPrefix = "LEITNER_"

type Config struct {
	DB       string              `koanf:"db" validate:"required"`
	Env      string              `koanf:"env" validate:"oneof=development production"`
	LogLevel string              `koanf:"log_level" validate:"oneof=debug info warn error"`
	Addr     string              `koanf:"addr" validate:"required"`
	Source   domain.SourceConfig `koanf:"source"`
}

var defaults = map[string]interface{}{
	"db":            "leitner.db",
	"env":           "production",
	"log_level":     "info",
	"addr":          ":8080",
	"source.owner":  "",
	"source.repo":   "",
	"source.branch": "main",
	"source.path":   "",
}

// Load builds the configuration. path may be empty to skip the file layer;
// flags may be nil. Flags named with dashes map to underscored keys and only
// flags the user actually set override earlier layers.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, errors.Wrapf(err, "failed to set default %s", key)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment")
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key := flagKey(f.Name)
			if !k.Exists(key) {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, errors.Wrap(err, "failed to load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := validator.ValidateStruct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

// envKey maps LEITNER_SOURCE__OWNER to source.owner.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// flagKey maps --log-level to log_level and --source-owner to source.owner.
func flagKey(name string) string {
	if rest, ok := strings.CutPrefix(name, "source-"); ok {
		return "source." + strings.ReplaceAll(rest, "-", "_")
	}
	return strings.ReplaceAll(name, "-", "_")
}
