// Package config loads the replication run configuration: the two store
// endpoints, the staging area and the declarative table list.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"path/filepath"
	"strings"

	cenv "github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	kenv "github.com/knadh/koanf/providers/env"
	kfile "github.com/knadh/koanf/providers/file"
	kraw "github.com/knadh/koanf/providers/rawbytes"
	kfn "github.com/knadh/koanf/v2"
	"github.com/sandrolain/replica-bridge/src/common/pgident"
)

// LoadConfig resolves the environment bootstrap and loads the configuration
// from content or file. Any failure here is fatal for the whole run and
// happens before any store access; it surfaces as a ConfigError wrapping the
// cause.
func LoadConfig() (*Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return cfg, nil
}

func loadConfig() (cfg *Config, err error) {
	envCfg := EnvConfig{}
	if err = defaults.Set(&envCfg); err != nil {
		return
	}
	err = cenv.Parse(&envCfg)
	if err != nil {
		return
	}
	validate := validator.New()
	err = validate.Struct(&envCfg)

	if err != nil {
		return nil, fmt.Errorf("failed to load environment configuration: %w", err)
	}

	if envCfg.ConfigContent != "" {
		slog.Info("loading configuration from content", "format", envCfg.ConfigFormat)
		return loadConfigContent(envCfg.ConfigContent, envCfg.ConfigFormat)
	}

	slog.Info("loading configuration file", "path", envCfg.ConfigFilePath)
	return loadConfigFile(envCfg.ConfigFilePath)
}

// loadConfigFile loads configuration from a file (YAML or JSON) and merges
// environment overrides. Environment variables use the prefix "RB_" and map
// to keys by trimming the prefix, lowercasing, and replacing "__" with "."
// (double underscore denotes nesting; array segments like "__0" index lists).
func loadConfigFile(path string) (cfg *Config, err error) {
	absPath, e := filepath.Abs(path)
	if e != nil {
		return nil, e
	}

	if _, e = os.Stat(absPath); e != nil {
		return nil, fmt.Errorf("error opening config file: %w", e)
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	var parser kfn.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = kyaml.Parser()
	case ".json":
		parser = kjson.Parser()
	default:
		return nil, &UnsupportedExtensionError{Extension: ext}
	}

	k := kfn.New(".")
	if e = k.Load(kfile.Provider(absPath), parser); e != nil {
		return nil, fmt.Errorf("error loading config file: %w", e)
	}

	return finishLoad(k)
}

// loadConfigContent loads configuration from raw YAML/JSON content. If format
// is empty, attempts to auto-detect (JSON if trimmed content starts with '{').
func loadConfigContent(content string, format string) (cfg *Config, err error) {
	trimmed := strings.TrimSpace(content)
	f := strings.ToLower(strings.TrimSpace(format))
	var parser kfn.Parser
	switch f {
	case "yaml", "yml":
		parser = kyaml.Parser()
	case "json":
		parser = kjson.Parser()
	case "":
		if strings.HasPrefix(trimmed, "{") {
			parser = kjson.Parser()
		} else {
			parser = kyaml.Parser()
		}
	default:
		return nil, &UnsupportedExtensionError{Extension: f}
	}

	k := kfn.New(".")
	if err = k.Load(kraw.Provider([]byte(content)), parser); err != nil {
		return nil, fmt.Errorf("error loading config content: %w", err)
	}

	return finishLoad(k)
}

// finishLoad applies env overrides, unmarshals, fills defaults and validates.
func finishLoad(k *kfn.Koanf) (*Config, error) {
	loadEnv(k)

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, kfn.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("error applying config defaults: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, err
	}

	if err := validateIdentifiers(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateIdentifiers rejects any schema, table or column name that could
// not be safely quoted into SQL text. A malformed entry aborts configuration
// loading, not individual table processing.
func validateIdentifiers(cfg *Config) error {
	if err := pgident.ValidateAll(cfg.Staging.Schema, cfg.Staging.MetadataTable); err != nil {
		return fmt.Errorf("invalid staging configuration: %w", err)
	}
	for i, t := range cfg.Tables {
		if err := t.Descriptor().Validate(); err != nil {
			return fmt.Errorf("invalid table entry %d: %w", i, err)
		}
	}
	return nil
}

func loadEnv(k *kfn.Koanf) {
	// Allow overriding config via environment variables with prefix RB_.
	// Example: RB_TARGET__CONN_STRING=postgres://...
	// Array example: RB_TABLES__0__SCHEMA=sales
	const prefix = "RB_"
	_ = k.Load(kenv.Provider(prefix, ".", func(s string) string {
		// Transform: RB_FOO__BAR__BAZ -> foo.bar.baz
		noPrefix := strings.TrimPrefix(s, prefix)
		noPrefix = strings.ToLower(noPrefix)
		// Double underscore becomes dot for nesting
		noPrefix = strings.ReplaceAll(noPrefix, "__", ".")
		return noPrefix
	}), nil)
}

type UnsupportedExtensionError struct {
	Extension string
}

func (e *UnsupportedExtensionError) Error() string {
	return "unsupported config file extension: " + e.Extension
}

// ConfigError wraps any failure during configuration loading or validation.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }
