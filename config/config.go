// Package config loads presence.yml (or presence.yaml / presence.toml) and
// turns it into the effect policy, channel and daemon settings.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/presence/errors"
	"github.com/grovetools/presence/pkg/paths"
)

// ConfigEnv names a config file to use instead of searching.
const ConfigEnv = "PRESENCE_CONFIG"

// ConfigNames are the file names searched for, in order.
var ConfigNames = []string{"presence.yml", "presence.yaml", "presence.toml"}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads and parses a configuration file, merges any override file next
// to it, applies defaults and validates the result. Variables in ${VAR} form
// are expanded from the environment, then from a .env file in the same
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	env := loadDotEnv(filepath.Dir(path))
	raw, err := parseRaw(data, formatOf(path), env)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config file").
			WithDetail("path", path)
	}

	for _, overridePath := range overrideFiles(path) {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			continue
		}
		override, err := parseRaw(data, formatOf(overridePath), env)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse override file").
				WithDetail("path", overridePath)
		}
		raw = mergeMaps(raw, override)
	}

	return decode(raw)
}

// LoadFromBytes parses YAML configuration from a byte array.
func LoadFromBytes(data []byte) (*Config, error) {
	raw, err := parseRaw(data, "yaml", nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
	}
	return decode(raw)
}

// LoadDefault finds and loads the configuration. It returns the defaults and
// an empty path when no file exists.
func LoadDefault() (*Config, string, error) {
	return Resolve("")
}

// Resolve loads the file at path, or searches for one when path is empty.
func Resolve(path string) (*Config, string, error) {
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		found, err := FindConfigFile(cwd)
		if err != nil {
			return Default(), "", nil
		}
		path = found
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// FindConfigFile looks for a config file in startDir, then in the presence
// config directory.
func FindConfigFile(startDir string) (string, error) {
	for _, dir := range []string{startDir, paths.ConfigDir()} {
		for _, name := range ConfigNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}
	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// decode turns the merged raw document into a validated Config.
func decode(raw map[string]interface{}) (*Config, error) {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to normalize configuration")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}
	cfg.SetDefaults()

	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if err := validator.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigValidation, "schema validation failed")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseRaw expands variables and parses YAML or TOML into a generic map.
func parseRaw(data []byte, format string, env map[string]string) (map[string]interface{}, error) {
	expanded := expandEnvVars(string(data), env)

	raw := make(map[string]interface{})
	var err error
	if format == "toml" {
		err = toml.Unmarshal([]byte(expanded), &raw)
	} else {
		err = yaml.Unmarshal([]byte(expanded), &raw)
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

// overrideFiles lists the local override files for a config file.
func overrideFiles(path string) []string {
	dir := filepath.Dir(path)
	return []string{
		filepath.Join(dir, "presence.override.yml"),
		filepath.Join(dir, "presence.override.yaml"),
		filepath.Join(dir, "presence.override.toml"),
	}
}

// loadDotEnv reads dir/.env. A missing or unreadable file yields nil.
func loadDotEnv(dir string) map[string]string {
	env, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil {
		return nil
	}
	return env
}

// expandEnvVars replaces ${VAR} and ${VAR:-default}. The process environment
// wins over env.
func expandEnvVars(content string, env map[string]string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		if value := env[varName]; value != "" {
			return value
		}
		return defaultValue
	})
}
