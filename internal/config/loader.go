package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"steward/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/steward"
	configFileName = "config.yaml"

	// PasswordEnv supplies ssh.password when the file leaves it empty.
	PasswordEnv = "STEWARD_SSH_PASSWORD"
)

// osUserHomeDir is swapped in tests.
var osUserHomeDir = os.UserHomeDir

func GetDefaultConfigPathOrPanic() string {
	homeDir, err := osUserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from the specified directory.
func LoadConfig(configPath string) (StewardConfig, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return StewardConfig{}, NewConfigurationError(configFilePath, "io", err.Error())
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// io.EOF means an empty file, which is treated like a missing one.
		if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
			return StewardConfig{}, parseError(configFilePath, err)
		}
		logging.Info("Config", "Loaded configuration from %s", configFilePath)
	}

	if config.SSH.Password == "" {
		config.SSH.Password = os.Getenv(PasswordEnv)
	}
	if err := config.resolvePaths(configPath); err != nil {
		return StewardConfig{}, err
	}

	if errs := Validate(config); errs.HasErrors() {
		return StewardConfig{}, FormatValidationError("config", configFilePath, errs)
	}
	if config.SSH.Password == "" && config.SSH.PrivateKeyFile == "" {
		logging.Warn("Config", "Neither ssh.password nor ssh.privateKeyFile is set, remote operations will fail")
	}
	return config, nil
}

// resolvePaths makes local paths absolute. Relative paths are taken
// against the configuration directory and a leading ~/ against the home
// directory. Remote paths are left alone.
func (c *StewardConfig) resolvePaths(base string) error {
	local := []*string{
		&c.Paths.LocalScriptsDir,
		&c.Paths.TemplateDir,
		&c.Paths.StagingDir,
		&c.Paths.ResourcesFile,
		&c.SSH.PrivateKeyFile,
		&c.SSH.KnownHostsFile,
		&c.History.File,
	}
	for _, p := range local {
		resolved, err := resolvePath(base, *p)
		if err != nil {
			return err
		}
		*p = resolved
	}
	return nil
}

func resolvePath(base, p string) (string, error) {
	switch {
	case p == "":
		return "", nil
	case p == "~" || strings.HasPrefix(p, "~/"):
		home, err := osUserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not expand %s: %w", p, err)
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
	case filepath.IsAbs(p):
		return filepath.Clean(p), nil
	default:
		return filepath.Join(base, p), nil
	}
}

func parseError(filePath string, err error) ConfigurationError {
	ce := NewConfigurationError(filePath, "parse", err.Error())
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		ce.Details = strings.Join(typeErr.Errors, "; ")
		ce.Suggestions = []string{"Check the key names against the documented sections", "Check that values have the expected types"}
	}
	return ce
}
