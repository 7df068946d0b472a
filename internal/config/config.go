package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/scoped-installer/internal/model"
)

// Default values reproduce the workflow scoped-installer was written for.
const (
	// DefaultRootSuffix is the Environment Root relative to the home directory.
	DefaultRootSuffix = ".local/bin/conda"

	// DefaultEnvName is the conda environment that is activated.
	DefaultEnvName = "bin2dco-3.9"

	// DefaultInstall is the Install Target: installer program, subcommand
	// and package descriptor, word-split with POSIX shell rules.
	DefaultInstall = "pip install ."

	// DefaultShell sources the activation entry point. conda's bin/activate
	// is written for POSIX shells.
	DefaultShell = "/bin/sh"

	// DefaultDockerImage is used by the docker runtime when no image is set.
	// It must provide a POSIX shell and `env -0`, and be ABI-compatible with
	// the binaries in the bind-mounted Environment Root.
	DefaultDockerImage = "debian:bookworm-slim"
)

// FileBaseName is the configuration file name looked up in the project
// directory, without extension.
const FileBaseName = ".scoped-installer"

// searchExtensions lists the extensions tried by Find, in priority order.
var searchExtensions = []string{".yaml", ".yml", ".jsonc", ".json", ".toml"}

// Config holds the fixed values of one scoped install. Struct tags cover
// all three supported file formats.
type Config struct {
	// RootSuffix is joined onto the home directory to form the
	// Environment Root. Must be relative.
	RootSuffix string `json:"rootSuffix" yaml:"rootSuffix" toml:"rootSuffix"`

	// EnvName is the Environment Name passed to the activation entry point.
	EnvName string `json:"envName" yaml:"envName" toml:"envName"`

	// Install is the Install Target command line, e.g. "pip install .".
	Install string `json:"install" yaml:"install" toml:"install"`

	// Shell is the POSIX shell used to source the activation entry point.
	Shell string `json:"shell" yaml:"shell" toml:"shell"`

	// Runtime selects where commands execute: "host" or "docker".
	Runtime model.RuntimeKind `json:"runtime" yaml:"runtime" toml:"runtime"`

	// Docker configures the docker runtime. Ignored for the host runtime.
	Docker DockerConfig `json:"docker" yaml:"docker" toml:"docker"`
}

// DockerConfig configures the one-shot containers used by the docker runtime.
type DockerConfig struct {
	// Image is the container image the commands run in.
	Image string `json:"image" yaml:"image" toml:"image"`

	// Pull pulls Image before creating the first container.
	Pull bool `json:"pull" yaml:"pull" toml:"pull"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		RootSuffix: DefaultRootSuffix,
		EnvName:    DefaultEnvName,
		Install:    DefaultInstall,
		Shell:      DefaultShell,
		Runtime:    model.RuntimeHost,
		Docker: DockerConfig{
			Image: DefaultDockerImage,
		},
	}
}

// Find returns the first configuration file present in dir, trying each
// supported extension in order. The boolean is false when none exists.
func Find(dir string) (string, bool) {
	for _, ext := range searchExtensions {
		candidate := filepath.Join(dir, FileBaseName+ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// Load reads the configuration file at path and decodes it on top of the
// defaults. The returned Config has been validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, model.WrapCLIError(
				model.ExitGeneralError,
				fmt.Sprintf("config file not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := decode(data, filepath.Ext(path), cfg); err != nil {
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to parse config file %s", path),
			err,
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("invalid config file %s", path),
			err,
		)
	}
	return cfg, nil
}

// LoadOrDefault loads the file at explicitPath if given, otherwise the
// first configuration file found in dir, otherwise the defaults. The second
// return value is the path that was loaded ("" for defaults).
func LoadOrDefault(explicitPath, dir string) (*Config, string, error) {
	if explicitPath != "" {
		cfg, err := Load(explicitPath)
		return cfg, explicitPath, err
	}
	if found, ok := Find(dir); ok {
		cfg, err := Load(found)
		return cfg, found, err
	}
	return Default(), "", nil
}

// decode unmarshals data into cfg using the format implied by ext.
func decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".json", ".jsonc":
		// JSONC allows comments and trailing commas; strip them so
		// encoding/json can parse the result.
		return json.Unmarshal(jsonc.ToJSON(data), cfg)
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q (valid: .yaml, .yml, .json, .jsonc, .toml)", ext)
	}
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RootSuffix) == "" {
		return fmt.Errorf("rootSuffix must not be empty")
	}
	if filepath.IsAbs(c.RootSuffix) {
		return fmt.Errorf("rootSuffix %q must be relative to the home directory", c.RootSuffix)
	}
	if err := model.ValidateEnvName(c.EnvName); err != nil {
		return err
	}
	if strings.TrimSpace(c.Install) == "" {
		return fmt.Errorf("install command must not be empty")
	}
	if strings.TrimSpace(c.Shell) == "" {
		return fmt.Errorf("shell must not be empty")
	}
	if !c.Runtime.IsValid() {
		return fmt.Errorf("invalid runtime: %q (valid: host, docker)", c.Runtime)
	}
	if c.Runtime == model.RuntimeDocker && strings.TrimSpace(c.Docker.Image) == "" {
		return fmt.Errorf("docker.image must be set when runtime is docker")
	}
	return nil
}
