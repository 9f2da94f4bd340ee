package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the configuration file schema. All fields are optional.
type fileConfig struct {
	StdinLog     *string `yaml:"stdin_log"`
	StdoutLog    *string `yaml:"stdout_log"`
	StderrLog    *string `yaml:"stderr_log"`
	RecreateLogs *bool   `yaml:"recreate_logs"`
	BufferSize   *int    `yaml:"buffer_size"`
	Target       *string `yaml:"target"`
}

// loadFileConfig finds and parses the configuration file. Candidates, in
// order: the --conf path, $FDINTERCEPTRC, ~/.fdinterceptrc.yaml, and
// $XDG_CONFIG_HOME/fdintercept/rc.yaml. The first one found wins. A path
// given explicitly via flag or environment variable must exist; the home and
// XDG candidates are skipped when missing.
func loadFileConfig(cliConf, envConf string) (*fileConfig, error) {
	if cliConf != "" {
		return readConfigFile(cliConf)
	}
	if envConf != "" {
		return readConfigFile(envConf)
	}

	if home := os.Getenv("HOME"); home != "" {
		cfg, err := readOptionalConfigFile(filepath.Join(home, ".fdinterceptrc.yaml"))
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return cfg, nil
		}
	}

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		cfg, err := readOptionalConfigFile(filepath.Join(xdgConfigHome, "fdintercept", "rc.yaml"))
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return cfg, nil
		}
	}

	return &fileConfig{}, nil
}

func readConfigFile(path string) (*fileConfig, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file %s: %w", path, err)
	}
	return parseConfigContents(path, contents)
}

func readOptionalConfigFile(path string) (*fileConfig, error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading configuration file %s: %w", path, err)
	}
	return parseConfigContents(path, contents)
}

func parseConfigContents(path string, contents []byte) (*fileConfig, error) {
	cfg := &fileConfig{}
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration file %s: %w", path, err)
	}
	return cfg, nil
}
