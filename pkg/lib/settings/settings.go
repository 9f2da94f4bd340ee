// Package settings resolves the wrapper's configuration from three sources,
// in decreasing order of precedence: CLI arguments, environment variables,
// and a configuration file.
package settings

import (
	"errors"
	"fmt"

	"github.com/jpmelos/fdintercept/pkg/lib"
)

// DefaultBufferSize is the per-stream I/O buffer size used when no source
// sets one.
const DefaultBufferSize = 8192

// CLIArgs carries the values parsed from the command line. Pointer fields are
// nil when the corresponding flag was not given, so an explicit flag can be
// told apart from its zero value.
type CLIArgs struct {
	Conf         *string
	StdinLog     *string
	StdoutLog    *string
	StderrLog    *string
	RecreateLogs bool
	BufferSize   *int

	// Target is the command after "--": executable first, then its
	// arguments.
	Target []string
}

// Resolved is the merged configuration consumed by the interception core. An
// empty log path means logging is disabled for that stream.
type Resolved struct {
	StdinLog     string
	StdoutLog    string
	StderrLog    string
	RecreateLogs bool
	BufferSize   int
	Target       lib.Target
}

// Resolve merges CLI arguments, environment variables, and the configuration
// file into a single Resolved configuration.
func Resolve(cli CLIArgs) (*Resolved, error) {
	env, err := readEnvVars()
	if err != nil {
		return nil, fmt.Errorf("reading environment variables: %w", err)
	}

	var confPath string
	if cli.Conf != nil {
		confPath = *cli.Conf
	}
	cfg, err := loadFileConfig(confPath, env.conf)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	// Default log names apply only when no log path is set anywhere. If
	// any one of the three is explicitly configured, the unset streams
	// get no log at all.
	useDefaults := cli.StdinLog == nil && cli.StdoutLog == nil &&
		cli.StderrLog == nil && cfg.StdinLog == nil &&
		cfg.StdoutLog == nil && cfg.StderrLog == nil

	bufferSize := resolveBufferSize(cli.BufferSize, env.bufferSize, cfg.BufferSize)
	if bufferSize <= 0 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", bufferSize)
	}

	target, err := resolveTarget(cli.Target, env.target, cfg.Target)
	if err != nil {
		return nil, err
	}

	return &Resolved{
		StdinLog:     resolveLogPath(cli.StdinLog, cfg.StdinLog, useDefaults, "stdin.log"),
		StdoutLog:    resolveLogPath(cli.StdoutLog, cfg.StdoutLog, useDefaults, "stdout.log"),
		StderrLog:    resolveLogPath(cli.StderrLog, cfg.StderrLog, useDefaults, "stderr.log"),
		RecreateLogs: resolveRecreateLogs(cli.RecreateLogs, env.recreateLogs, cfg.RecreateLogs),
		BufferSize:   bufferSize,
		Target:       target,
	}, nil
}

func resolveLogPath(cliPath, cfgPath *string, useDefaults bool, defaultName string) string {
	switch {
	case cliPath != nil:
		return *cliPath
	case cfgPath != nil:
		return *cfgPath
	case useDefaults:
		return defaultName
	default:
		return ""
	}
}

func resolveRecreateLogs(cliValue bool, envValue, cfgValue *bool) bool {
	if cliValue {
		return true
	}
	if envValue != nil {
		return *envValue
	}
	if cfgValue != nil {
		return *cfgValue
	}
	return false
}

func resolveBufferSize(cliValue, envValue, cfgValue *int) int {
	if cliValue != nil {
		return *cliValue
	}
	if envValue != nil {
		return *envValue
	}
	if cfgValue != nil {
		return *cfgValue
	}
	return DefaultBufferSize
}

func resolveTarget(cliTarget []string, envTarget, cfgTarget *string) (lib.Target, error) {
	target, err := targetFromArgs(cliTarget)
	if err == nil {
		return target, nil
	}
	if !errors.Is(err, errTargetNotDefined) {
		return lib.Target{}, fmt.Errorf("getting target from CLI arguments: %w", err)
	}

	if envTarget != nil {
		target, err := targetFromString(*envTarget)
		if err != nil {
			return lib.Target{}, fmt.Errorf("getting target from FDINTERCEPT_TARGET environment variable: %w", err)
		}
		return target, nil
	}

	if cfgTarget != nil {
		target, err := targetFromString(*cfgTarget)
		if err != nil {
			return lib.Target{}, fmt.Errorf("getting target from configuration file: %w", err)
		}
		return target, nil
	}

	return lib.Target{}, errors.New("target not defined in CLI arguments, FDINTERCEPT_TARGET environment variable, or configuration file")
}
