package settings

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// envVars holds the values read from the process environment. Pointer fields
// are nil when the variable is not set.
type envVars struct {
	conf         string
	recreateLogs *bool
	bufferSize   *int
	target       *string
}

func readEnvVars() (*envVars, error) {
	env := &envVars{}

	if value, ok := os.LookupEnv("FDINTERCEPTRC"); ok {
		if value == "" {
			return nil, errors.New("FDINTERCEPTRC is empty")
		}
		env.conf = value
	}

	if value, ok := os.LookupEnv("FDINTERCEPT_RECREATE_LOGS"); ok {
		recreateLogs, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("parsing FDINTERCEPT_RECREATE_LOGS environment variable: %w", err)
		}
		env.recreateLogs = &recreateLogs
	}

	if value, ok := os.LookupEnv("FDINTERCEPT_BUFFER_SIZE"); ok {
		bufferSize, err := strconv.Atoi(value)
		if err != nil || bufferSize <= 0 {
			return nil, fmt.Errorf("parsing FDINTERCEPT_BUFFER_SIZE environment variable: %q is not a positive integer", value)
		}
		env.bufferSize = &bufferSize
	}

	if value, ok := os.LookupEnv("FDINTERCEPT_TARGET"); ok {
		env.target = &value
	}

	return env, nil
}
