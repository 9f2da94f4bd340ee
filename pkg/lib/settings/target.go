package settings

import (
	"errors"
	"fmt"

	"github.com/google/shlex"

	"github.com/jpmelos/fdintercept/pkg/lib"
)

var errTargetNotDefined = errors.New("target is not defined")

// targetFromArgs builds a target from already-split CLI arguments. The first
// element is the executable.
func targetFromArgs(args []string) (lib.Target, error) {
	if len(args) == 0 {
		return lib.Target{}, errTargetNotDefined
	}
	if args[0] == "" {
		return lib.Target{}, errors.New("target executable cannot be empty")
	}
	return lib.Target{
		Executable: args[0],
		Args:       append([]string(nil), args[1:]...),
	}, nil
}

// targetFromString tokenizes a shell-style command string into a target.
func targetFromString(target string) (lib.Target, error) {
	if target == "" {
		return lib.Target{}, errors.New("target cannot be empty")
	}
	tokens, err := shlex.Split(target)
	if err != nil {
		return lib.Target{}, fmt.Errorf("tokenizing target: %w", err)
	}
	if len(tokens) == 0 || tokens[0] == "" {
		return lib.Target{}, errors.New("target executable cannot be empty")
	}
	return lib.Target{Executable: tokens[0], Args: tokens[1:]}, nil
}
