package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpmelos/fdintercept/pkg/lib/intercept"
	"github.com/jpmelos/fdintercept/pkg/lib/settings"
)

// NewRootCmd builds the CLI. The resolved exit code is written through
// exitCode so main can propagate the child's status after Execute returns.
func NewRootCmd(exitCode *int) *cobra.Command {
	var (
		conf       string
		stdinLog   string
		stdoutLog  string
		stderrLog  string
		recreate   bool
		bufferSize int
	)

	root := &cobra.Command{
		Use:           "fdintercept [flags] -- <command> [args...]",
		Short:         "Intercept and log stdin, stdout, and stderr of a target command",
		Long: "fdintercept wraps a target command, passing all three standard streams\n" +
			"through unmodified while duplicating every byte into per-stream log\n" +
			"files. The child's exit code is preserved.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			*exitCode = 1

			var target []string
			switch at := cmd.ArgsLenAtDash(); {
			case at >= 0:
				if at > 0 {
					return fmt.Errorf("unexpected argument before --: %q", args[0])
				}
				target = args
			case len(args) > 0:
				return errors.New("use -- to separate CLI flags from the target command")
			}

			cli := settings.CLIArgs{
				RecreateLogs: recreate,
				Target:       target,
			}
			flags := cmd.Flags()
			if flags.Changed("conf") {
				cli.Conf = &conf
			}
			if flags.Changed("stdin-log") {
				cli.StdinLog = &stdinLog
			}
			if flags.Changed("stdout-log") {
				cli.StdoutLog = &stdoutLog
			}
			if flags.Changed("stderr-log") {
				cli.StderrLog = &stderrLog
			}
			if flags.Changed("buffer-size") {
				cli.BufferSize = &bufferSize
			}

			resolved, err := settings.Resolve(cli)
			if err != nil {
				return err
			}

			code, err := intercept.NewSupervisor().Run(resolved)
			*exitCode = code
			return err
		},
	}

	flags := root.Flags()
	flags.StringVar(&conf, "conf", "", "Path to a configuration file")
	flags.StringVar(&stdinLog, "stdin-log", "", "Log file that will record stdin traffic (default stdin.log)")
	flags.StringVar(&stdoutLog, "stdout-log", "", "Log file that will record stdout traffic (default stdout.log)")
	flags.StringVar(&stderrLog, "stderr-log", "", "Log file that will record stderr traffic (default stderr.log)")
	flags.BoolVar(&recreate, "recreate-logs", false, "Re-create log files instead of appending to them")
	flags.IntVar(&bufferSize, "buffer-size", settings.DefaultBufferSize, "Size in bytes of the buffer used for I/O operations")

	return root
}
