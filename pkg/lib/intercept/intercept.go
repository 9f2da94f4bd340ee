// Package intercept spawns the target command and pumps bytes between the
// parent's stdio, the child's stdio pipes, and the per-stream log files. All
// steady-state I/O is non-blocking and driven by a single event loop.
package intercept

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jpmelos/fdintercept/pkg/lib"
	"github.com/jpmelos/fdintercept/pkg/lib/settings"
)

var logger = log.New(io.Discard, "intercept: ", log.LstdFlags)

const (
	// wrapperErrorCode is the exit code for failures of the wrapper
	// itself, as opposed to the child's own exit code.
	wrapperErrorCode = 1
	// signalExitBase follows the shell convention of 128 plus the signal
	// number for signal-terminated processes.
	signalExitBase = 128
)

// Kind classifies fatal wrapper failures for the caller.
type Kind int

const (
	// KindConfig covers invalid resolved configuration and log file setup
	// failures. No child is ever spawned.
	KindConfig Kind = iota
	// KindSpawn covers failures to start the target.
	KindSpawn
	// KindWait covers failures to collect the child's exit status.
	KindWait
)

// Error is a classified fatal failure of a run.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Supervisor owns one interception run: it spawns the child, drives the
// event loop until every stream is drained and the child has exited, and
// maps the child's termination status to an exit code.
type Supervisor struct {
	stdin  int
	stdout int
	stderr int

	gracePeriod  time.Duration
	killDeadline time.Duration

	newRelay func(*wakePipe) *signalRelay
}

// NewSupervisor creates a supervisor bound to the process's own standard
// streams.
func NewSupervisor() *Supervisor {
	return newSupervisorWithStdio(0, 1, 2)
}

func newSupervisorWithStdio(stdin, stdout, stderr int) *Supervisor {
	return &Supervisor{
		stdin:        stdin,
		stdout:       stdout,
		stderr:       stderr,
		gracePeriod:  15 * time.Second,
		killDeadline: 5 * time.Second,
		newRelay:     newSignalRelay,
	}
}

// Run executes the target under interception and returns the process exit
// code to propagate. The error, when non-nil, describes a wrapper failure;
// a non-zero exit code from the child is not an error.
func (s *Supervisor) Run(cfg *settings.Resolved) (int, error) {
	if cfg.Target.Executable == "" {
		return wrapperErrorCode, &Error{Kind: KindConfig, Err: errors.New("target executable is empty")}
	}
	if cfg.BufferSize <= 0 {
		return wrapperErrorCode, &Error{Kind: KindConfig, Err: fmt.Errorf("buffer size must be positive, got %d", cfg.BufferSize)}
	}

	runID := lib.NewID()
	logger.Printf("run %s: target %s", runID, cfg.Target.Executable)

	sinks, err := openSinks(cfg)
	if err != nil {
		return wrapperErrorCode, &Error{Kind: KindConfig, Err: err}
	}
	defer func() {
		for _, sink := range sinks {
			sink.close()
		}
	}()

	wake, err := newWakePipe()
	if err != nil {
		return wrapperErrorCode, &Error{Kind: KindConfig, Err: fmt.Errorf("creating wake pipe: %w", err)}
	}
	defer wake.close()

	relay := s.newRelay(wake)
	defer relay.stop()

	// A signal that arrived before the child exists is acted on as if the
	// run had already been terminated: don't spawn at all.
	if sig, ok := relay.next(); ok {
		logger.Printf("run %s: signal %d pending before spawn", runID, sig)
		return signalExitBase + int(sig), nil
	}

	child, err := spawnChild(cfg.Target, wake)
	if err != nil {
		return wrapperErrorCode, &Error{Kind: KindSpawn, Err: fmt.Errorf("starting child process: %w", err)}
	}
	logger.Printf("run %s: child pid %d", runID, child.pid)
	// The waiter goroutine pokes the wake pipe after reaping the child.
	// Hold the pipe open until that poke has happened, so it cannot hit a
	// closed or reused descriptor.
	defer child.awaitWakePoke(s.killDeadline)

	restoreStdio := s.setStdioNonblocking()
	defer restoreStdio()

	pumps := []*pump{
		{
			stream:           lib.StreamStdin,
			src:              stdioEndpoint(s.stdin),
			dst:              child.stdin,
			sink:             sinks[lib.StreamStdin],
			ownsDst:          true,
			closeOnChildExit: true,
			buf:              make([]byte, cfg.BufferSize),
		},
		{
			stream:  lib.StreamStdout,
			src:     child.stdout,
			dst:     stdioEndpoint(s.stdout),
			sink:    sinks[lib.StreamStdout],
			ownsSrc: true,
			buf:     make([]byte, cfg.BufferSize),
		},
		{
			stream:  lib.StreamStderr,
			src:     child.stderr,
			dst:     stdioEndpoint(s.stderr),
			sink:    sinks[lib.StreamStderr],
			ownsSrc: true,
			buf:     make([]byte, cfg.BufferSize),
		},
	}

	loop := &eventLoop{pumps: pumps, child: child, wake: wake, relay: relay}
	loopErr := loop.run()
	child.closeEndpoints()

	if loopErr != nil {
		logger.Printf("run %s: event loop failed: %v", runID, loopErr)
		if err := child.terminate(unix.SIGTERM, s.gracePeriod, s.killDeadline); err != nil {
			return wrapperErrorCode, &Error{Kind: KindWait, Err: err}
		}
		return wrapperErrorCode, loopErr
	}

	return s.reap(runID, child)
}

// reap consumes the already-collected wait result and maps it to the
// wrapper's exit code.
func (s *Supervisor) reap(runID string, c *child) (int, error) {
	if !c.awaitExit(s.gracePeriod) {
		// The loop only ends after the child exits, so the wait result
		// should be immediate. If it isn't, make sure the child is not
		// left behind.
		c.signal(unix.SIGKILL)
		if !c.awaitExit(s.killDeadline) {
			return wrapperErrorCode, &Error{Kind: KindWait, Err: errors.New("timed out waiting for child process")}
		}
	}

	if c.waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(c.waitErr, &exitErr) {
			code := exitCodeFromStatus(exitErr.ProcessState)
			logger.Printf("run %s: child exited with code %d", runID, code)
			return code, nil
		}
		c.signal(unix.SIGKILL)
		return wrapperErrorCode, &Error{Kind: KindWait, Err: fmt.Errorf("waiting for child process: %w", c.waitErr)}
	}

	code := exitCodeFromStatus(c.cmd.ProcessState)
	logger.Printf("run %s: child exited with code %d", runID, code)
	return code, nil
}

func openSinks(cfg *settings.Resolved) (map[lib.Stream]*logSink, error) {
	paths := map[lib.Stream]string{
		lib.StreamStdin:  cfg.StdinLog,
		lib.StreamStdout: cfg.StdoutLog,
		lib.StreamStderr: cfg.StderrLog,
	}
	sinks := make(map[lib.Stream]*logSink, len(paths))
	for stream, path := range paths {
		sink, err := newLogSink(stream, path, cfg.RecreateLogs)
		if err != nil {
			for _, opened := range sinks {
				opened.close()
			}
			return nil, err
		}
		sinks[stream] = sink
	}
	return sinks, nil
}

// setStdioNonblocking switches the supervisor's stdio descriptors to
// non-blocking mode for the duration of the run. The returned function
// restores blocking mode, which is what shells and most programs sharing the
// terminal expect.
func (s *Supervisor) setStdioNonblocking() func() {
	fds := []int{s.stdin, s.stdout, s.stderr}
	for _, fd := range fds {
		_ = unix.SetNonblock(fd, true)
	}
	return func() {
		for _, fd := range fds {
			_ = unix.SetNonblock(fd, false)
		}
	}
}
