package intercept

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/jpmelos/fdintercept/pkg/lib"
)

// child owns the spawned target process: its pid, the parent-side ends of
// its three stdio pipes, and the result of waiting for it. The wait happens
// on a dedicated goroutine that pokes the wake pipe when the child exits, so
// the event loop notices through its normal poll.
type child struct {
	cmd *exec.Cmd
	pid int

	stdin  *endpoint // write end of the child's stdin pipe
	stdout *endpoint // read end of the child's stdout pipe
	stderr *endpoint // read end of the child's stderr pipe

	done     chan error
	wakeDone chan struct{}
	waitDone bool
	waitErr  error
}

// spawnChild starts the target with the environment inherited and all three
// standard streams redirected to pipes.
func spawnChild(target lib.Target, wake *wakePipe) (*child, error) {
	stdinRead, stdinWrite, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	stdoutRead, stdoutWrite, err := os.Pipe()
	if err != nil {
		stdinRead.Close()
		stdinWrite.Close()
		return nil, err
	}
	stderrRead, stderrWrite, err := os.Pipe()
	if err != nil {
		stdinRead.Close()
		stdinWrite.Close()
		stdoutRead.Close()
		stdoutWrite.Close()
		return nil, err
	}

	cmd := exec.Command(target.Executable, target.Args...)
	cmd.Stdin = stdinRead
	cmd.Stdout = stdoutWrite
	cmd.Stderr = stderrWrite
	// New process group so signals reach the child's own children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		stdinRead.Close()
		stdinWrite.Close()
		stdoutRead.Close()
		stdoutWrite.Close()
		stderrRead.Close()
		stderrWrite.Close()
		return nil, err
	}

	// The child holds its own copies of these ends now.
	stdinRead.Close()
	stdoutWrite.Close()
	stderrWrite.Close()

	c := &child{
		cmd:      cmd,
		pid:      cmd.Process.Pid,
		stdin:    pipeEndpoint(stdinWrite),
		stdout:   pipeEndpoint(stdoutRead),
		stderr:   pipeEndpoint(stderrRead),
		done:     make(chan error, 1),
		wakeDone: make(chan struct{}),
	}

	go func() {
		c.done <- cmd.Wait()
		wake.poke()
		close(c.wakeDone)
	}()

	return c, nil
}

// awaitWakePoke blocks until the waiter goroutine is done touching the wake
// pipe. The pipe must not be closed before this returns true, or the final
// poke could land on a reused descriptor.
func (c *child) awaitWakePoke(timeout time.Duration) bool {
	select {
	case <-c.wakeDone:
		return true
	case <-time.After(timeout):
		return false
	}
}

// signal forwards a signal to the child's process group. The negative pid
// targets the whole group. Failures are ignored: the child may already be
// gone.
func (c *child) signal(sig syscall.Signal) {
	_ = syscall.Kill(-c.pid, sig)
}

// pollExit does a non-blocking check for child termination, latching the wait
// result on first observation.
func (c *child) pollExit() bool {
	if c.waitDone {
		return true
	}
	select {
	case err := <-c.done:
		c.waitErr = err
		c.waitDone = true
		return true
	default:
		return false
	}
}

// awaitExit blocks until the child has been reaped or the timeout elapses.
func (c *child) awaitExit(timeout time.Duration) bool {
	if c.waitDone {
		return true
	}
	select {
	case err := <-c.done:
		c.waitErr = err
		c.waitDone = true
		return true
	case <-time.After(timeout):
		return false
	}
}

// terminate sends sig to the child's process group and waits for it to die,
// escalating to SIGKILL after the grace period.
func (c *child) terminate(sig syscall.Signal, gracePeriod, killDeadline time.Duration) error {
	if c.pollExit() {
		return nil
	}
	c.signal(sig)
	if c.awaitExit(gracePeriod) {
		return nil
	}
	c.signal(syscall.SIGKILL)
	if c.awaitExit(killDeadline) {
		return nil
	}
	return errors.New("sent SIGKILL, child is still alive")
}

func (c *child) closeEndpoints() {
	c.stdin.close()
	c.stdout.close()
	c.stderr.close()
}

// exitCodeFromStatus maps a reaped child's status to the wrapper's own exit
// code: the child's code on a normal exit, or 128 plus the signal number when
// the child was signal-terminated.
func exitCodeFromStatus(state *os.ProcessState) int {
	if waitStatus, ok := state.Sys().(syscall.WaitStatus); ok && waitStatus.Signaled() {
		return signalExitBase + int(waitStatus.Signal())
	}
	return state.ExitCode()
}
