package intercept

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jpmelos/fdintercept/pkg/lib"
)

func spawnTestChild(t *testing.T, target lib.Target) (*child, *wakePipe) {
	t.Helper()

	wake, err := newWakePipe()
	if err != nil {
		t.Fatalf("creating wake pipe: %v", err)
	}
	t.Cleanup(wake.close)

	c, err := spawnChild(target, wake)
	if err != nil {
		t.Fatalf("spawning child: %v", err)
	}
	t.Cleanup(func() {
		c.signal(syscall.SIGKILL)
		c.awaitExit(5 * time.Second)
		c.closeEndpoints()
	})
	return c, wake
}

// waitForOutput polls the child's stdout until the expected marker shows up.
func waitForOutput(t *testing.T, c *child, marker string) {
	t.Helper()
	var got []byte
	buf := make([]byte, 256)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := unix.Read(c.stdout.fd, buf)
		if n > 0 {
			got = append(got, buf[:n]...)
			if string(got) == marker {
				return
			}
		}
		if err != nil && !isWouldBlock(err) {
			t.Fatalf("reading child stdout: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("child never produced %q, got %q", marker, got)
}

func TestTerminateGracefully(t *testing.T) {
	c, _ := spawnTestChild(t, lib.Target{Executable: "sleep", Args: []string{"30"}})

	if err := c.terminate(unix.SIGTERM, 5*time.Second, 5*time.Second); err != nil {
		t.Fatalf("terminate failed: %v", err)
	}
	if !c.waitDone {
		t.Fatalf("expected wait result to be collected")
	}

	var exitErr *exec.ExitError
	if !errors.As(c.waitErr, &exitErr) {
		t.Fatalf("expected ExitError, got %v", c.waitErr)
	}
	status := exitErr.Sys().(syscall.WaitStatus)
	if !status.Signaled() || status.Signal() != syscall.SIGTERM {
		t.Fatalf("expected death by SIGTERM, got %v", status)
	}
}

func TestTerminateEscalatesToKill(t *testing.T) {
	// The child ignores SIGTERM, so termination must escalate to SIGKILL.
	c, _ := spawnTestChild(t, lib.Target{
		Executable: "sh",
		Args:       []string{"-c", `trap "" TERM; printf ready; sleep 30`},
	})
	waitForOutput(t, c, "ready")

	if err := c.terminate(unix.SIGTERM, 200*time.Millisecond, 10*time.Second); err != nil {
		t.Fatalf("terminate failed: %v", err)
	}

	var exitErr *exec.ExitError
	if !errors.As(c.waitErr, &exitErr) {
		t.Fatalf("expected ExitError, got %v", c.waitErr)
	}
	status := exitErr.Sys().(syscall.WaitStatus)
	if !status.Signaled() || status.Signal() != syscall.SIGKILL {
		t.Fatalf("expected death by SIGKILL, got %v", status)
	}
}

func TestTerminateAlreadyExited(t *testing.T) {
	c, _ := spawnTestChild(t, lib.Target{Executable: "true"})

	if !c.awaitExit(5 * time.Second) {
		t.Fatalf("child did not exit")
	}
	if err := c.terminate(unix.SIGTERM, time.Second, time.Second); err != nil {
		t.Fatalf("terminate after exit failed: %v", err)
	}
}

func TestSignalReachesProcessGroup(t *testing.T) {
	// The shell spawns a grandchild; signaling the group must take down
	// both, so the stdout pipe reaches EOF instead of staying open.
	c, _ := spawnTestChild(t, lib.Target{
		Executable: "sh",
		Args:       []string{"-c", "sleep 30 & printf ready; wait"},
	})
	waitForOutput(t, c, "ready")

	c.signal(syscall.SIGKILL)
	if !c.awaitExit(5 * time.Second) {
		t.Fatalf("child did not exit after SIGKILL")
	}

	buf := make([]byte, 1)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := unix.Read(c.stdout.fd, buf)
		if n == 0 && err == nil {
			return // EOF, every writer of the pipe is gone
		}
		if err != nil && !isWouldBlock(err) {
			t.Fatalf("reading child stdout: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("child stdout never reached EOF; a group member survived")
}

func TestWaiterFinishesWithWakePipeOpen(t *testing.T) {
	wake, err := newWakePipe()
	if err != nil {
		t.Fatalf("creating wake pipe: %v", err)
	}

	c, err := spawnChild(lib.Target{Executable: "true"}, wake)
	if err != nil {
		wake.close()
		t.Fatalf("spawning child: %v", err)
	}
	defer c.closeEndpoints()

	if !c.awaitExit(5 * time.Second) {
		t.Fatalf("child did not exit")
	}
	// The exit result can be consumed before the waiter's wake-pipe poke
	// has landed. The pipe must stay open until that poke is done.
	if !c.awaitWakePoke(5 * time.Second) {
		t.Fatalf("waiter never finished poking the wake pipe")
	}
	wake.close()
}

func TestPollExitLatches(t *testing.T) {
	c, wake := spawnTestChild(t, lib.Target{Executable: "true"})

	deadline := time.Now().Add(5 * time.Second)
	for !c.pollExit() {
		if time.Now().After(deadline) {
			t.Fatalf("pollExit never observed the exit")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !c.pollExit() {
		t.Fatalf("pollExit must stay true once the exit is observed")
	}
	wake.drain()
}
