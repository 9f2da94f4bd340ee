package intercept

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// pollTimeoutMs is negative so poll blocks until an endpoint is ready. The
// wake pipe is always in the poll set and is poked on both signal arrival and
// child exit, so an idle loop never needs to tick on its own.
const pollTimeoutMs = -1

// eventLoop multiplexes all live endpoints on a single goroutine: the read
// sides that still produce data, the write sides that currently hold buffered
// bytes, and the always-registered wake pipe. Each ready endpoint gets one
// pump step per iteration, which keeps the streams fair to each other.
type eventLoop struct {
	pumps []*pump
	child *child
	wake  *wakePipe
	relay *signalRelay

	childExited bool
}

// pollTarget maps one poll entry back to the pump step it drives.
type pollTarget struct {
	pump  *pump
	write bool
}

func (l *eventLoop) run() error {
	for {
		l.checkChildExit()
		if l.finished() {
			return nil
		}

		fds, targets := l.pollSet()
		n, err := unix.Poll(fds, pollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("polling for stream readiness: %w", err)
		}

		if n > 0 {
			for i := range fds {
				if fds[i].Revents == 0 {
					continue
				}
				target := targets[i]
				if target.pump == nil {
					l.wake.drain()
					continue
				}
				// POLLHUP and POLLERR are serviced through the
				// same step; the read or write surfaces the
				// condition.
				if target.write {
					target.pump.writeStep()
				} else {
					target.pump.readStep()
				}
			}
		}

		l.forwardSignals()
	}
}

func (l *eventLoop) pollSet() ([]unix.PollFd, []pollTarget) {
	fds := make([]unix.PollFd, 0, 1+2*len(l.pumps))
	targets := make([]pollTarget, 0, cap(fds))

	fds = append(fds, unix.PollFd{Fd: int32(l.wake.readEnd.fd), Events: unix.POLLIN})
	targets = append(targets, pollTarget{})

	for _, p := range l.pumps {
		if p.wantsRead() {
			fds = append(fds, unix.PollFd{Fd: int32(p.src.fd), Events: unix.POLLIN})
			targets = append(targets, pollTarget{pump: p})
		}
		if p.wantsWrite() {
			fds = append(fds, unix.PollFd{Fd: int32(p.dst.fd), Events: unix.POLLOUT})
			targets = append(targets, pollTarget{pump: p, write: true})
		}
	}

	return fds, targets
}

// checkChildExit notices child termination and shuts down the pumps whose
// sources outlive the child. Output already buffered in the child's pipes is
// still drained: those pumps keep running until they hit end-of-stream.
func (l *eventLoop) checkChildExit() {
	if l.childExited || !l.child.pollExit() {
		return
	}
	l.childExited = true
	logger.Printf("child %d exited, draining remaining output", l.child.pid)
	for _, p := range l.pumps {
		if p.closeOnChildExit {
			p.shutdown()
		}
	}
}

// forwardSignals relays every queued termination signal to the child's
// process group. Forwarding is idempotent: a repeated signal is forwarded
// again, and the loop keeps running so output the child produces while dying
// is still captured.
func (l *eventLoop) forwardSignals() {
	for {
		sig, ok := l.relay.next()
		if !ok {
			return
		}
		logger.Printf("forwarding signal %d to child %d", sig, l.child.pid)
		l.child.signal(sig)
	}
}

func (l *eventLoop) finished() bool {
	if !l.childExited {
		return false
	}
	for _, p := range l.pumps {
		if !p.drained() {
			return false
		}
	}
	return true
}
