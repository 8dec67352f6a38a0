// Package collector implements the long-running daemon from spec.md
// §4.2: it owns the listening socket, forks (via a reexec trampoline)
// the user's build command, drains observations over the wire codec,
// filters them, and streams matching records to the output file.
package collector

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"code.cloudfoundry.org/clock"
	"github.com/moby/sys/reexec"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/intercc/intercc/internal/filter"
	"github.com/intercc/intercc/internal/record"
	"github.com/intercc/intercc/internal/shim"
	"github.com/intercc/intercc/internal/wire"
)

func init() {
	reexec.Register(TrampolineName, func() {
		RunTrampoline(os.Args[1:])
	})
}

// Init must be called at the top of main() before any other collector
// logic runs. It returns true when the current process is actually the
// reexec trampoline (see TrampolineName); callers should return
// immediately in that case.
func Init() bool {
	return reexec.Init()
}

// Options configures one collector run (spec.md §6 "Collector command
// line").
type Options struct {
	Command     []string
	Output      string
	LibraryPath string
	SocketPath  string
	Debug       bool
	Timestamps  bool
	// DebugLogPath, when non-empty, receives one line per observation
	// received on the socket (entry point, cwd, argv), regardless of
	// whether it passed the compiler filter — the raw per-observation
	// log a --bundle can carry alongside the compilation database.
	DebugLogPath string
	Logger       *logrus.Logger
	Clock        clock.Clock
}

func (o *Options) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

func (o *Options) clock() clock.Clock {
	if o.Clock != nil {
		return o.Clock
	}
	return clock.NewClock()
}

// Run executes one full collector lifecycle and returns the exit code
// that should be propagated to the process (spec.md §4.2 "Shutdown":
// "The collector's exit code equals the child's").
func Run(opts Options) (int, error) {
	log := opts.logger()

	sock, err := newSocketHandle(opts.SocketPath)
	if err != nil {
		return 1, err
	}
	defer sock.release()

	if err := sock.unlinkStale(); err != nil {
		return 1, err
	}

	ln, err := listenUnix(sock.path)
	if err != nil {
		return 1, errors.Wrap(err, ErrSocketBind.Error())
	}
	defer ln.Close()

	out, err := record.NewWriter(opts.Output)
	if err != nil {
		return 1, errors.Wrap(err, ErrOpenOutput.Error())
	}
	defer out.Close()

	var debugLog *os.File
	if opts.DebugLogPath != "" {
		debugLog, err = os.Create(opts.DebugLogPath)
		if err != nil {
			return 1, errors.Wrap(err, "create debug log")
		}
		defer debugLog.Close()
	}

	filterCfg := filter.New(opts.Debug)

	barrierRead, barrierWrite, err := os.Pipe()
	if err != nil {
		return 1, errors.Wrap(err, ErrSyncPipe.Error())
	}

	cmd := reexec.Command(append([]string{TrampolineName}, opts.Command...)...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.ExtraFiles = []*os.File{barrierRead}
	cmd.Env = injectChildEnv(os.Environ(), opts.LibraryPath, sock.path)

	if err := cmd.Start(); err != nil {
		barrierRead.Close()
		barrierWrite.Close()
		return 1, errors.Wrap(err, ErrStartChild.Error())
	}
	barrierRead.Close()

	var childExited atomic.Bool
	var childStatus atomic.Int32
	waitDone := make(chan struct{})
	go func() {
		status := waitChild(cmd)
		childStatus.Store(int32(status))
		childExited.Store(true)
		close(waitDone)
		ln.Close() // unblock Accept() once the build tree is gone
	}()

	// unix.SIGINT/unix.SIGTERM, not os.Interrupt/syscall.SIGTERM,
	// matching container/stream/streamv2/stdio/fd_unix_test.go's
	// signal.Notify(sig, unix.SIGTERM, unix.SIGINT).
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
	defer signal.Stop(sigCh)
	go forwardSignals(cmd, sigCh, waitDone)

	// Release the trampoline: the listener above is already bound, so
	// the barrier's only remaining job is to make that ordering
	// explicit rather than relying on a believed-to-be-safe race.
	_, _ = barrierWrite.Write([]byte{0})
	barrierWrite.Close()

	log.WithField("socket", sock.path).Debug("intercc: collector listening")

	acceptLoop(ln, &childExited, filterCfg, out, debugLog, opts, log)

	<-waitDone
	return int(childStatus.Load()), nil
}

// acceptLoop handles one connection at a time: each accepted
// connection is read, filtered and written out before the next Accept,
// so out and debugLog are only ever touched from this loop. It returns
// once Accept fails after the child has exited (Run's wait goroutine
// closes the listener at that point).
func acceptLoop(ln net.Listener, childExited *atomic.Bool, filterCfg *filter.Config, out *record.Writer, debugLog *os.File, opts Options, log *logrus.Logger) {
	var mu sync.Mutex
	for {
		conn, err := ln.Accept()
		if err != nil {
			if childExited.Load() {
				return
			}
			log.WithError(err).Debug("intercc: accept")
			continue
		}
		handleConnection(conn, filterCfg, out, debugLog, &mu, opts, log)
	}
}

func handleConnection(conn net.Conn, filterCfg *filter.Config, out *record.Writer, debugLog *os.File, mu *sync.Mutex, opts Options, log *logrus.Logger) {
	defer conn.Close()

	obs, err := wire.ReadObservation(conn)
	if err != nil {
		// A short/truncated read is discarded, never fatal (spec.md §7
		// tier 2, §4.4 "Error handling").
		log.WithError(err).Debug("intercc: discarding truncated observation")
		return
	}

	mu.Lock()
	defer mu.Unlock()

	if debugLog != nil {
		fn := obs.Fn
		if fn == "" {
			fn = "exec"
		}
		fmt.Fprintf(debugLog, "%s %s %s\n", fn, obs.Cwd, strings.Join(obs.Argv, " "))
	}

	rec, ok := filter.Apply(filterCfg, obs)
	if !ok {
		return
	}
	if opts.Timestamps {
		rec.Timestamp = opts.clock().Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}
	if err := out.Append(rec); err != nil {
		log.WithError(err).Warn("intercc: write record")
	}
}

func forwardSignals(cmd *exec.Cmd, sigCh <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case sig, ok := <-sigCh:
			if !ok {
				return
			}
			if cmd.Process != nil {
				_ = cmd.Process.Signal(sig)
			}
		case <-done:
			return
		}
	}
}

// waitChild reaps the forked command and returns the exit code to
// propagate, matching spec.md §4.2's signal handler: "the exit status
// if the child exited normally, a generic failure status otherwise."
func waitChild(cmd *exec.Cmd) int {
	err := cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 1
		}
		return exitErr.ExitCode()
	}
	return 1
}

// injectChildEnv sets PreloadVar/SocketVar for the trampoline's own
// environment (spec.md §4.2 "Child post-fork: Set PRELOAD_VAR and
// SOCKET_VAR in its own environment"), overwriting any existing value,
// and additionally forces the platform's own dynamic-linker preload
// variable so the shim library is actually loaded into the exec'd
// command (spec.md §4.2: "assigned to the OS's LD_PRELOAD, on Darwin
// to DYLD_INSERT_LIBRARIES, by the collector at fork time").
func injectChildEnv(base []string, libraryPath, socketPath string) []string {
	return shim.PropagateInto(base, []string{
		shim.PreloadVar + "=" + libraryPath,
		shim.SocketVar + "=" + socketPath,
	})
}
