package collector

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// TrampolineName is the reexec-registered name used to launch the
// barrier-then-exec helper (see Run). It stands in for the "child
// post-fork" steps of spec.md §4.2: a forked, not-yet-exec'd process
// that blocks on a synchronization pipe before becoming the user
// command. Go cannot run arbitrary code between fork and exec the way
// the original C implementation does, so this trampoline is itself a
// fresh exec of the same binary (github.com/moby/sys/reexec), which
// plays the role the forked-but-not-yet-exec'd child plays in the C
// original.
const TrampolineName = "intercc-trampoline"

// RunTrampoline blocks on the synchronization barrier inherited as fd 3
// — the parent writes one byte once its listening socket is ready,
// exactly mirroring spec.md §4.2's "Child post-fork: block reading the
// sync pipe" — then execs the user's command in place. It does not
// return on success: the process image is replaced.
func RunTrampoline(args []string) {
	if barrier := os.NewFile(3, "intercc-barrier"); barrier != nil {
		var b [1]byte
		_, _ = barrier.Read(b[:])
		barrier.Close()
	}

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "intercc: trampoline: no command given")
		os.Exit(1)
	}

	path, err := exec.LookPath(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "intercc: trampoline: exec:", err)
		os.Exit(127)
	}

	// unix.Exec, not syscall.Exec, matching how the teacher's own
	// reexec-and-replace path calls into the low-level POSIX exec
	// family (daemon/command/daemon_linux_test.go's
	// unix.Exec(cmd.Path, cmd.Args, os.Environ())).
	if err := unix.Exec(path, args, os.Environ()); err != nil {
		fmt.Fprintln(os.Stderr, "intercc: trampoline: exec:", err)
		os.Exit(126)
	}
}
