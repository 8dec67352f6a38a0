package collector

import (
	"net"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// socketHandle is the scoped-acquisition handle spec.md §9 calls for:
// if the collector created the temporary directory holding the socket
// file, release tears both down; if the caller supplied an explicit
// path, release only unlinks the socket file itself.
type socketHandle struct {
	path    string
	tempDir string // non-empty only when this handle owns the directory
}

// newSocketHandle allocates a socket path. An explicit path is used
// as-is; otherwise a private temporary directory is created and a
// socket file name is placed inside it (spec.md §4.2 "Startup").
func newSocketHandle(explicit string) (*socketHandle, error) {
	if explicit != "" {
		return &socketHandle{path: explicit}, nil
	}
	dir, err := os.MkdirTemp("", "intercc-")
	if err != nil {
		return nil, errors.Wrap(err, "create temporary socket directory")
	}
	return &socketHandle{
		path:    filepath.Join(dir, uuid.NewString()+".sock"),
		tempDir: dir,
	}, nil
}

// unlinkStale removes any pre-existing socket file, ignoring the
// "doesn't exist" case (spec.md §4.2 "Startup").
func (h *socketHandle) unlinkStale() error {
	err := os.Remove(h.path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "unlink stale socket")
}

// release unlinks the socket file and, if this handle owns the
// directory it lives in, removes that directory too. Safe to call
// whether startup succeeded or not.
func (h *socketHandle) release() {
	_ = os.Remove(h.path)
	if h.tempDir != "" {
		_ = os.RemoveAll(h.tempDir)
	}
}

// listenUnix binds and listens on path using the low-level POSIX
// socket calls directly, the same unix.Socket(unix.AF_UNIX,
// unix.SOCK_STREAM, 0) primitive daemon/command/daemon_linux_test.go
// uses to stand up its own unix-domain listener, then hands the
// resulting fd to net.FileListener for Accept/Close.
func listenUnix(path string) (net.Listener, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errors.Wrap(err, "create unix socket")
	}

	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "bind unix socket")
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "listen unix socket")
	}

	f := os.NewFile(uintptr(fd), path)
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, errors.Wrap(err, "wrap unix socket listener")
	}
	return ln, nil
}
