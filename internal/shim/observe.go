package shim

import (
	"net"
	"time"

	"github.com/intercc/intercc/internal/wire"
)

// dialTimeout bounds how long a call blocks trying to reach a dead or
// absent collector — spec.md §5 permits "a defensive timeout" on this
// suspension point even though the collector is expected to outlive
// every descendant by construction.
const dialTimeout = 200 * time.Millisecond

// Observe attempts to transmit one execution observation to the
// collector listening at socketPath. Every failure path here — dial,
// write, anything — is swallowed: spec.md §4.1/§7 requires the shim to
// never let a failing report alter the observed program's behavior. A
// blank socketPath (collector never ran, or its variable was stripped)
// is itself just another non-fatal case.
func Observe(socketPath, fn, cwd string, argv []string) {
	if socketPath == "" {
		return
	}
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(dialTimeout))
	_ = wire.WriteObservation(conn, wire.Observation{Cwd: cwd, Argv: argv, Fn: fn})
}
