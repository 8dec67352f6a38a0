package collector

import "github.com/pkg/errors"

// Sentinel fatal-startup errors (spec.md §7 tier 1): socket bind, fork,
// pipe, or exec-of-the-user-command failures. Wrapped with
// github.com/pkg/errors for call-site context, the way errdefs wraps
// daemon errors in the teacher repository.
var (
	ErrSocketBind = errors.New("bind collector socket")
	ErrSyncPipe   = errors.New("create synchronization pipe")
	ErrStartChild = errors.New("start user command")
	ErrOpenOutput = errors.New("open output file")
)
