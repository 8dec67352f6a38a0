// Package shim holds the portable, cgo-free logic behind the exec
// interposition library: environment injection and observation
// transmission. cmd/libintercc wires this up to the //export-annotated
// C ABI entry points the dynamic linker actually resolves.
package shim

import (
	"runtime"
	"strings"
)

// Environment variable names shared between the collector and the
// interposed exec calls (spec.md §6).
const (
	PreloadVar = "INTERCC_PRELOAD"
	SocketVar  = "INTERCC_SOCKET"
)

// NativePreloadVar returns the dynamic linker's own preload variable
// name for the current platform (spec.md §4.2: "assigned to the OS's
// LD_PRELOAD, on Darwin to DYLD_INSERT_LIBRARIES, by the collector at
// fork time"), or "" where no such mechanism exists.
func NativePreloadVar() string {
	switch runtime.GOOS {
	case "darwin":
		return "DYLD_INSERT_LIBRARIES"
	case "linux":
		return "LD_PRELOAD"
	default:
		return ""
	}
}

// MergeNativePreload prepends libraryPath to whatever the native
// preload variable already held, so the shim coexists with any
// preload list the caller's environment already carries.
func MergeNativePreload(existing, libraryPath string) string {
	if existing == "" {
		return libraryPath
	}
	return libraryPath + ":" + existing
}

// SetVar returns a copy of env with key forced to value, overwriting
// any existing entry under that name.
func SetVar(env []string, key, value string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if hasEnvKey(kv, key) {
			continue
		}
		out = append(out, kv)
	}
	return append(out, key+"="+value)
}

// LookupVar returns the value env holds for key, if any.
func LookupVar(env []string, key string) (string, bool) {
	return lookupEnv(env, key)
}

// PropagateInto folds currentEnv's PreloadVar/SocketVar into callerEnv
// (via InjectEnviron) and additionally forces the native preload
// variable to keep carrying the shim library forward, so interposition
// survives an arbitrary number of further exec calls down the build
// tree (spec.md §4.1 step 4, "forced into the outgoing envp").
// currentEnv supplies the values to propagate; it need not be this
// process's literal environment — the collector calls this with the
// values it is about to hand a freshly forked child.
func PropagateInto(callerEnv, currentEnv []string) []string {
	out := InjectEnviron(callerEnv, currentEnv)

	libraryPath, ok := LookupVar(currentEnv, PreloadVar)
	if !ok || libraryPath == "" {
		return out
	}
	nativeVar := NativePreloadVar()
	if nativeVar == "" {
		return out
	}
	existing, _ := LookupVar(out, nativeVar)
	return SetVar(out, nativeVar, MergeNativePreload(existing, libraryPath))
}

// InjectEnviron returns a copy of callerEnv with PreloadVar and
// SocketVar forced to the values carried in currentEnv — the process's
// own environment, inherited from whichever ancestor set them up. Any
// value callerEnv already has for either name is overwritten (spec.md
// §4.1 step 4, "overwrite-on-conflict semantics").
func InjectEnviron(callerEnv, currentEnv []string) []string {
	preload, hasPreload := lookupEnv(currentEnv, PreloadVar)
	socket, hasSocket := lookupEnv(currentEnv, SocketVar)

	out := make([]string, 0, len(callerEnv)+2)
	for _, kv := range callerEnv {
		if hasPreload && hasEnvKey(kv, PreloadVar) {
			continue
		}
		if hasSocket && hasEnvKey(kv, SocketVar) {
			continue
		}
		out = append(out, kv)
	}
	if hasPreload {
		out = append(out, PreloadVar+"="+preload)
	}
	if hasSocket {
		out = append(out, SocketVar+"="+socket)
	}
	return out
}

func lookupEnv(env []string, key string) (string, bool) {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):], true
		}
	}
	return "", false
}

func hasEnvKey(kv, key string) bool {
	return strings.HasPrefix(kv, key+"=")
}
