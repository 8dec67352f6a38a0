package shim

import (
	"net"
	"path/filepath"
	"slices"
	"testing"

	"github.com/intercc/intercc/internal/wire"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestInjectEnvironForcesVars(t *testing.T) {
	callerEnv := []string{"PATH=/bin", "FOO=bar"}
	currentEnv := []string{PreloadVar + "=/lib/libintercc.so", SocketVar + "=/tmp/x.sock"}

	got := InjectEnviron(callerEnv, currentEnv)

	assert.Check(t, is.Contains(got, "PATH=/bin"))
	assert.Check(t, is.Contains(got, "FOO=bar"))
	assert.Check(t, is.Contains(got, PreloadVar+"=/lib/libintercc.so"))
	assert.Check(t, is.Contains(got, SocketVar+"=/tmp/x.sock"))
}

func TestInjectEnvironOverwritesCallerSuppliedValue(t *testing.T) {
	callerEnv := []string{SocketVar + "=/evil.sock"}
	currentEnv := []string{SocketVar + "=/real.sock"}

	got := InjectEnviron(callerEnv, currentEnv)

	assert.Check(t, is.Contains(got, SocketVar+"=/real.sock"))
	assert.Check(t, !slices.Contains(got, SocketVar+"=/evil.sock"))
}

func TestInjectEnvironLeavesOtherVarsUntouchedWhenCurrentLacksThem(t *testing.T) {
	callerEnv := []string{"PATH=/bin"}
	got := InjectEnviron(callerEnv, nil)
	assert.DeepEqual(t, got, callerEnv)
}

func TestObserveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "collector.sock")
	ln, err := net.Listen("unix", sock)
	assert.NilError(t, err)
	defer ln.Close()

	received := make(chan wire.Observation, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		obs, err := wire.ReadObservation(conn)
		if err == nil {
			received <- obs
		}
	}()

	Observe(sock, "execve", "/tmp/x", []string{"cc", "-c", "hello.c"})

	obs := <-received
	assert.Check(t, is.Equal(obs.Cwd, "/tmp/x"))
	assert.DeepEqual(t, obs.Argv, []string{"cc", "-c", "hello.c"})
	assert.Check(t, is.Equal(obs.Fn, "execve"))
}

func TestObserveSwallowsDialFailure(t *testing.T) {
	dir := t.TempDir()
	// no listener at this path
	Observe(filepath.Join(dir, "nothing.sock"), "execve", "/tmp", []string{"cc"})
}

func TestObserveSwallowsBlankSocket(t *testing.T) {
	Observe("", "execve", "/tmp", []string{"cc"})
}

func TestMergeNativePreloadEmptyExisting(t *testing.T) {
	assert.Check(t, is.Equal(MergeNativePreload("", "/lib/libintercc.so"), "/lib/libintercc.so"))
}

func TestMergeNativePreloadPrependsToExisting(t *testing.T) {
	got := MergeNativePreload("/usr/lib/libasan.so", "/lib/libintercc.so")
	assert.Check(t, is.Equal(got, "/lib/libintercc.so:/usr/lib/libasan.so"))
}

func TestSetVarOverwritesExisting(t *testing.T) {
	got := SetVar([]string{"LD_PRELOAD=/old.so", "PATH=/bin"}, "LD_PRELOAD", "/new.so")
	assert.Check(t, is.Contains(got, "PATH=/bin"))
	assert.Check(t, is.Contains(got, "LD_PRELOAD=/new.so"))
	assert.Check(t, !slices.Contains(got, "LD_PRELOAD=/old.so"))
}

func TestLookupVarMissing(t *testing.T) {
	_, ok := LookupVar([]string{"PATH=/bin"}, "LD_PRELOAD")
	assert.Check(t, !ok)
}

func TestPropagateIntoForcesBookkeepingVars(t *testing.T) {
	callerEnv := []string{"PATH=/bin"}
	currentEnv := []string{PreloadVar + "=/lib/libintercc.so", SocketVar + "=/tmp/x.sock"}

	got := PropagateInto(callerEnv, currentEnv)

	assert.Check(t, is.Contains(got, PreloadVar+"=/lib/libintercc.so"))
	assert.Check(t, is.Contains(got, SocketVar+"=/tmp/x.sock"))
	if nativeVar := NativePreloadVar(); nativeVar != "" {
		v, ok := LookupVar(got, nativeVar)
		assert.Check(t, ok)
		assert.Check(t, is.Contains(v, "/lib/libintercc.so"))
	}
}

func TestPropagateIntoNoopWithoutLibraryPath(t *testing.T) {
	callerEnv := []string{"PATH=/bin"}
	got := PropagateInto(callerEnv, nil)
	assert.DeepEqual(t, got, callerEnv)
}
