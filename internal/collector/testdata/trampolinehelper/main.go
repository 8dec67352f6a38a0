// Command trampolinehelper is a throwaway test fixture: it wires up
// collector.Init/collector.Run exactly as cmd/intercc does, so
// collector_test.go can exercise the real reexec trampoline from
// outside the go test binary (whose own main is testing.Main, not
// ours, and so never calls Init).
package main

import (
	"fmt"
	"os"

	"github.com/intercc/intercc/internal/collector"
)

func main() {
	if collector.Init() {
		return
	}

	code, err := collector.Run(collector.Options{
		Command:      os.Args[1:],
		Output:       os.Getenv("INTERCC_TEST_OUTPUT"),
		LibraryPath:  os.Getenv("INTERCC_TEST_LIBRARY"),
		SocketPath:   os.Getenv("INTERCC_TEST_SOCKET"),
		Debug:        os.Getenv("INTERCC_TEST_DEBUG") != "",
		DebugLogPath: os.Getenv("INTERCC_TEST_DEBUG_LOG"),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "trampolinehelper:", err)
	}
	os.Exit(code)
}
