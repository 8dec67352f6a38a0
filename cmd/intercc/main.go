// Command intercc is the collector entry point: it owns the listening
// socket, launches the user's build command with the interposition
// shim wired into its environment, and writes the resulting
// compilation database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/intercc/intercc/internal/archive"
	"github.com/intercc/intercc/internal/collector"
	"github.com/intercc/intercc/internal/filter"
	"github.com/intercc/intercc/internal/telemetry"
	"github.com/intercc/intercc/internal/version"
)

func main() {
	// A reexec'd trampoline lands here too (it shares this binary); in
	// that case Init has already taken over and replaced the process
	// image, so this branch never actually returns in practice.
	if collector.Init() {
		return
	}

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions backs the collector command line from spec.md §6.
type rootOptions struct {
	output         string
	library        string
	socket         string
	debug          bool
	listCompilers  bool
	listExtensions bool
	showVersion    bool
	timestamps     bool
	bundle         string
}

// newRootCommand builds the intercc command line:
// -o/--output, -b/--libear, -s/--socket, -d/--debug, -c/--list-compilers,
// -e/--list-extensions, -v/--version, -t/--timestamps, --bundle, and the
// positional "-- command args..." the build invocation itself.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "intercc [flags] -- command [args...]",
		Short:        "Record a compiler-invocation compilation database for a build command",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "compile_commands.json", "path to write the compilation database")
	flags.StringVarP(&opts.library, "libear", "b", "", "path to the libintercc shared library")
	flags.StringVarP(&opts.socket, "socket", "s", "", "collector socket path (a private temporary one is used if empty)")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "emit a record for compiler calls that carry no resolved source file")
	flags.BoolVarP(&opts.listCompilers, "list-compilers", "c", false, "print the compiler-name patterns and exit")
	flags.BoolVarP(&opts.listExtensions, "list-extensions", "e", false, "print the source-extension patterns and exit")
	flags.BoolVarP(&opts.showVersion, "version", "v", false, "print the version and exit")
	flags.BoolVarP(&opts.timestamps, "timestamps", "t", false, "stamp each record with its collection time")
	flags.StringVar(&opts.bundle, "bundle", "", "also write a tar bundle of the output and debug log to PATH")

	return cmd
}

func runRoot(cmd *cobra.Command, opts *rootOptions, args []string) error {
	out := cmd.OutOrStdout()

	if opts.showVersion {
		fmt.Fprintln(out, version.String())
		return nil
	}
	if opts.listCompilers {
		for _, p := range filter.CompilerPatterns() {
			fmt.Fprintln(out, p)
		}
		return nil
	}
	if opts.listExtensions {
		for _, p := range filter.ExtensionPatterns() {
			fmt.Fprintln(out, p)
		}
		return nil
	}
	if len(args) == 0 {
		_ = cmd.Usage()
		return errors.New("no command given")
	}

	log := logrus.StandardLogger()
	if opts.debug {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	shutdownTelemetry, err := telemetry.Init(ctx)
	if err != nil {
		log.WithError(err).Warn("intercc: telemetry init failed, continuing without it")
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer shutdownTelemetry(ctx)

	_, span := telemetry.StartRun(ctx, args)
	defer span.End()

	var debugLogPath string
	if opts.bundle != "" {
		f, err := os.CreateTemp("", "intercc-observations-")
		if err != nil {
			log.WithError(err).Warn("intercc: creating debug log for bundle")
		} else {
			debugLogPath = f.Name()
			f.Close()
			defer os.Remove(debugLogPath)
		}
	}

	code, runErr := collector.Run(collector.Options{
		Command:      args,
		Output:       opts.output,
		LibraryPath:  opts.library,
		SocketPath:   opts.socket,
		Debug:        opts.debug,
		Timestamps:   opts.timestamps,
		DebugLogPath: debugLogPath,
		Logger:       log,
	})
	if runErr != nil {
		log.WithError(runErr).Error("intercc: collector run failed")
	}

	if opts.bundle != "" {
		if err := archive.Bundle(opts.bundle, opts.output, debugLogPath); err != nil {
			log.WithError(err).Warn("intercc: writing bundle")
		}
	}

	if code != 0 {
		os.Exit(code)
	}
	return runErr
}
