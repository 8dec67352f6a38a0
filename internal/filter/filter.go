// Package filter decides whether an observed exec call describes a
// C/C++ source-file compilation, and if so extracts the source path.
package filter

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/intercc/intercc/internal/record"
	"github.com/intercc/intercc/internal/wire"
)

// compilerPatterns and extensionPatterns are ported 1:1 from the
// anchored POSIX extended-regex patterns in the original implementation
// (original_source/src/filter.c); Go's RE2 syntax accepts them unchanged.
var compilerPatterns = []string{
	`^([^/]*/)*cc$`,
	`^([^/]*/)*gcc$`,
	`^([^/]*/)*gcc-4\.[012345678]$`,
	`^([^/]*/)*llvm-gcc$`,
	`^([^/]*/)*clang$`,
	`^([^/]*/)*clang-3\.[01234]$`,
	`^([^/]*/)*[gc]\+\+$`,
	`^([^/]*/)*g\+\+-4\.[012345678]$`,
	`^([^/]*/)*llvm-g\+\+$`,
	`^([^/]*/)*clang\+\+$`,
}

var extensionPatterns = []string{
	`.*\.[cC]$`,
	`.*\.[cC]\+\+$`,
	`.*\.cc$`,
	`.*\.cxx$`,
	`.*\.cpp$`,
	`.*\.cp$`,
	`.*\.ii?$`,
	`.*\.m$`,
	`.*\.S$`,
}

// CompilerPatterns returns the raw compiler-name pattern list, exposed
// for the collector's -c flag (spec.md §6).
func CompilerPatterns() []string { return append([]string(nil), compilerPatterns...) }

// ExtensionPatterns returns the raw source-extension pattern list,
// exposed for the collector's -e flag.
func ExtensionPatterns() []string { return append([]string(nil), extensionPatterns...) }

// Config holds the compiled, immutable pattern lists plus the debug
// toggle. Build once with New and never mutate.
type Config struct {
	compilers  []*regexp.Regexp
	extensions []*regexp.Regexp
	debug      bool
}

// New compiles the pattern lists. debug enables emitting a record for
// observations that match a compiler but carry no source file (spec.md
// §4.2/§9 "debug mode").
func New(debug bool) *Config {
	return &Config{
		compilers:  compileAll(compilerPatterns),
		extensions: compileAll(extensionPatterns),
		debug:      debug,
	}
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// isDependencyGenerationFlag reports whether arg is a -M* flag, which
// suppresses the whole observation: it signals dependency-file
// generation rather than object-file compilation (spec.md §4.3).
func isDependencyGenerationFlag(arg string) bool {
	return len(arg) >= 2 && arg[0] == '-' && arg[1] == 'M'
}

// Apply runs the algorithm from spec.md §4.3 against obs. ok is false
// when the observation should produce no record at all (non-compiler
// argv[0], or a compiler call with no source file and debug disabled).
func Apply(cfg *Config, obs wire.Observation) (record.Record, bool) {
	if len(obs.Argv) == 0 || obs.Argv[0] == "" {
		return record.Record{}, false
	}
	if !matchesAny(cfg.compilers, obs.Argv[0]) {
		return record.Record{}, false
	}

	var source string
	var hasSource bool
	for _, arg := range obs.Argv[1:] {
		if !hasSource && matchesAny(cfg.extensions, arg) {
			source = arg
			hasSource = true
			continue
		}
		if isDependencyGenerationFlag(arg) {
			hasSource = false
			source = ""
			break
		}
	}

	command := record.EscapeCommand(obs.Argv)
	if !hasSource {
		if !cfg.debug {
			return record.Record{}, false
		}
		return record.Record{Directory: obs.Cwd, Command: command}, true
	}

	return record.Record{
		Directory: obs.Cwd,
		Command:   command,
		File:      resolvePath(source, obs.Cwd),
		HasFile:   true,
	}, true
}

// resolvePath joins file onto cwd unless file is already absolute
// (spec.md §4.3 step 6). The join is purely syntactic — an unresolvable
// path is still returned, never rejected (spec.md §4.3 "Failure modes").
func resolvePath(file, cwd string) string {
	if strings.HasPrefix(file, "/") {
		return file
	}
	return filepath.Join(cwd, file)
}
