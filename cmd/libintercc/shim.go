// Command libintercc builds into a shared library (-buildmode=c-shared)
// loaded into every descendant of a collector-launched build via
// LD_PRELOAD (DYLD_INSERT_LIBRARIES on Darwin). It overrides the exec*
// family the dynamic linker resolves first, reports each attempted
// command to the collector, then chains to the real implementation —
// spec.md §4.1, "Interposition library".
//
// cgo is the only way to realize this: the symbols the linker must
// find here (execve, execv, execvp, execvpe, ...) have to carry genuine
// C linkage and C calling convention, including true variadic ABI for
// execl/execlp/execle, which cgo's //export cannot produce directly.
// //export also can't give those symbols libc's own const-qualified
// prototypes, which would conflict with <unistd.h>'s declarations in
// the same translation unit, so every libc-named entry point below is
// a small hand-written C function with the real signature that calls
// through to a distinctly-named (go-prefixed) //export Go function.
// The C preamble collects variadic argument lists the same way
// spawn_darwin.go's posix_spawn wrapper builds its argv/envp arrays —
// malloc'd, NULL-terminated, freed by the caller — then hands off to
// the non-variadic Go entry points that do the actual interception.
package main

/*
#include <dlfcn.h>
#include <stdarg.h>
#include <stdlib.h>
#include <unistd.h>

typedef int (*execve_fn)(const char *, char *const [], char *const []);
typedef int (*execv_fn)(const char *, char *const []);
typedef int (*execvp_fn)(const char *, char *const []);
typedef int (*execvpe_fn)(const char *, char *const [], char *const []);

static execve_fn  real_execve;
static execv_fn   real_execv;
static execvp_fn  real_execvp;
static execvpe_fn real_execvpe;

static void resolve_real(void) {
	if (!real_execve)  real_execve  = (execve_fn)dlsym(RTLD_NEXT, "execve");
	if (!real_execv)   real_execv   = (execv_fn)dlsym(RTLD_NEXT, "execv");
	if (!real_execvp)  real_execvp  = (execvp_fn)dlsym(RTLD_NEXT, "execvp");
	if (!real_execvpe) real_execvpe = (execvpe_fn)dlsym(RTLD_NEXT, "execvpe");
}

int intercc_call_real_execve(const char *path, char *const argv[], char *const envp[]) {
	resolve_real();
	return real_execve(path, argv, envp);
}

int intercc_call_real_execv(const char *path, char *const argv[]) {
	resolve_real();
	return real_execv(path, argv);
}

int intercc_call_real_execvp(const char *file, char *const argv[]) {
	resolve_real();
	return real_execvp(file, argv);
}

int intercc_call_real_execvpe(const char *file, char *const argv[], char *const envp[]) {
	resolve_real();
	return real_execvpe(file, argv, envp);
}

void intercc_setenv(const char *key, const char *value) {
	setenv(key, value, 1);
}

extern int goExecve(char *path, char **argv, char **envp);
extern int goExecv(char *path, char **argv);
extern int goExecvp(char *file, char **argv);
extern int goExecvpe(char *file, char **argv, char **envp);

int execve(const char *path, char *const argv[], char *const envp[]) {
	return goExecve((char *)path, (char **)argv, (char **)envp);
}

int execv(const char *path, char *const argv[]) {
	return goExecv((char *)path, (char **)argv);
}

int execvp(const char *file, char *const argv[]) {
	return goExecvp((char *)file, (char **)argv);
}

int execvpe(const char *file, char *const argv[], char *const envp[]) {
	return goExecvpe((char *)file, (char **)argv, (char **)envp);
}

static char **collect_argv(const char *arg0, va_list ap) {
	int n = 1;
	va_list counter;
	va_copy(counter, ap);
	while (va_arg(counter, const char *) != NULL) n++;
	va_end(counter);

	char **argv = (char **)malloc(sizeof(char *) * (size_t)(n + 1));
	argv[0] = (char *)arg0;
	int i = 1;
	for (;;) {
		char *a = va_arg(ap, char *);
		argv[i] = a;
		if (a == NULL) {
			break;
		}
		i++;
	}
	return argv;
}

extern char **environ;

int execl(const char *path, const char *arg0, ...) {
	va_list ap;
	va_start(ap, arg0);
	char **argv = collect_argv(arg0, ap);
	va_end(ap);
	int rv = goExecve((char *)path, argv, environ);
	free(argv);
	return rv;
}

int execlp(const char *file, const char *arg0, ...) {
	va_list ap;
	va_start(ap, arg0);
	char **argv = collect_argv(arg0, ap);
	va_end(ap);
	int rv = goExecvp((char *)file, argv);
	free(argv);
	return rv;
}

int execle(const char *path, const char *arg0, ...) {
	va_list ap;
	va_start(ap, arg0);
	char **argv = collect_argv(arg0, ap);
	char **envp = va_arg(ap, char **);
	va_end(ap);

	int rv = goExecve((char *)path, argv, envp);
	free(argv);
	return rv;
}
*/
import "C"

import (
	"os"
	"unsafe"

	"github.com/intercc/intercc/internal/shim"
)

func main() {} // required by -buildmode=c-shared, never runs

// goStringArray walks a NULL-terminated C string array, the shape
// execve/execvp/.../environ all share.
func goStringArray(p **C.char) []string {
	if p == nil {
		return nil
	}
	var out []string
	for i := 0; ; i++ {
		entry := *(**C.char)(unsafe.Add(unsafe.Pointer(p), uintptr(i)*unsafe.Sizeof(p)))
		if entry == nil {
			return out
		}
		out = append(out, C.GoString(entry))
	}
}

// newCStringArray builds a malloc'd, NULL-terminated char** from a Go
// string slice. The caller must free it with freeCStringArray.
func newCStringArray(ss []string) **C.char {
	size := C.size_t(len(ss)+1) * C.size_t(unsafe.Sizeof((*C.char)(nil)))
	base := C.malloc(size)
	arr := (*[1 << 20]*C.char)(base)[: len(ss)+1 : len(ss)+1]
	for i, s := range ss {
		arr[i] = C.CString(s)
	}
	arr[len(ss)] = nil
	return (**C.char)(base)
}

func freeCStringArray(p **C.char, n int) {
	arr := (*[1 << 20]*C.char)(unsafe.Pointer(p))[:n:n]
	for _, s := range arr {
		C.free(unsafe.Pointer(s))
	}
	C.free(unsafe.Pointer(p))
}

func observe(fn string, argv []string) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	shim.Observe(os.Getenv(shim.SocketVar), fn, cwd, argv)
}

//export goExecve
func goExecve(path *C.char, argv, envp **C.char) C.int {
	return doExecve(path, argv, envp)
}

//export goExecv
func goExecv(path *C.char, argv **C.char) C.int {
	return doExecv(path, argv)
}

//export goExecvp
func goExecvp(file *C.char, argv **C.char) C.int {
	return doExecvp(file, argv)
}

//export goExecvpe
func goExecvpe(file *C.char, argv, envp **C.char) C.int {
	return doExecvpe(file, argv, envp)
}

func doExecve(cPath *C.char, cArgv, cEnvp **C.char) C.int {
	argv := goStringArray(cArgv)
	observe("execve", argv)

	envp := goStringArray(cEnvp)
	newEnvp := shim.PropagateInto(envp, os.Environ())
	cNewEnvp := newCStringArray(newEnvp)
	defer freeCStringArray(cNewEnvp, len(newEnvp))

	return C.intercc_call_real_execve(cPath, cArgv, cNewEnvp)
}

func doExecvpe(cFile *C.char, cArgv, cEnvp **C.char) C.int {
	argv := goStringArray(cArgv)
	observe("execvpe", argv)

	envp := goStringArray(cEnvp)
	newEnvp := shim.PropagateInto(envp, os.Environ())
	cNewEnvp := newCStringArray(newEnvp)
	defer freeCStringArray(cNewEnvp, len(newEnvp))

	return C.intercc_call_real_execvpe(cFile, cArgv, cNewEnvp)
}

func doExecv(cPath *C.char, cArgv **C.char) C.int {
	argv := goStringArray(cArgv)
	observe("execv", argv)

	// execv, like execvp, carries no envp parameter and relies on the
	// process's own environ, so the bookkeeping/preload variables can
	// only be kept alive by setting them directly before chaining.
	propagateAmbientEnv()

	return C.intercc_call_real_execv(cPath, cArgv)
}

func doExecvp(cFile *C.char, cArgv **C.char) C.int {
	argv := goStringArray(cArgv)
	observe("execvp", argv)

	// execvp carries no envp parameter, so the only way to keep the
	// preload and socket variables alive for it is to set them on the
	// process's own environ before chaining to the real call.
	propagateAmbientEnv()

	return C.intercc_call_real_execvp(cFile, cArgv)
}

// propagateAmbientEnv forces the bookkeeping and native preload
// variables into the process's own environment via setenv, for the
// exec forms (execv, execvp) that take no explicit envp and so offer
// no other place to inject them. PropagateInto only ever touches
// PreloadVar, SocketVar and the native preload variable, so only those
// are re-set rather than the whole environment.
func propagateAmbientEnv() {
	current := os.Environ()
	propagated := shim.PropagateInto(current, current)

	keys := []string{shim.PreloadVar, shim.SocketVar}
	if nativeVar := shim.NativePreloadVar(); nativeVar != "" {
		keys = append(keys, nativeVar)
	}

	for _, key := range keys {
		value, ok := shim.LookupVar(propagated, key)
		if !ok {
			continue
		}
		ckey, cvalue := C.CString(key), C.CString(value)
		C.intercc_setenv(ckey, cvalue)
		C.free(unsafe.Pointer(ckey))
		C.free(unsafe.Pointer(cvalue))
	}
}
