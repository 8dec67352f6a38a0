package record

import (
	"os"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestEscapeCommandPlainArgsUnchanged(t *testing.T) {
	got := EscapeCommand([]string{"cc", "-c", "hello.c"})
	assert.Check(t, is.Equal(got, "cc -c hello.c"))
}

func TestEscapeCommandQuoting(t *testing.T) {
	got := EscapeCommand([]string{"gcc", `-DMSG="hello world"`, "-c", "a.c"})
	assert.Check(t, is.Equal(got, `gcc \"-DMSG=\"hello world\"\" -c a.c`))
}

func TestEscapeCommandQuoteWithoutSpaceIsNotWrapped(t *testing.T) {
	got := EscapeCommand([]string{"this", "is my", `message="shit\gold"`})
	assert.Check(t, is.Equal(got, `this \"is my\" message=\"shit\\gold\"`))
}

func TestWriterEmptyBuildIsWellFormed(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.json"
	w, err := NewWriter(path)
	assert.NilError(t, err)
	assert.NilError(t, w.Close())

	got, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Check(t, is.Equal(string(got), "[\n]\n"))
}

func TestWriterAppendOmitsFileWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.json"
	w, err := NewWriter(path)
	assert.NilError(t, err)
	assert.NilError(t, w.Append(Record{Directory: "/tmp/x", Command: "gcc -MM hello.c"}))
	assert.NilError(t, w.Close())

	got, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Check(t, !strings.Contains(string(got), `"file"`))
	assert.Check(t, strings.Contains(string(got), `"directory": "/tmp/x"`))
}

func TestWriterAppendMultipleRecordsAreCommaSeparated(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.json"
	w, err := NewWriter(path)
	assert.NilError(t, err)
	assert.NilError(t, w.Append(Record{Directory: "/a", Command: "cc -c a.c", File: "/a/a.c", HasFile: true}))
	assert.NilError(t, w.Append(Record{Directory: "/b", Command: "cc -c b.c", File: "/b/b.c", HasFile: true}))
	assert.NilError(t, w.Close())

	got, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Check(t, strings.Contains(string(got), ",\n"))
}
