package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/rhovm/manifest"
)

const sampleSource = `
.process main
	PUSH_INT 6
	PUSH_INT 7
	MUL
	HALT

.process greet
	PUSH_NAME "@0:out"
	PUSH_STR "hello"
	TELL 0
	POP
	PUSH_NAME "@0:out"
	PEEK 0
`

// execute runs the CLI with a fresh command tree inside dir.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func workspace(t *testing.T, config string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(config), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.rasm"), []byte(sampleSource), 0644))
	return dir
}

func TestRunAssemblySource(t *testing.T) {
	dir := workspace(t, "[rspace]\nbackend = \"memory\"\n")

	out, err := execute(t, dir, "run", filepath.Join(dir, "sample.rasm"))
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, err = execute(t, dir, "run", "-p", "greet", filepath.Join(dir, "sample.rasm"))
	require.NoError(t, err)
	assert.Equal(t, "\"hello\"\n", out)

	_, err = execute(t, dir, "run", "-p", "missing", filepath.Join(dir, "sample.rasm"))
	assert.ErrorContains(t, err, `no process "missing"`)
}

func TestAsmDisasmRoundTrip(t *testing.T) {
	dir := workspace(t, "[rspace]\nbackend = \"pathmap\"\n")
	src := filepath.Join(dir, "sample.rasm")

	_, err := execute(t, dir, "asm", src)
	require.NoError(t, err)
	module := filepath.Join(dir, "sample"+ModuleExt)
	require.FileExists(t, module)

	listing, err := execute(t, dir, "disasm", module)
	require.NoError(t, err)
	assert.Contains(t, listing, ".process main")
	assert.Contains(t, listing, `PUSH_STR "hello"`)

	// the listing assembles back into a runnable module
	relisted := filepath.Join(dir, "relisted.rasm")
	require.NoError(t, os.WriteFile(relisted, []byte(listing), 0644))
	out, err := execute(t, dir, "run", relisted)
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, err = execute(t, dir, "run", module)
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
}

func TestParSQLite(t *testing.T) {
	dir := workspace(t, "[rspace]\nbackend = \"sqlite\"\npath = \"space.db\"\n[scheduler]\nworkers = 3\n")

	out, err := execute(t, dir, "par", "-n", "2", filepath.Join(dir, "sample.rasm"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "0\tmain\t42", lines[0])
	assert.Equal(t, "1\tgreet\t\"hello\"", lines[1])
	assert.Equal(t, "2\tmain\t42", lines[2])
	assert.Equal(t, "3\tgreet\t\"hello\"", lines[3])
	assert.FileExists(t, filepath.Join(dir, "space.db"))
}

func TestParReportsFailures(t *testing.T) {
	dir := workspace(t, "")
	bad := filepath.Join(dir, "bad.rasm")
	require.NoError(t, os.WriteFile(bad, []byte("PUSH_INT 1\nPUSH_INT 0\nDIV\n"), 0644))

	out, err := execute(t, dir, "par", bad)
	assert.ErrorContains(t, err, "1 of 1 processes failed")
	assert.Contains(t, out, "division by zero")
}

func TestBadConfig(t *testing.T) {
	dir := workspace(t, "[rspace]\nbackend = \"memory\"\n")
	_, err := execute(t, dir, "--backend", "redis", "run", filepath.Join(dir, "sample.rasm"))
	assert.ErrorContains(t, err, "unknown rspace backend")
}
