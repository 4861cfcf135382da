package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its output
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

// kvArgs builds a kv invocation against an nvs partition in dir. Flag values
// survive between executions, so every shared flag is set explicitly.
func kvArgs(dir string, args ...string) []string {
	all := append([]string{"kv"}, args...)
	return append(all,
		"--backend", "nvs",
		"--data-dir", dir,
		"--name", "arduino",
		"--partition", "",
		"--read-only=false",
		"--log-level", "error",
	)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "kvstore v"+Version+"\n", out)
}

func TestKeyValueCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, kvArgs(dir, "put", "greeting", "hello", "--type", "str")...)
	require.NoError(t, err)
	assert.Equal(t, "key=greeting, type=str, written=6\n", out)

	out, err = execute(t, kvArgs(dir, "put", "count", "--value=-42", "--type", "i16")...)
	require.NoError(t, err)
	assert.Equal(t, "key=count, type=i16, written=2\n", out)

	out, err = execute(t, kvArgs(dir, "put", "mac", "0a1b2c", "--type", "blob")...)
	require.NoError(t, err)
	assert.Equal(t, "key=mac, type=blob, written=3\n", out)

	t.Run("get discovers the stored type", func(t *testing.T) {
		out, err := execute(t, kvArgs(dir, "get", "greeting", "--type", "auto")...)
		require.NoError(t, err)
		assert.Equal(t, "key=greeting, type=str, found=true, value=hello\n", out)

		out, err = execute(t, kvArgs(dir, "get", "count", "--type", "auto")...)
		require.NoError(t, err)
		assert.Equal(t, "key=count, type=i16, found=true, value=-42\n", out)

		out, err = execute(t, kvArgs(dir, "get", "mac", "--type", "blob")...)
		require.NoError(t, err)
		assert.Equal(t, "key=mac, type=blob, found=true, value=0a1b2c\n", out)
	})

	t.Run("type and len", func(t *testing.T) {
		out, err := execute(t, kvArgs(dir, "type", "count")...)
		require.NoError(t, err)
		assert.Equal(t, "key=count, type=i16\n", out)

		out, err = execute(t, kvArgs(dir, "len", "count")...)
		require.NoError(t, err)
		assert.Equal(t, "key=count, len=2\n", out)
	})

	t.Run("exists and remove", func(t *testing.T) {
		out, err := execute(t, kvArgs(dir, "exists", "count")...)
		require.NoError(t, err)
		assert.Equal(t, "key=count, found=true\n", out)

		out, err = execute(t, kvArgs(dir, "remove", "count")...)
		require.NoError(t, err)
		assert.Equal(t, "removed successfully\n", out)

		out, err = execute(t, kvArgs(dir, "exists", "count")...)
		require.NoError(t, err)
		assert.Equal(t, "key=count, found=false\n", out)
	})

	t.Run("missing key fails", func(t *testing.T) {
		_, err := execute(t, kvArgs(dir, "get", "count", "--type", "auto")...)
		assert.Error(t, err)
	})

	t.Run("clear", func(t *testing.T) {
		out, err := execute(t, kvArgs(dir, "clear")...)
		require.NoError(t, err)
		assert.Equal(t, "cleared successfully\n", out)

		out, err = execute(t, kvArgs(dir, "exists", "greeting")...)
		require.NoError(t, err)
		assert.Equal(t, "key=greeting, found=false\n", out)
	})
}

func TestNegativeBoundaries(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, kvArgs(dir, "put", "minus_one", "--value=-1", "--type", "i8")...)
	require.NoError(t, err)
	assert.Equal(t, "key=minus_one, type=i8, written=1\n", out)

	// a value after the separator is never read as a flag
	out, err = execute(t, append(kvArgs(dir, "put", "--type", "i64"), "--", "min64", "-9223372036854775808")...)
	require.NoError(t, err)
	assert.Equal(t, "key=min64, type=i64, written=8\n", out)

	out, err = execute(t, append(kvArgs(dir, "put", "--type", "i16"), "--", "min16", "-32768")...)
	require.NoError(t, err)
	assert.Equal(t, "key=min16, type=i16, written=2\n", out)

	for key, want := range map[string]string{
		"minus_one": "type=i8, found=true, value=-1",
		"min64":     "type=i64, found=true, value=-9223372036854775808",
		"min16":     "type=i16, found=true, value=-32768",
	} {
		out, err := execute(t, kvArgs(dir, "get", key, "--type", "auto")...)
		require.NoError(t, err)
		assert.Equal(t, "key="+key+", "+want+"\n", out)
	}

	_, err = execute(t, append(kvArgs(dir, "put", "--type", "i8"), "--", "under", "-129")...)
	assert.Error(t, err)
}

func TestInvalidInput(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, kvArgs(dir, "put", "small", "300", "--type", "u8")...)
	assert.Error(t, err)

	_, err = execute(t, kvArgs(dir, "put", "mac", "xyz", "--type", "blob")...)
	assert.Error(t, err)

	_, err = execute(t, kvArgs(dir, "put", "key", "1", "--type", "float")...)
	assert.Error(t, err)

	args := kvArgs(dir, "exists", "key")
	for i, a := range args {
		if a == "nvs" {
			args[i] = "floppy"
		}
	}
	_, err = execute(t, args...)
	assert.Error(t, err)
}

func TestBench(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "bench.csv")

	out, err := execute(t, kvArgs(dir, "bench",
		"--iterations", "10",
		"--keys", "4",
		"--skip", "i64,u64",
		"--csv", csvPath,
	)...)
	require.NoError(t, err)
	assert.Contains(t, out, "i64   skipped")
	assert.Contains(t, out, "blob  put")
	assert.NotContains(t, out, "failed operations")

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// header plus put and get for the eight measured types
	assert.Len(t, lines, 1+2*8)

	// bench removes its keys
	out, err = execute(t, kvArgs(dir, "exists", "__bstr_0")...)
	require.NoError(t, err)
	assert.Equal(t, "key=__bstr_0, found=false\n", out)
}
