package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arief/naia/pkg/provider"
)

func setupBuiltins(t *testing.T) (*Executor, string) {
	t.Helper()

	root := t.TempDir()
	e := NewExecutor()
	require.NoError(t, RegisterBuiltins(e, BuiltinOptions{WorkspaceRoot: root}))
	return e, root
}

func builtinCall(name, args string) provider.ToolCall {
	return provider.ToolCall{ID: "call_b", Name: name, Arguments: args}
}

func TestBuiltinReadFile(t *testing.T) {
	e, root := setupBuiltins(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "note.txt"), []byte("hello"), 0644))

	result, err := e.Execute(context.Background(), builtinCall("read_file", `{"path":"note.txt"}`), "s1", "m")
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestBuiltinReadFileMissing(t *testing.T) {
	e, _ := setupBuiltins(t)

	result, err := e.Execute(context.Background(), builtinCall("read_file", `{"path":"absent.txt"}`), "s1", "m")
	require.NoError(t, err)
	assert.Contains(t, result, "Error:")
}

func TestBuiltinWriteThenList(t *testing.T) {
	e, root := setupBuiltins(t)

	result, err := e.Execute(context.Background(), builtinCall("write_file", `{"path":"sub/out.txt","content":"data"}`), "s1", "m")
	require.NoError(t, err)
	assert.Contains(t, result, "wrote 4 bytes")

	listing, err := e.Execute(context.Background(), builtinCall("list_dir", `{"path":"sub"}`), "s1", "m")
	require.NoError(t, err)
	assert.Equal(t, "out.txt", listing)

	data, err := os.ReadFile(filepath.Join(root, "sub", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestBuiltinPathEscapeRejected(t *testing.T) {
	e, _ := setupBuiltins(t)

	for _, path := range []string{"../outside.txt", "/etc/passwd"} {
		result, err := e.Execute(context.Background(), builtinCall("read_file", `{"path":"`+path+`"}`), "s1", "m")
		require.NoError(t, err)
		assert.Contains(t, result, "Error:", "path %q", path)
	}
}

func TestBuiltinCurrentTime(t *testing.T) {
	e, _ := setupBuiltins(t)

	result, err := e.Execute(context.Background(), builtinCall("current_time", `{}`), "s1", "m")
	require.NoError(t, err)
	assert.NotEmpty(t, result)
}
