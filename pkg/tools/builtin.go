package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const defaultReadLimit = 200_000

// BuiltinOptions configures the baseline tool set.
type BuiltinOptions struct {
	// WorkspaceRoot confines the filesystem tools. Paths are resolved
	// relative to it and may not escape it.
	WorkspaceRoot string
}

// RegisterBuiltins registers the baseline filesystem and runtime tools.
func RegisterBuiltins(executor *Executor, opts BuiltinOptions) error {
	if executor == nil {
		return fmt.Errorf("executor is required")
	}
	if opts.WorkspaceRoot == "" {
		opts.WorkspaceRoot = "."
	}

	defs := []Definition{
		readFileTool(opts),
		writeFileTool(opts),
		listDirTool(opts),
		currentTimeTool(),
	}
	for _, def := range defs {
		if err := executor.Register(def); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", def.Name, err)
		}
	}
	return nil
}

// resolveWorkspacePath joins rel onto the workspace root and rejects
// escapes.
func resolveWorkspacePath(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path must be relative to the workspace")
	}
	joined := filepath.Join(root, rel)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	if absJoined != absRoot && !strings.HasPrefix(absJoined, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the workspace: %s", rel)
	}
	return absJoined, nil
}

func readFileTool(opts BuiltinOptions) Definition {
	return Definition{
		Name:        "read_file",
		Description: "Read a text file from the workspace.",
		Parameters: []Parameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "max_bytes", Type: "number", Description: "Maximum bytes to read"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			rel, _ := params["path"].(string)
			path, err := resolveWorkspacePath(opts.WorkspaceRoot, rel)
			if err != nil {
				return nil, err
			}

			limit := defaultReadLimit
			if raw, ok := params["max_bytes"].(float64); ok && raw > 0 {
				limit = int(raw)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			if len(data) > limit {
				data = data[:limit]
			}
			return string(data), nil
		},
	}
}

func writeFileTool(opts BuiltinOptions) Definition {
	return Definition{
		Name:        "write_file",
		Description: "Write a text file inside the workspace, creating parent directories.",
		Parameters: []Parameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "content", Type: "string", Description: "File content", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			rel, _ := params["path"].(string)
			path, err := resolveWorkspacePath(opts.WorkspaceRoot, rel)
			if err != nil {
				return nil, err
			}
			content, _ := params["content"].(string)

			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return nil, err
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(content), rel), nil
		},
	}
}

func listDirTool(opts BuiltinOptions) Definition {
	return Definition{
		Name:        "list_dir",
		Description: "List the entries of a workspace directory.",
		Parameters: []Parameter{
			{Name: "path", Type: "string", Description: "Relative directory path", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			rel, _ := params["path"].(string)
			path, err := resolveWorkspacePath(opts.WorkspaceRoot, rel)
			if err != nil {
				return nil, err
			}

			entries, err := os.ReadDir(path)
			if err != nil {
				return nil, err
			}

			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				name := entry.Name()
				if entry.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			return strings.Join(names, "\n"), nil
		},
	}
}

func currentTimeTool() Definition {
	return Definition{
		Name:        "current_time",
		Description: "Return the current date and time.",
		Parameters:  []Parameter{},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return time.Now().Format(time.RFC1123), nil
		},
	}
}
