package nav

import (
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/justyntemme/duopane/internal/model"
)

// ParseLocation interprets a user-typed path. "name:/rest" and "name:rest"
// address remote name ("favorites:" the favorites view, "local:" the host
// filesystem); anything else is local, with ~ expanded against home and
// relative paths resolved against the current local directory.
func ParseLocation(raw string, current model.Location, home string) model.Location {
	input := strings.TrimSpace(raw)
	if input == "" {
		return current
	}

	if name, rest, ok := splitRemote(input); ok {
		if name != model.LocalID {
			return model.Location{Backend: name, Path: cleanRemote(rest)}
		}
		if input = rest; input == "" {
			input = "~"
		}
	}
	return model.Location{Backend: model.LocalID, Path: expandLocal(input, current, home)}
}

// splitRemote recognizes the name: prefix. Drive letters stay local on Windows.
func splitRemote(input string) (name, rest string, ok bool) {
	i := strings.IndexByte(input, ':')
	if i <= 0 {
		return "", "", false
	}
	name = input[:i]
	if strings.ContainsAny(name, `/\~`) {
		return "", "", false
	}
	if runtime.GOOS == "windows" && len(name) == 1 && isLetter(name[0]) {
		return "", "", false
	}
	return name, input[i+1:], true
}

func cleanRemote(rel string) string {
	rel = strings.Trim(strings.ReplaceAll(rel, `\`, "/"), "/")
	if rel == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean("/"+rel), "/")
}

// expandLocal expands and normalizes a local path, handling:
// - ~ for home directory
// - Relative paths (../, ./)
// - Absolute paths
// - Windows drive letters (C:, D:, etc.)
func expandLocal(input string, current model.Location, home string) string {
	if input == "~" {
		return home
	}
	if strings.HasPrefix(input, "~/") || strings.HasPrefix(input, "~\\") {
		return filepath.Clean(filepath.Join(home, input[2:]))
	}

	if isAbsolutePath(input) {
		return filepath.Clean(input)
	}

	// Relative paths resolve against the current local directory, or home
	// when the pane is elsewhere.
	base := home
	if current.IsLocal() && current.Path != "" {
		base = current.Path
	}
	return filepath.Clean(filepath.Join(base, input))
}

// isAbsolutePath checks if a path is absolute, handling both Unix and Windows paths.
func isAbsolutePath(path string) bool {
	if len(path) == 0 {
		return false
	}

	// Unix absolute path
	if path[0] == '/' {
		return true
	}

	// Windows absolute path checks
	if runtime.GOOS == "windows" {
		// Drive letter paths: C:\, D:\, C:/, etc.
		if len(path) >= 2 && isLetter(path[0]) && path[1] == ':' {
			return true
		}
		// UNC paths: \\server\share
		if len(path) >= 2 && path[0] == '\\' && path[1] == '\\' {
			return true
		}
	}

	return false
}

// isLetter checks if a byte is an ASCII letter.
func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
