package toolkit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/launchkit/internal/errors"
)

// ToolType identifies one executable of the toolchain.
type ToolType int

const (
	// Tool is the command-line build tool.
	Tool ToolType = iota
	// ToolFast is the assert-free build of Tool.
	ToolFast
	// Guerilla is the tag editor.
	Guerilla
	// Sapien is the level editor.
	Sapien
	// Game is the game executable.
	Game
)

// String returns the configuration key of the tool.
func (t ToolType) String() string {
	switch t {
	case Tool:
		return "tool"
	case ToolFast:
		return "tool_fast"
	case Guerilla:
		return "guerilla"
	case Sapien:
		return "sapien"
	case Game:
		return "game"
	default:
		return fmt.Sprintf("tool(%d)", int(t))
	}
}

// Resolver maps a tool identity to an executable path.
type Resolver interface {
	Resolve(tool ToolType) (string, error)
}

// Profile is one installed toolchain: where it lives and which variant it is.
// A Profile is passed explicitly to everything that launches tools.
type Profile struct {
	Name    string
	BaseDir string
	Variant Variant
	Tools   map[ToolType]string
}

// Resolve returns the absolute path of tool. Relative paths are resolved
// against BaseDir. It returns a *errors.MissingExecutableError when the file
// does not exist or is a directory.
func (p Profile) Resolve(tool ToolType) (string, error) {
	rel, ok := p.Tools[tool]
	if !ok || rel == "" {
		return "", errors.NewProfileError(
			fmt.Sprintf("no path configured for %s", tool), errors.ErrUnsupportedTool,
		).WithProfile(p.Name).WithVariant(p.Variant.Name)
	}

	path := rel
	if !filepath.IsAbs(path) && p.BaseDir != "" {
		path = filepath.Join(p.BaseDir, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", errors.NewMissingExecutable(tool.String(), path).WithCause(err)
	}
	if info.IsDir() {
		return "", errors.NewMissingExecutable(tool.String(), path)
	}
	return path, nil
}

// WorkDir is the directory tools run in.
func (p Profile) WorkDir() string {
	return p.BaseDir
}
