// Package filetool implements the file-edit contract stages use to change
// a project's source tree: whole-file read/write, line-range read/replace,
// line insertion, and line-range deletion, all 1-indexed and inclusive.
// Ported from tactile.FileEditor, with audit/fact-injection dropped (no
// Datalog kernel in this system) and writes made atomic via a temp-file
// rename (internal/artifact.Store's pattern) instead of a direct
// os.WriteFile, so a crash mid-write never leaves a half-written source
// file.
package filetool

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Result describes the outcome of a write/edit/insert/delete call, with
// enough of the before/after state for a caller to build a diff or undo.
type Result struct {
	Path          string
	LinesAffected int
	OldContent    []string
	NewContent    []string
	LineCount     int
}

// Editor resolves relative paths against a fixed working directory, the
// code checkout of the iteration currently being worked on.
type Editor struct {
	workingDir string
}

// NewEditor returns an Editor rooted at workingDir.
func NewEditor(workingDir string) *Editor {
	return &Editor{workingDir: workingDir}
}

func (e *Editor) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.workingDir, path)
}

// ReadFile returns path's content split into lines, without trailing
// newlines.
func (e *Editor) ReadFile(path string) ([]string, error) {
	f, err := os.Open(e.resolve(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// ReadLines returns the 1-indexed, inclusive range [startLine, endLine],
// clamped to the file's bounds. An empty/inverted range returns no error
// and no lines.
func (e *Editor) ReadLines(path string, startLine, endLine int) ([]string, error) {
	lines, err := e.ReadFile(path)
	if err != nil {
		return nil, err
	}
	startLine, endLine = clampRange(startLine, endLine, len(lines))
	if startLine > endLine {
		return []string{}, nil
	}
	return lines[startLine-1 : endLine], nil
}

// WriteFile replaces path's entire content with lines, creating parent
// directories as needed. The write is atomic: a crash mid-write leaves the
// original file untouched.
func (e *Editor) WriteFile(path string, lines []string) (*Result, error) {
	absPath := e.resolve(path)
	oldContent, _ := e.ReadFile(path)

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, err
	}

	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}

	if err := atomicWrite(absPath, []byte(content)); err != nil {
		return nil, err
	}

	return &Result{
		Path:          path,
		LinesAffected: len(lines),
		OldContent:    oldContent,
		NewContent:    lines,
		LineCount:     len(lines),
	}, nil
}

// EditLines replaces the 1-indexed, inclusive range [startLine, endLine]
// with newLines.
func (e *Editor) EditLines(path string, startLine, endLine int, newLines []string) (*Result, error) {
	lines, err := e.ReadFile(path)
	if err != nil {
		return nil, err
	}
	startLine, endLine = clampRange(startLine, endLine, len(lines))

	var oldContent []string
	if startLine <= len(lines) && endLine >= startLine {
		oldContent = append([]string{}, lines[startLine-1:endLine]...)
	}

	result := append([]string{}, lines[:startLine-1]...)
	result = append(result, newLines...)
	if endLine < len(lines) {
		result = append(result, lines[endLine:]...)
	}

	if _, err := e.WriteFile(path, result); err != nil {
		return nil, err
	}

	affected := len(oldContent)
	if len(newLines) > affected {
		affected = len(newLines)
	}

	return &Result{
		Path:          path,
		LinesAffected: affected,
		OldContent:    oldContent,
		NewContent:    newLines,
		LineCount:     len(result),
	}, nil
}

// InsertLines inserts newLines immediately after afterLine (0 inserts at
// the top of the file). If path does not exist, it is created with
// newLines as its entire content.
func (e *Editor) InsertLines(path string, afterLine int, newLines []string) (*Result, error) {
	lines, err := e.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return e.WriteFile(path, newLines)
		}
		return nil, err
	}

	if afterLine < 0 {
		afterLine = 0
	}
	if afterLine > len(lines) {
		afterLine = len(lines)
	}

	result := append([]string{}, lines[:afterLine]...)
	result = append(result, newLines...)
	result = append(result, lines[afterLine:]...)

	if _, err := e.WriteFile(path, result); err != nil {
		return nil, err
	}

	return &Result{
		Path:          path,
		LinesAffected: len(newLines),
		NewContent:    newLines,
		LineCount:     len(result),
	}, nil
}

// DeleteLines removes the 1-indexed, inclusive range [startLine, endLine].
func (e *Editor) DeleteLines(path string, startLine, endLine int) (*Result, error) {
	lines, err := e.ReadFile(path)
	if err != nil {
		return nil, err
	}
	startLine, endLine = clampRange(startLine, endLine, len(lines))
	if startLine > endLine {
		return &Result{Path: path, LineCount: len(lines)}, nil
	}

	oldContent := append([]string{}, lines[startLine-1:endLine]...)
	result := append([]string{}, lines[:startLine-1]...)
	result = append(result, lines[endLine:]...)

	if _, err := e.WriteFile(path, result); err != nil {
		return nil, err
	}

	return &Result{
		Path:          path,
		LinesAffected: len(oldContent),
		OldContent:    oldContent,
		LineCount:     len(result),
	}, nil
}

// FileExists reports whether path resolves to a regular file.
func (e *Editor) FileExists(path string) bool {
	info, err := os.Stat(e.resolve(path))
	return err == nil && !info.IsDir()
}

func clampRange(startLine, endLine, length int) (int, int) {
	if startLine < 1 {
		startLine = 1
	}
	if endLine > length {
		endLine = length
	}
	return startLine, endLine
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".filetool-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
