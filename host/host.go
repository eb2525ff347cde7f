// Package host defines the capability surface the editor integration must
// provide. The tools package programs against these interfaces; the bridge
// server receives an implementation at construction time. Fake provides an
// in-memory implementation for tests and standalone runs.
package host

import "context"

// Position is a zero-based row/column location in a buffer.
type Position struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Range is a half-open selection between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Match is a single search hit from Scan.
type Match struct {
	Path    string `json:"path"`
	Row     int    `json:"row"`
	Line    string `json:"line"`
	Matched string `json:"matched"`
}

// EditorInfo describes an open editor without exposing its buffer.
type EditorInfo struct {
	Path     string `json:"path"`
	Grammar  string `json:"grammar"`
	Modified bool   `json:"modified"`
	Active   bool   `json:"active"`
}

// Editor is a single open text buffer.
type Editor interface {
	GetText() string
	SetText(text string)
	InsertText(text string)
	GetSelection() string
	SetSelection(r Range)
	GetCursor() Position
	SetCursor(p Position)
	Save(ctx context.Context) error
	Path() string
	Grammar() string
	IsModified() bool
}

// Capabilities is the full editor surface the tool catalog operates on.
type Capabilities interface {
	// ActiveEditor returns the focused editor, or an error when none is open.
	ActiveEditor() (Editor, error)
	// OpenFile opens (or focuses) the file at path and returns its editor.
	OpenFile(ctx context.Context, path string) (Editor, error)
	// CloseFile closes the editor for path. Returns false when not open.
	CloseFile(path string) bool
	// OpenEditors lists all open editors.
	OpenEditors() []EditorInfo
	// ProjectPaths returns the workspace's root directories.
	ProjectPaths() []string
	// Scan searches the project for a regular expression.
	Scan(ctx context.Context, pattern string) ([]Match, error)
	// Replace substitutes pattern with replacement across paths (or the whole
	// project when paths is empty) and returns the replacement count.
	Replace(ctx context.Context, pattern, replacement string, paths []string) (int, error)
}
