package host

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ErrNoActiveEditor is returned when no editor has focus.
var ErrNoActiveEditor = errors.New("no active editor")

// Fake is an in-memory Capabilities implementation. It treats a map of
// path → buffer text as the "workspace"; opening a file that was never
// seeded creates an empty buffer. Safe for concurrent use.
type Fake struct {
	mu       sync.Mutex
	editors  map[string]*FakeEditor
	active   string
	projects []string
	saved    map[string]string // last saved content per path
}

// NewFake creates a Fake workspace rooted at the given project paths.
func NewFake(projectPaths ...string) *Fake {
	return &Fake{
		editors:  make(map[string]*FakeEditor),
		projects: projectPaths,
		saved:    make(map[string]string),
	}
}

// Seed opens a buffer with initial content and makes it active.
func (f *Fake) Seed(path, text string) *FakeEditor {
	f.mu.Lock()
	defer f.mu.Unlock()

	ed := newFakeEditor(f, path, text)
	f.editors[path] = ed
	f.active = path
	return ed
}

func (f *Fake) ActiveEditor() (Editor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.active == "" {
		return nil, ErrNoActiveEditor
	}
	ed, ok := f.editors[f.active]
	if !ok {
		return nil, ErrNoActiveEditor
	}
	return ed, nil
}

func (f *Fake) OpenFile(ctx context.Context, path string) (Editor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ed, ok := f.editors[path]
	if !ok {
		ed = newFakeEditor(f, path, "")
		f.editors[path] = ed
	}
	f.active = path
	return ed, nil
}

func (f *Fake) CloseFile(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.editors[path]; !ok {
		return false
	}
	delete(f.editors, path)
	if f.active == path {
		f.active = ""
	}
	return true
}

func (f *Fake) OpenEditors() []EditorInfo {
	f.mu.Lock()
	defer f.mu.Unlock()

	paths := make([]string, 0, len(f.editors))
	for p := range f.editors {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	infos := make([]EditorInfo, 0, len(paths))
	for _, p := range paths {
		ed := f.editors[p]
		infos = append(infos, EditorInfo{
			Path:     p,
			Grammar:  ed.grammar,
			Modified: ed.modified,
			Active:   p == f.active,
		})
	}
	return infos
}

func (f *Fake) ProjectPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.projects))
	copy(out, f.projects)
	return out
}

func (f *Fake) Scan(ctx context.Context, pattern string) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	paths := make([]string, 0, len(f.editors))
	for p := range f.editors {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var matches []Match
	for _, p := range paths {
		lines := strings.Split(f.editors[p].text, "\n")
		for row, line := range lines {
			if loc := re.FindString(line); loc != "" {
				matches = append(matches, Match{
					Path:    p,
					Row:     row,
					Line:    line,
					Matched: loc,
				})
			}
		}
	}
	return matches, nil
}

func (f *Fake) Replace(ctx context.Context, pattern, replacement string, paths []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid pattern: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	target := make(map[string]bool)
	for _, p := range paths {
		target[p] = true
	}

	count := 0
	for p, ed := range f.editors {
		if len(target) > 0 && !target[p] {
			continue
		}
		hits := len(re.FindAllString(ed.text, -1))
		if hits == 0 {
			continue
		}
		ed.text = re.ReplaceAllString(ed.text, replacement)
		ed.modified = true
		count += hits
	}
	return count, nil
}

// FakeEditor is the in-memory Editor backing a Fake workspace.
type FakeEditor struct {
	host      *Fake
	path      string
	grammar   string
	text      string
	cursor    Position
	selection Range
	modified  bool
}

func newFakeEditor(f *Fake, path, text string) *FakeEditor {
	return &FakeEditor{
		host:    f,
		path:    path,
		grammar: grammarForPath(path),
		text:    text,
	}
}

// grammarForPath guesses a grammar name from the file extension.
func grammarForPath(path string) string {
	switch filepath.Ext(path) {
	case ".go":
		return "Go"
	case ".js":
		return "JavaScript"
	case ".ts":
		return "TypeScript"
	case ".py":
		return "Python"
	case ".md":
		return "Markdown"
	case ".json":
		return "JSON"
	case ".yaml", ".yml":
		return "YAML"
	default:
		return "Plain Text"
	}
}

func (e *FakeEditor) GetText() string {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	return e.text
}

func (e *FakeEditor) SetText(text string) {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	e.text = text
	e.modified = true
}

// InsertText inserts at the cursor position and advances the cursor past
// the inserted text.
func (e *FakeEditor) InsertText(text string) {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()

	off := e.offsetOf(e.cursor)
	e.text = e.text[:off] + text + e.text[off:]
	e.cursor = e.positionOf(off + len(text))
	e.modified = true
}

func (e *FakeEditor) GetSelection() string {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()

	start := e.offsetOf(e.selection.Start)
	end := e.offsetOf(e.selection.End)
	if start > end {
		start, end = end, start
	}
	return e.text[start:end]
}

func (e *FakeEditor) SetSelection(r Range) {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	e.selection = r
	e.cursor = r.End
}

func (e *FakeEditor) GetCursor() Position {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	return e.cursor
}

func (e *FakeEditor) SetCursor(p Position) {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	e.cursor = p
	e.selection = Range{Start: p, End: p}
}

func (e *FakeEditor) Save(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	e.host.saved[e.path] = e.text
	e.modified = false
	return nil
}

func (e *FakeEditor) Path() string {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	return e.path
}

func (e *FakeEditor) Grammar() string {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	return e.grammar
}

func (e *FakeEditor) IsModified() bool {
	e.host.mu.Lock()
	defer e.host.mu.Unlock()
	return e.modified
}

// SavedContent returns the last saved text for path, for test assertions.
func (f *Fake) SavedContent(path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.saved[path]
	return text, ok
}

// offsetOf converts a row/column position to a byte offset, clamping
// out-of-range positions to the nearest valid location.
// Caller must hold host.mu.
func (e *FakeEditor) offsetOf(p Position) int {
	if p.Row < 0 {
		return 0
	}
	lines := strings.Split(e.text, "\n")
	if p.Row >= len(lines) {
		return len(e.text)
	}
	off := 0
	for i := 0; i < p.Row; i++ {
		off += len(lines[i]) + 1
	}
	col := p.Column
	if col < 0 {
		col = 0
	}
	if col > len(lines[p.Row]) {
		col = len(lines[p.Row])
	}
	return off + col
}

// positionOf converts a byte offset back to a row/column position.
// Caller must hold host.mu.
func (e *FakeEditor) positionOf(off int) Position {
	if off < 0 {
		off = 0
	}
	if off > len(e.text) {
		off = len(e.text)
	}
	prefix := e.text[:off]
	row := strings.Count(prefix, "\n")
	lastNL := strings.LastIndexByte(prefix, '\n')
	col := off - lastNL - 1
	return Position{Row: row, Column: col}
}
