package tools

import (
	"context"
	"fmt"

	"github.com/asiloisad/pulsar-claude-chat/host"
)

// Argument coercion helpers. Tool arguments arrive from encoding/json, so
// numbers are float64 and arrays are []any; validators have already checked
// the shapes before these run.

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func argInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func argStrings(args map[string]any, key string) []string {
	raw, _ := args[key].([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// registerCatalog installs the editor tool catalog. All row/column values
// are zero-based.
func (r *Registry) registerCatalog() {
	r.register(
		Definition{
			Name:        "get_text",
			Description: "Get the full text of the active editor",
			InputSchema: InputSchema{Type: "object"},
		},
		nil,
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			ed, err := caps.ActiveEditor()
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"path":    ed.Path(),
				"grammar": ed.Grammar(),
				"text":    ed.GetText(),
			}, nil
		},
		nil,
	)

	r.register(
		Definition{
			Name:        "set_text",
			Description: "Replace the full text of the active editor",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"text": {Type: "string", Description: "New buffer content"},
				},
				Required: []string{"text"},
			},
		},
		[]FieldRule{{Field: "text", Check: String}},
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			ed, err := caps.ActiveEditor()
			if err != nil {
				return nil, err
			}
			ed.SetText(argString(args, "text"))
			return map[string]any{"path": ed.Path()}, nil
		},
		nil,
	)

	r.register(
		Definition{
			Name:        "insert_text",
			Description: "Insert text into the active editor",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"text": {Type: "string", Description: "Text to insert"},
					"where": {
						Type:        "string",
						Description: "Insertion point: at the cursor (default), or at the start or end of the buffer",
						Enum:        []string{"cursor", "start", "end"},
					},
				},
				Required: []string{"text"},
			},
		},
		[]FieldRule{
			{Field: "text", Check: String},
			{Field: "where", Check: Enum("cursor", "start", "end")},
		},
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			ed, err := caps.ActiveEditor()
			if err != nil {
				return nil, err
			}
			text := argString(args, "text")
			switch argString(args, "where") {
			case "start":
				ed.SetText(text + ed.GetText())
			case "end":
				ed.SetText(ed.GetText() + text)
			default:
				ed.InsertText(text)
			}
			cursor := ed.GetCursor()
			return map[string]any{"row": cursor.Row, "column": cursor.Column}, nil
		},
		nil,
	)

	r.register(
		Definition{
			Name:        "get_selection",
			Description: "Get the selected text of the active editor",
			InputSchema: InputSchema{Type: "object"},
		},
		nil,
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			ed, err := caps.ActiveEditor()
			if err != nil {
				return nil, err
			}
			return map[string]any{"text": ed.GetSelection()}, nil
		},
		nil,
	)

	r.register(
		Definition{
			Name:        "set_selection",
			Description: "Select a range in the active editor (zero-based rows and columns)",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"start_row":    {Type: "number", Description: "Zero-based start row"},
					"start_column": {Type: "number", Description: "Zero-based start column"},
					"end_row":      {Type: "number", Description: "Zero-based end row"},
					"end_column":   {Type: "number", Description: "Zero-based end column"},
				},
				Required: []string{"start_row", "start_column", "end_row", "end_column"},
			},
		},
		[]FieldRule{
			{Field: "start_row", Check: Number},
			{Field: "start_column", Check: Number},
			{Field: "end_row", Check: Number},
			{Field: "end_column", Check: Number},
		},
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			ed, err := caps.ActiveEditor()
			if err != nil {
				return nil, err
			}
			ed.SetSelection(host.Range{
				Start: host.Position{Row: argInt(args, "start_row"), Column: argInt(args, "start_column")},
				End:   host.Position{Row: argInt(args, "end_row"), Column: argInt(args, "end_column")},
			})
			return map[string]any{"text": ed.GetSelection()}, nil
		},
		nil,
	)

	r.register(
		Definition{
			Name:        "get_cursor",
			Description: "Get the cursor position of the active editor (zero-based)",
			InputSchema: InputSchema{Type: "object"},
		},
		nil,
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			ed, err := caps.ActiveEditor()
			if err != nil {
				return nil, err
			}
			cursor := ed.GetCursor()
			return map[string]any{"row": cursor.Row, "column": cursor.Column}, nil
		},
		nil,
	)

	r.register(
		Definition{
			Name:        "set_cursor",
			Description: "Move the cursor of the active editor (zero-based row and column)",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"row":    {Type: "number", Description: "Zero-based row"},
					"column": {Type: "number", Description: "Zero-based column"},
				},
				Required: []string{"row", "column"},
			},
		},
		[]FieldRule{
			{Field: "row", Check: Number},
			{Field: "column", Check: Number},
		},
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			ed, err := caps.ActiveEditor()
			if err != nil {
				return nil, err
			}
			ed.SetCursor(host.Position{Row: argInt(args, "row"), Column: argInt(args, "column")})
			return map[string]any{"row": argInt(args, "row"), "column": argInt(args, "column")}, nil
		},
		nil,
	)

	r.register(
		Definition{
			Name:        "save_file",
			Description: "Save the active editor to disk",
			InputSchema: InputSchema{Type: "object"},
		},
		nil,
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			ed, err := caps.ActiveEditor()
			if err != nil {
				return nil, err
			}
			if err := ed.Save(ctx); err != nil {
				return nil, fmt.Errorf("save failed: %w", err)
			}
			return map[string]any{"path": ed.Path()}, nil
		},
		nil,
	)

	r.register(
		Definition{
			Name:        "open_file",
			Description: "Open a file in the editor and focus it",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"path": {Type: "string", Description: "Path of the file to open"},
				},
				Required: []string{"path"},
			},
		},
		[]FieldRule{{Field: "path", Check: String}},
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			ed, err := caps.OpenFile(ctx, argString(args, "path"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"path": ed.Path(), "grammar": ed.Grammar()}, nil
		},
		nil,
	)

	r.register(
		Definition{
			Name:        "close_file",
			Description: "Close the editor for a file",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"path": {Type: "string", Description: "Path of the file to close"},
				},
				Required: []string{"path"},
			},
		},
		[]FieldRule{{Field: "path", Check: String}},
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			path := argString(args, "path")
			if !caps.CloseFile(path) {
				return nil, fmt.Errorf("file not open: %s", path)
			}
			return map[string]any{"path": path}, nil
		},
		nil,
	)

	r.register(
		Definition{
			Name:        "list_open_files",
			Description: "List all open editors",
			InputSchema: InputSchema{Type: "object"},
		},
		nil,
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			return caps.OpenEditors(), nil
		},
		func(data any) any {
			infos := data.([]host.EditorInfo)
			return map[string]any{"files": infos, "count": len(infos)}
		},
	)

	r.register(
		Definition{
			Name:        "get_project_paths",
			Description: "List the project root directories",
			InputSchema: InputSchema{Type: "object"},
		},
		nil,
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			return caps.ProjectPaths(), nil
		},
		func(data any) any {
			paths := data.([]string)
			return map[string]any{"paths": paths, "count": len(paths)}
		},
	)

	r.register(
		Definition{
			Name:        "find_in_project",
			Description: "Search the project for a regular expression",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"pattern": {Type: "string", Description: "Regular expression to search for"},
				},
				Required: []string{"pattern"},
			},
		},
		[]FieldRule{{Field: "pattern", Check: String}},
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			return caps.Scan(ctx, argString(args, "pattern"))
		},
		func(data any) any {
			matches := data.([]host.Match)
			return map[string]any{"matches": matches, "count": len(matches)}
		},
	)

	r.register(
		Definition{
			Name:        "replace_in_project",
			Description: "Replace a regular expression across the project or specific files",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"pattern":     {Type: "string", Description: "Regular expression to replace"},
					"replacement": {Type: "string", Description: "Replacement text"},
					"paths":       {Type: "array", Description: "Optional file paths to scope the replacement"},
				},
				Required: []string{"pattern", "replacement"},
			},
		},
		[]FieldRule{
			{Field: "pattern", Check: String},
			{Field: "replacement", Check: String},
			{Field: "paths", Check: Array},
		},
		func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error) {
			count, err := caps.Replace(ctx, argString(args, "pattern"), argString(args, "replacement"), argStrings(args, "paths"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"replacements": count}, nil
		},
		nil,
	)
}
