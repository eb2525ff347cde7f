// Package tools implements the editor tool catalog: a declarative registry
// of tool definitions with per-field validation, execution against the host
// capability surface, and result formatting. The bridge server dispatches
// MCP and REST tool calls through a Registry; every tool is also directly
// callable without any HTTP layer in between.
package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/asiloisad/pulsar-claude-chat/host"
)

// Definition describes a tool to MCP clients.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema represents the JSON schema for tool input
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property represents a property in the input schema
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// Result is the uniform envelope every tool call resolves to.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler executes a tool against the host capabilities.
type Handler func(ctx context.Context, caps host.Capabilities, args map[string]any) (any, error)

// Formatter reshapes a successful handler result before it is returned.
type Formatter func(data any) any

// FieldRule pairs an argument name with its validator. Rules run in
// declared order; the first failure aborts the call.
type FieldRule struct {
	Field string
	Check Validator
}

type entry struct {
	def    Definition
	rules  []FieldRule
	impl   Handler
	format Formatter
}

// Registry holds the tool catalog and the capabilities they run against.
type Registry struct {
	caps    host.Capabilities
	entries map[string]*entry
	order   []string
}

// NewRegistry creates a registry with the full editor tool catalog bound to
// the given capabilities.
func NewRegistry(caps host.Capabilities) *Registry {
	r := &Registry{
		caps:    caps,
		entries: make(map[string]*entry),
	}
	r.registerCatalog()
	return r
}

// register adds a tool. Panics on duplicate names; the catalog is static and
// a duplicate is a programming error caught by any test run.
func (r *Registry) register(def Definition, rules []FieldRule, impl Handler, format Formatter) {
	if _, exists := r.entries[def.Name]; exists {
		panic(fmt.Sprintf("duplicate tool registration: %s", def.Name))
	}
	r.entries[def.Name] = &entry{def: def, rules: rules, impl: impl, format: format}
	r.order = append(r.order, def.Name)
}

// Definitions returns the catalog in registration order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.entries[name].def)
	}
	return defs
}

// Names returns the sorted tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a tool with the given name exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Call validates args and executes the named tool. Tool-level failures are
// reported in the Result envelope, never as a Go error: the caller always
// gets a well-formed Result.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) Result {
	e, ok := r.entries[name]
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("unknown tool: %s", name)}
	}

	if args == nil {
		args = map[string]any{}
	}

	for _, required := range e.def.InputSchema.Required {
		if _, present := args[required]; !present {
			return Result{Success: false, Error: fmt.Sprintf("invalid %s: missing required argument", required)}
		}
	}

	for _, rule := range e.rules {
		value, present := args[rule.Field]
		if !present {
			continue
		}
		if reason := rule.Check(value); reason != "" {
			return Result{Success: false, Error: fmt.Sprintf("invalid %s: %s", rule.Field, reason)}
		}
	}

	data, err := e.impl(ctx, r.caps, args)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}

	if e.format != nil {
		data = e.format(data)
	}
	return Result{Success: true, Data: data}
}
