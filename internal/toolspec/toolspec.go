// Package toolspec implements the tool registry: an indexed, immutable set
// of tool descriptors plus schema-backed argument validation and shaping.
package toolspec

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/relayrun/convorch/internal/trajectory"
)

// Kind discriminates how a tool is invoked. It replaces the source's boolean
// "is_mcp" class variable with a proper sum type.
type Kind int

const (
	// Local tools execute in-process inside the tool activity.
	Local Kind = iota
	// Remote tools are invoked through the remote tool client pool.
	Remote
)

func (k Kind) String() string {
	if k == Remote {
		return "remote"
	}
	return "local"
}

// Descriptor describes one registered tool.
type Descriptor struct {
	Name        string
	Description string
	// ArgsSchema is a JSON Schema document (as a Go value, e.g. produced by
	// json.Unmarshal into map[string]any, or a json.RawMessage) describing
	// the tool's arguments.
	ArgsSchema any
	Kind        Kind
	// ServerToolName is the tool's name as advertised by the remote tool
	// server, which may differ from Name. Only meaningful for Remote tools;
	// the naming policy (direct vs. proxy-prefixed) is applied by the pool,
	// not stored here.
	ServerToolName string
	// ServerNamespace identifies which tool-server endpoint hosts this tool,
	// used by the pool's proxy-mode naming rule. Only meaningful for Remote.
	ServerNamespace string
}

// DuplicateToolError is returned by Register when a tool with the same name
// already exists.
type DuplicateToolError struct{ Name string }

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("toolspec: duplicate tool %q", e.Name)
}

// ReservedNameError is returned by Register for the reserved "finish" name.
type ReservedNameError struct{ Name string }

func (e *ReservedNameError) Error() string {
	return fmt.Sprintf("toolspec: %q is a reserved name and cannot be registered", e.Name)
}

// NotFoundError is returned by Get for an unregistered tool name.
type NotFoundError struct{ Name string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("toolspec: tool %q not found", e.Name)
}

// ValidationError carries field-level detail about an argument-shaping
// failure. Dropped is the set of keys that were silently discarded because
// they are not part of the schema (the "hallucination defense" policy);
// it is surfaced so callers can log a warning, not as part of the error.
type ValidationError struct {
	Tool    string
	Message string
	Dropped []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("toolspec: invalid arguments for %q: %s", e.Tool, e.Message)
}

// CatalogEntry is the summary form of a Descriptor handed to the reasoner.
type CatalogEntry struct {
	Name              string
	Description       string
	ArgsSchemaSummary string
}

// Registry is an indexed set of tool descriptors. It is populated once
// before use and never mutated afterward; concurrent reads require no
// locking (§4.2 invariant).
type Registry struct {
	order   []string
	byName  map[string]Descriptor
	schemas map[string]*jsonschema.Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]Descriptor),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a descriptor to the registry.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == trajectory.Finish {
		return &ReservedNameError{Name: d.Name}
	}
	if _, exists := r.byName[d.Name]; exists {
		return &DuplicateToolError{Name: d.Name}
	}
	compiled, err := compileSchema(d.Name, d.ArgsSchema)
	if err != nil {
		return fmt.Errorf("toolspec: compile schema for %q: %w", d.Name, err)
	}
	r.byName[d.Name] = d
	r.schemas[d.Name] = compiled
	r.order = append(r.order, d.Name)
	return nil
}

// Get looks up a descriptor by name.
func (r *Registry) Get(name string) (Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, &NotFoundError{Name: name}
	}
	return d, nil
}

// ListForReasoner returns the catalog in stable, insertion order.
func (r *Registry) ListForReasoner() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(r.order))
	for _, name := range r.order {
		d := r.byName[name]
		out = append(out, CatalogEntry{
			Name:              d.Name,
			Description:       d.Description,
			ArgsSchemaSummary: summarizeSchema(d.ArgsSchema),
		})
	}
	return out
}

// ValidateAndShape applies the named tool's schema to raw arguments: it
// coerces numeric strings to numbers where the schema demands a number,
// fills schema defaults, and drops keys absent from the schema. It returns
// the shaped arguments and the set of dropped keys (for warning-level
// logging only, never as a reason to fail).
func (r *Registry) ValidateAndShape(name string, raw map[string]any) (map[string]any, []string, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, nil, &NotFoundError{Name: name}
	}
	schema := r.schemas[name]
	allowed := schemaProperties(d.ArgsSchema)
	required := schemaRequired(d.ArgsSchema)
	defaults := schemaDefaults(d.ArgsSchema)
	types := schemaTypes(d.ArgsSchema)

	shaped := make(map[string]any, len(raw))
	var dropped []string
	for k, v := range raw {
		if allowed != nil && !allowed[k] {
			dropped = append(dropped, k)
			continue
		}
		shaped[k] = coerce(v, types[k])
	}
	for k, def := range defaults {
		if _, present := shaped[k]; !present {
			shaped[k] = normalizeDefault(def, types[k])
		}
	}
	for _, k := range required {
		if _, present := shaped[k]; !present {
			return nil, dropped, &ValidationError{
				Tool:    name,
				Message: fmt.Sprintf("missing required field %q", k),
				Dropped: dropped,
			}
		}
	}
	if schema != nil {
		if err := schema.Validate(toValidatable(shaped)); err != nil {
			return nil, dropped, &ValidationError{Tool: name, Message: err.Error(), Dropped: dropped}
		}
	}
	sort.Strings(dropped)
	return shaped, dropped, nil
}

func compileSchema(name string, schemaDoc any) (*jsonschema.Schema, error) {
	if schemaDoc == nil {
		return nil, nil
	}
	doc, err := toSchemaDoc(schemaDoc)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	resource := "toolspec://" + name
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(resource)
}

// toSchemaDoc normalizes a schema supplied as json.RawMessage, a string, or
// an already-decoded Go value into the any-typed document jsonschema/v6
// expects from AddResource.
func toSchemaDoc(schemaDoc any) (any, error) {
	switch v := schemaDoc.(type) {
	case json.RawMessage:
		var doc any
		if err := json.Unmarshal(v, &doc); err != nil {
			return nil, err
		}
		return doc, nil
	case string:
		var doc any
		if err := json.Unmarshal([]byte(v), &doc); err != nil {
			return nil, err
		}
		return doc, nil
	default:
		return v, nil
	}
}

func toValidatable(m map[string]any) any {
	data, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return m
	}
	return doc
}

func schemaMap(schemaDoc any) map[string]any {
	doc, err := toSchemaDoc(schemaDoc)
	if err != nil {
		return nil
	}
	m, _ := doc.(map[string]any)
	return m
}

func schemaProperties(schemaDoc any) map[string]bool {
	m := schemaMap(schemaDoc)
	if m == nil {
		return nil
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(props))
	for k := range props {
		out[k] = true
	}
	return out
}

func schemaRequired(schemaDoc any) []string {
	m := schemaMap(schemaDoc)
	if m == nil {
		return nil
	}
	req, ok := m["required"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(req))
	for _, r := range req {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func schemaDefaults(schemaDoc any) map[string]any {
	m := schemaMap(schemaDoc)
	if m == nil {
		return nil
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]any)
	for k, v := range props {
		pm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if def, ok := pm["default"]; ok {
			out[k] = def
		}
	}
	return out
}

func schemaTypes(schemaDoc any) map[string]string {
	m := schemaMap(schemaDoc)
	if m == nil {
		return nil
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		pm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := pm["type"].(string); ok {
			out[k] = t
		}
	}
	return out
}

// coerce converts a numeric string into a float64/int when the schema
// declares the field as "number" or "integer", satisfying the spec's
// "numeric strings → numbers where the schema demands" requirement.
func coerce(v any, schemaType string) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch schemaType {
	case "integer":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "number":
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	case "boolean":
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return v
}

// normalizeDefault converts a JSON-decoded default value (numbers always
// arrive as float64) into the Go type callers of an "integer" schema field
// expect, so defaulted and explicitly-coerced values are interchangeable.
func normalizeDefault(def any, schemaType string) any {
	if schemaType == "integer" {
		if f, ok := def.(float64); ok {
			return int64(f)
		}
	}
	return def
}

func summarizeSchema(schemaDoc any) string {
	m := schemaMap(schemaDoc)
	if m == nil {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}
