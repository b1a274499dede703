// Package schema is the framework's schema introspector. Go has no
// runtime parameter-name introspection, so a tool's inputSchema is
// derived from a builder supplied at registration time rather than by
// reflecting over a callable's parameters. The builder is the only
// place a param list is assembled, so it stays the single source of
// truth for both the wire-level schema and the argument-binding order
// the dispatcher uses at call time.
package schema

// Type is a JSON-Schema-ish primitive type.
type Type string

const (
	TypeString   Type = "string"
	TypeNumber   Type = "number"
	TypeInteger  Type = "integer"
	TypeBoolean  Type = "boolean"
	TypeArray    Type = "array"
	TypeObject   Type = "object"
	TypeAny      Type = ""
	TypeDateTime Type = "date-time"
)

// Context is the marker type a callable declares a parameter as when
// it wants the framework to inject a per-call CallContext instead of
// binding it from client arguments. The Schema Introspector omits any
// parameter carrying this marker from the emitted inputSchema.
type Context struct{}

// Param describes one declared parameter of a tool, prompt, or
// resource-template handler.
type Param struct {
	Name        string
	Type        Type
	Description string
	Required    bool
	Nullable    bool
	Default     any
	HasDefault  bool
	Enum        []string
	IsContext   bool
	// Union holds additional member types for a declared union
	// parameter (T | U | ...); Type holds the first member.
	Union []Type
}

// Option mutates a Param during registration.
type Option func(*Param)

// Required marks the parameter as required (the default for a Param
// with no default value and not explicitly nullable).
func Required() Option {
	return func(p *Param) { p.Required = true }
}

// Optional marks the parameter as not required without supplying a
// default — when the caller omits the argument, the dispatcher leaves
// it out of the bound arguments instead of failing the call.
func Optional() Option {
	return func(p *Param) { p.Required = false }
}

// Nullable marks the parameter as accepting null / being absent,
// which both excludes it from the emitted "required" list and lets
// argument binding fall back to a null value.
func Nullable() Option {
	return func(p *Param) {
		p.Nullable = true
		p.Required = false
	}
}

// Default supplies a default value used when the caller omits the
// argument; it implies the parameter is not required.
func Default(v any) Option {
	return func(p *Param) {
		p.Default = v
		p.HasDefault = true
		p.Required = false
	}
}

// Describe attaches a human-readable description to the parameter.
func Describe(text string) Option {
	return func(p *Param) { p.Description = text }
}

// Enum restricts the parameter to one of the given string values.
func Enum(values ...string) Option {
	return func(p *Param) { p.Enum = values }
}

// UnionWith records additional member types for a union-typed
// parameter, e.g. schema.UnionWith(schema.TypeNull) for "T | null".
func UnionWith(types ...Type) Option {
	return func(p *Param) { p.Union = append(p.Union, types...) }
}

// TypeNull is used only inside Union declarations; it is never a
// parameter's primary Type.
const TypeNull Type = "null"

// Builder accumulates an ordered parameter list for a tool, prompt,
// or resource-template handler. Build produces both the wire-level
// InputSchema and the Param list the dispatcher uses to bind
// arguments in declaration order.
type Builder struct {
	description string
	params      []Param
}

// NewBuilder starts a new parameter builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Describe sets the function-level description harvested for the
// schema's own "description" (not emitted today, but tracked so a
// future wire extension has somewhere to read it from).
func (b *Builder) Describe(text string) *Builder {
	b.description = text
	return b
}

// Param declares a user-facing parameter.
func (b *Builder) Param(name string, t Type, opts ...Option) *Builder {
	p := Param{Name: name, Type: t, Required: true}
	for _, opt := range opts {
		opt(&p)
	}
	b.params = append(b.params, p)
	return b
}

// ContextParam declares a parameter that the dispatcher fills with
// the per-call CallContext rather than a client argument. It is
// omitted entirely from the emitted inputSchema.
func (b *Builder) ContextParam(name string) *Builder {
	b.params = append(b.params, Param{Name: name, IsContext: true})
	return b
}

// Params returns the ordered parameter list the builder has
// accumulated, for callers (e.g. argument binders) that need the
// declaration beyond the wire schema.
func (b *Builder) Params() []Param {
	return append([]Param(nil), b.params...)
}

// InputSchema is the wire-level JSON-Schema-like descriptor a Tool
// carries: {type:"object", properties, required}.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property is one entry of InputSchema.Properties. Type is either a
// string or, for a multi-member union, a []string — json.Marshal
// handles both via the any field.
type Property struct {
	Type        any      `json:"type,omitempty"`
	Format      string   `json:"format,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Build derives the InputSchema from the accumulated parameter list:
// context params are omitted, primitive types map directly,
// enumerations become {enum:[...]}, date-times become {type:"string",
// format:"date-time"}, and a parameter is included in "required"
// unless it is marked Optional, has a default, or is nullable.
func (b *Builder) Build() InputSchema {
	s := InputSchema{Type: "object"}
	for _, p := range b.params {
		if p.IsContext {
			continue
		}
		if s.Properties == nil {
			s.Properties = map[string]Property{}
		}
		s.Properties[p.Name] = p.toProperty()
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

func (p Param) toProperty() Property {
	prop := Property{Description: p.Description}

	// An enumeration is emitted as {enum:[...]} alone, with no "type"
	// key; date-time below is the one case that gains type/format.
	if len(p.Enum) > 0 {
		prop.Enum = p.Enum
		return prop
	}

	if p.Type == TypeDateTime {
		prop.Type = "string"
		prop.Format = "date-time"
		return prop
	}

	wireType := wireTypeName(p.Type)

	switch {
	case p.Nullable && len(p.Union) == 0:
		prop.Type = []string{wireType, "null"}
	case len(p.Union) > 0:
		types := []string{wireType}
		for _, u := range p.Union {
			types = append(types, wireTypeName(u))
		}
		prop.Type = types
	case p.Type == TypeAny:
		// Empty object: no "type" key at all.
	default:
		prop.Type = wireType
	}
	return prop
}

func wireTypeName(t Type) string {
	switch t {
	case TypeNull:
		return "null"
	case TypeAny:
		return ""
	default:
		return string(t)
	}
}
