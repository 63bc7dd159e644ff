// Package transform provides the named post-coercion value transforms
// that mapping entries can chain.
package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pellelindal/FEEDJetshop/pkg/coercion"
)

// Context carries the per-evaluation inputs a transform may need beyond
// the value itself.
type Context struct {
	// Culture is the destination culture being built, e.g. "sv-SE".
	Culture string
	// FeedLanguage is the feed language mapped from the culture.
	FeedLanguage string
	// FallbackLanguage is the configured fallback feed language.
	FallbackLanguage string
	// Attribute is the full attribute object the value was selected
	// from, when the source was an attribute. Nil otherwise.
	Attribute map[string]any
}

// Func is a single transform step. Implementations must be pure with
// respect to the context: same inputs, same output.
type Func func(value any, args map[string]any, ctx Context) (any, error)

// Spec names a transform plus its arguments as written in the mapping
// file. It unmarshals from either a bare string or a {name, args} map.
type Spec struct {
	Name string
	Args map[string]any
}

// UnmarshalYAML accepts "newline_to_br" and {name: join_list, args: {...}}.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var name string
		if err := node.Decode(&name); err != nil {
			return err
		}
		s.Name = name
		return nil
	case yaml.MappingNode:
		var raw struct {
			Name string         `yaml:"name"`
			Args map[string]any `yaml:"args"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		if raw.Name == "" {
			return fmt.Errorf("transform object requires a name")
		}
		s.Name = raw.Name
		s.Args = raw.Args
		return nil
	default:
		return fmt.Errorf("transform must be a string or a {name, args} object")
	}
}

// Registry resolves transform names to implementations.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns a registry with the built-in transforms.
func NewRegistry() *Registry {
	r := &Registry{funcs: map[string]Func{}}
	r.Register("newline_to_br", newlineToBr)
	r.Register("format_price", formatPrice)
	r.Register("join_list", joinList)
	r.Register("data_register_label", dataRegisterLabel)
	return r
}

// Register adds or replaces a transform implementation.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Lookup returns the transform for name.
func (r *Registry) Lookup(name string) (Func, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered transform names, for validation errors.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		out = append(out, name)
	}
	return out
}

// Apply runs the transform chain over value in order.
func (r *Registry) Apply(value any, specs []Spec, ctx Context) (any, error) {
	for _, spec := range specs {
		fn, ok := r.funcs[spec.Name]
		if !ok {
			return nil, fmt.Errorf("unknown transform %q", spec.Name)
		}
		var err error
		value, err = fn(value, spec.Args, ctx)
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", spec.Name, err)
		}
	}
	return value, nil
}

func newlineToBr(value any, _ map[string]any, _ Context) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br>"), nil
}

func formatPrice(value any, _ map[string]any, _ Context) (any, error) {
	d, ok := asPriceDecimal(value)
	if !ok {
		// Not decimal-like: leave untouched so a lenient raw
		// passthrough value survives the chain.
		return value, nil
	}
	return d.StringFixed(4), nil
}

func asPriceDecimal(value any) (coercion.Decimal, bool) {
	switch v := value.(type) {
	case coercion.Decimal:
		return v, true
	case string:
		d, err := coercion.ParseDecimal(strings.TrimSpace(v))
		return d, err == nil
	case json.Number:
		d, err := coercion.ParseDecimal(v.String())
		return d, err == nil
	case int:
		return coercion.DecimalFromInt(int64(v)), true
	case int64:
		return coercion.DecimalFromInt(v), true
	case float64:
		d, err := coercion.DecimalFromFloat(v)
		return d, err == nil
	default:
		return coercion.Decimal{}, false
	}
}

func joinList(value any, args map[string]any, _ Context) (any, error) {
	items, ok := value.([]any)
	if !ok {
		return value, nil
	}
	delim := ", "
	if d, ok := args["join_delimiter"].(string); ok {
		delim = d
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%v", item))
	}
	return strings.Join(parts, delim), nil
}

// dataRegisterLabel replaces register option codes with their
// human-readable labels from the attribute's options table, using the
// feed language and falling back to the configured fallback language.
// Codes with no label pass through unchanged.
func dataRegisterLabel(value any, args map[string]any, ctx Context) (any, error) {
	attr := ctx.Attribute
	if m, ok := value.(map[string]any); ok {
		if _, has := m["options"]; has {
			attr = m
			if inner, ok := m["value"]; ok {
				value = inner
			}
		}
	}

	lookup := func(code string) string {
		if attr == nil {
			return code
		}
		options, _ := attr["options"].(map[string]any)
		entry, _ := options[code].(map[string]any)
		if entry == nil {
			return code
		}
		for _, lang := range []string{ctx.FeedLanguage, ctx.FallbackLanguage} {
			if lang == "" {
				continue
			}
			if label, ok := entry[lang].(string); ok && strings.TrimSpace(label) != "" {
				return label
			}
		}
		return code
	}

	switch v := value.(type) {
	case string:
		return lookup(v), nil
	case []any:
		labels := make([]string, 0, len(v))
		for _, item := range v {
			labels = append(labels, lookup(fmt.Sprintf("%v", item)))
		}
		delim := ", "
		if d, ok := args["join_delimiter"].(string); ok {
			delim = d
		}
		return strings.Join(labels, delim), nil
	default:
		return value, nil
	}
}
