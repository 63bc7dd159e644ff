package mapping

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pellelindal/FEEDJetshop/pkg/coercion"
	"github.com/pellelindal/FEEDJetshop/pkg/transform"
)

// LoadError describes why a mapping document was rejected.
type LoadError struct {
	Field   string
	Message string
}

func (e *LoadError) Error() string {
	if e.Field == "" {
		return "invalid mapping: " + e.Message
	}
	return fmt.Sprintf("invalid mapping: %s: %s", e.Field, e.Message)
}

func loadErr(field, format string, args ...any) error {
	return &LoadError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UnmarshalYAML accepts dynamic_fields_auto_map as either a bare bool
// or a full configuration object.
func (a *AutoDynamic) UnmarshalYAML(node *yaml.Node) error {
	*a = defaultAutoDynamic()
	if node.Kind == yaml.ScalarNode {
		var enabled bool
		if err := node.Decode(&enabled); err != nil {
			return fmt.Errorf("dynamic_fields_auto_map must be a boolean or an object")
		}
		a.Enabled = enabled
		return nil
	}
	var raw struct {
		Enabled          bool     `yaml:"enabled"`
		Coerce           string   `yaml:"coerce"`
		Type             string   `yaml:"type"`
		IncludeDataTypes []string `yaml:"include_data_types"`
		JoinDelimiter    *string  `yaml:"join_delimiter"`
		SkipRange        *bool    `yaml:"skip_range"`
		AllowedKeys      []string `yaml:"allowed_keys"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	a.Enabled = raw.Enabled
	if raw.Coerce != "" {
		a.Coerce = raw.Coerce
	}
	if raw.Type != "" {
		a.Type = coercion.Type(raw.Type)
	}
	a.IncludeDataTypes = raw.IncludeDataTypes
	if raw.JoinDelimiter != nil {
		a.JoinDelimiter = *raw.JoinDelimiter
	}
	if raw.SkipRange != nil {
		a.SkipRange = *raw.SkipRange
	}
	a.AllowedKeys = raw.AllowedKeys
	return nil
}

func defaultAutoDynamic() AutoDynamic {
	return AutoDynamic{
		Coerce:        "coerce",
		Type:          coercion.TypeString,
		JoinDelimiter: ", ",
		SkipRange:     true,
	}
}

// Load reads and validates a mapping document from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a mapping document.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{DynamicAuto: defaultAutoDynamic()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.CultureMap) == 0 {
		c.CultureMap = map[string]string{"sv-SE": "sv", "nb-NO": "nb"}
	}
	if c.Fallbacks == nil {
		c.Fallbacks = map[string]string{}
	}
	if c.Categories.Type == "" {
		c.Categories.Type = coercion.TypeList
	}
	if c.Categories.Strategy == "" {
		c.Categories.Strategy = "replace"
	}
	if c.Categories.Coerce == "" {
		c.Categories.Coerce = "strict"
	}
	applyEntryDefaults(c.ProductFields)
	applyEntryDefaults(c.StockFields)
	applyEntryDefaults(c.DynamicFields)
	for i := range c.PriceLists {
		if c.PriceLists[i].Type == "" {
			c.PriceLists[i].Type = "int"
		}
		if c.PriceLists[i].Coerce == "" {
			c.PriceLists[i].Coerce = "strict"
		}
	}
}

func applyEntryDefaults(entries []Entry) {
	for i := range entries {
		if entries[i].Type == "" {
			entries[i].Type = coercion.TypeString
		}
		if entries[i].Coerce == "" {
			entries[i].Coerce = "strict"
		}
	}
}

func (c *Config) validate() error {
	if c.Version <= 0 {
		return loadErr("version", "must be a positive integer")
	}
	if len(c.Cultures) == 0 {
		return loadErr("cultures", "must be a non-empty list")
	}
	if len(c.ProductFields) == 0 {
		return loadErr("product_fields", "must be a non-empty list")
	}
	if len(c.StockFields) == 0 {
		return loadErr("stock_fields", "must be a non-empty list")
	}

	registry := transform.NewRegistry()

	for i, e := range c.ProductFields {
		if err := validateEntry(e, fmt.Sprintf("product_fields[%d]", i), true, registry); err != nil {
			return err
		}
	}
	for i, e := range c.StockFields {
		if err := validateEntry(e, fmt.Sprintf("stock_fields[%d]", i), true, registry); err != nil {
			return err
		}
	}
	for i, e := range c.DynamicFields {
		name := fmt.Sprintf("dynamic_fields_allowlist[%d]", i)
		if e.Key == "" {
			return loadErr(name, "missing key")
		}
		if e.PreserveIfMissing {
			return loadErr(name, "preserve_if_missing is not supported on dynamic fields")
		}
		if err := validateEntry(e, name, false, registry); err != nil {
			return err
		}
	}

	if c.Categories.Source == "" {
		return loadErr("category_fields.source", "is required")
	}
	if c.Categories.Strategy != "" && c.Categories.Strategy != "replace" {
		return loadErr("category_fields.strategy", "must be 'replace'")
	}
	if _, err := coercion.ParsePolicy(c.Categories.Coerce); err != nil {
		return loadErr("category_fields.coerce", "%v", err)
	}

	for i, p := range c.PriceLists {
		name := fmt.Sprintf("price_lists[%d]", i)
		if p.PriceListID == "" {
			return loadErr(name, "missing price_list_id")
		}
		if p.PriceSource == "" {
			return loadErr(name, "missing price_source")
		}
		if _, err := coercion.ParsePolicy(p.Coerce); err != nil {
			return loadErr(name, "%v", err)
		}
	}

	if _, err := coercion.ParsePolicy(c.DynamicAuto.Coerce); err != nil {
		return loadErr("dynamic_fields_auto_map.coerce", "%v", err)
	}
	if c.DynamicAuto.Type != "" && !coercion.ValidTypes[c.DynamicAuto.Type] {
		return loadErr("dynamic_fields_auto_map.type", "unknown type %q", c.DynamicAuto.Type)
	}
	return nil
}

func validateEntry(e Entry, name string, requireTarget bool, registry *transform.Registry) error {
	if requireTarget && e.Target == "" {
		return loadErr(name, "missing target")
	}
	if e.Source == "" && len(e.SourceByCulture) == 0 {
		return loadErr(name, "must include source or source_by_culture")
	}
	if _, err := coercion.ParsePolicy(e.Coerce); err != nil {
		return loadErr(name, "%v", err)
	}
	if e.Type != "" && !coercion.ValidTypes[e.Type] {
		return loadErr(name, "unknown type %q", e.Type)
	}
	if e.ItemType != "" && !coercion.ValidTypes[e.ItemType] {
		return loadErr(name, "unknown item_type %q", e.ItemType)
	}
	for _, t := range e.Transforms {
		if _, ok := registry.Lookup(t.Name); !ok {
			return loadErr(name, "unknown transform %q", t.Name)
		}
	}
	return nil
}
