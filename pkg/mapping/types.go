// Package mapping defines the declarative mapping model that drives
// synchronization: which feed fields land where in the destination,
// how they are localized, typed, transformed and validated.
package mapping

import (
	"sort"

	"github.com/pellelindal/FEEDJetshop/pkg/coercion"
	"github.com/pellelindal/FEEDJetshop/pkg/transform"
)

// Entry is one field mapping. Product, stock and dynamic-field entries
// share this shape; dynamic entries use Key instead of Target and never
// set PreserveIfMissing.
type Entry struct {
	Target            string               `yaml:"target,omitempty"`
	Key               string               `yaml:"key,omitempty"`
	Source            string               `yaml:"source,omitempty"`
	SourceByCulture   map[string]string    `yaml:"source_by_culture,omitempty"`
	FallbackByCulture map[string]string    `yaml:"fallback_by_culture,omitempty"`
	Cultures          []string             `yaml:"cultures,omitempty"`
	Fallback          string               `yaml:"fallback,omitempty"`
	Type              coercion.Type        `yaml:"type,omitempty"`
	ItemType          coercion.Type        `yaml:"item_type,omitempty"`
	Coerce            string               `yaml:"coerce,omitempty"`
	Transforms        []transform.Spec     `yaml:"transforms,omitempty"`
	Validations       coercion.Constraints `yaml:"validations,omitempty"`
	Optional          bool                 `yaml:"optional,omitempty"`
	PreserveIfMissing bool                 `yaml:"preserve_if_missing,omitempty"`
	AllowEmpty        bool                 `yaml:"allow_empty,omitempty"`
}

// Policy returns the entry's coercion policy. Load guarantees the
// spelling is valid, so the error path is unreachable after loading.
func (e Entry) Policy() coercion.Policy {
	p, err := coercion.ParsePolicy(e.Coerce)
	if err != nil {
		return coercion.PolicyStrict
	}
	return p
}

// AppliesTo reports whether the entry is restricted to a subset of
// cultures and whether culture is in it.
func (e Entry) AppliesTo(culture string) bool {
	if len(e.Cultures) == 0 {
		return true
	}
	for _, c := range e.Cultures {
		if c == culture {
			return true
		}
	}
	return false
}

// SourceFor returns the selector for the given culture, preferring the
// per-culture override when one exists.
func (e Entry) SourceFor(culture string) string {
	if len(e.SourceByCulture) > 0 {
		if s, ok := e.SourceByCulture[culture]; ok && s != "" {
			return s
		}
	}
	return e.Source
}

// FallbackSourceFor returns the per-culture fallback selector, if any.
func (e Entry) FallbackSourceFor(culture string) string {
	if len(e.FallbackByCulture) == 0 {
		return ""
	}
	return e.FallbackByCulture[culture]
}

// CategoryMapping describes how destination category ids are extracted.
// The only supported strategy is "replace": the desired set fully
// replaces the current one, with removals expressed as explicit
// delete-connection entries.
type CategoryMapping struct {
	Source   string        `yaml:"source"`
	Type     coercion.Type `yaml:"type,omitempty"`
	ItemType coercion.Type `yaml:"item_type,omitempty"`
	Coerce   string        `yaml:"coerce,omitempty"`
	Strategy string        `yaml:"strategy,omitempty"`
	Optional bool          `yaml:"optional,omitempty"`
}

// Policy returns the category mapping's coercion policy.
func (c CategoryMapping) Policy() coercion.Policy {
	p, err := coercion.ParsePolicy(c.Coerce)
	if err != nil {
		return coercion.PolicyStrict
	}
	return p
}

// PriceList maps feed price sources onto one destination price list.
type PriceList struct {
	Name                   string `yaml:"name,omitempty"`
	PriceListID            string `yaml:"price_list_id"`
	PriceSource            string `yaml:"price_source"`
	DiscountedPriceSource  string `yaml:"discounted_price_source,omitempty"`
	DiscountPeriodSource   string `yaml:"discount_period_source,omitempty"`
	HideProductSource      string `yaml:"hide_product_source,omitempty"`
	ClearDiscountOnMissing bool   `yaml:"clear_discount_on_missing,omitempty"`
	Type                   string `yaml:"type,omitempty"`
	Coerce                 string `yaml:"coerce,omitempty"`
	Optional               bool   `yaml:"optional,omitempty"`
}

// Policy returns the price list's coercion policy.
func (p PriceList) Policy() coercion.Policy {
	pol, err := coercion.ParsePolicy(p.Coerce)
	if err != nil {
		return coercion.PolicyStrict
	}
	return pol
}

// AutoDynamic configures automatic mapping of unmapped feed attributes
// onto dynamic fields. Disabled unless enabled AND AllowedKeys is
// non-empty.
type AutoDynamic struct {
	Enabled          bool
	Coerce           string
	Type             coercion.Type
	IncludeDataTypes []string
	JoinDelimiter    string
	SkipRange        bool
	AllowedKeys      []string
}

// Active reports whether auto mapping should run at all.
func (a AutoDynamic) Active() bool {
	return a.Enabled && len(a.AllowedKeys) > 0
}

// AllowsDataType reports whether the attribute data type passes the
// include filter. An empty filter allows everything.
func (a AutoDynamic) AllowsDataType(dataType string) bool {
	if len(a.IncludeDataTypes) == 0 {
		return true
	}
	for _, t := range a.IncludeDataTypes {
		if t == dataType {
			return true
		}
	}
	return false
}

// AllowsKey reports whether code is in the allowed key list.
func (a AutoDynamic) AllowsKey(code string) bool {
	for _, k := range a.AllowedKeys {
		if k == code {
			return true
		}
	}
	return false
}

// Config is the full, validated mapping document.
type Config struct {
	Version       int               `yaml:"version"`
	Cultures      []string          `yaml:"cultures"`
	Fallbacks     map[string]string `yaml:"fallbacks,omitempty"`
	CultureMap    map[string]string `yaml:"culture_map,omitempty"`
	ProductFields []Entry           `yaml:"product_fields"`
	StockFields   []Entry           `yaml:"stock_fields"`
	Categories    CategoryMapping   `yaml:"category_fields"`
	DynamicAuto   AutoDynamic       `yaml:"dynamic_fields_auto_map"`
	DynamicFields []Entry           `yaml:"dynamic_fields_allowlist,omitempty"`
	PriceLists    []PriceList       `yaml:"price_lists,omitempty"`
}

// FeedLanguage maps a destination culture to its feed language via
// culture_map, falling back to the culture string itself.
func (c *Config) FeedLanguage(culture string) string {
	if lang, ok := c.CultureMap[culture]; ok && lang != "" {
		return lang
	}
	return culture
}

// FallbackCulture returns the configured fallback culture for a
// destination culture, or "" when none is set.
func (c *Config) FallbackCulture(culture string) string {
	return c.Fallbacks[culture]
}

// MappedAttributeCodes lists every attribute key any mapping selects,
// sorted. Used to exclude explicitly mapped attributes from auto
// dynamic mapping and from discovery reports.
func (c *Config) MappedAttributeCodes() []string {
	return c.collectSources("attributes")
}

// MappedTextCodes lists every text key any mapping selects, sorted.
func (c *Config) MappedTextCodes() []string {
	return c.collectSources("texts")
}

// DynamicFieldKeys lists the explicit dynamic-field keys, sorted.
func (c *Config) DynamicFieldKeys() []string {
	set := map[string]bool{}
	for _, e := range c.DynamicFields {
		set[e.Key] = true
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Config) collectSources(root string) []string {
	set := map[string]bool{}
	add := func(source string) {
		if source == "" {
			return
		}
		sel := ParseSelector(source)
		if sel.Root == root && sel.Key != "" {
			set[sel.Key] = true
		}
	}
	for _, e := range c.ProductFields {
		add(e.Source)
		for _, s := range e.SourceByCulture {
			add(s)
		}
	}
	for _, e := range c.StockFields {
		add(e.Source)
		for _, s := range e.SourceByCulture {
			add(s)
		}
	}
	add(c.Categories.Source)
	for _, e := range c.DynamicFields {
		add(e.Source)
		for _, s := range e.SourceByCulture {
			add(s)
		}
	}
	for _, p := range c.PriceLists {
		add(p.PriceSource)
		add(p.DiscountedPriceSource)
		add(p.DiscountPeriodSource)
		add(p.HideProductSource)
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
