// Package builder turns a raw feed product document into the desired
// destination state: per-culture product fields, stock, categories,
// dynamic fields and price-list entries.
package builder

import (
	"fmt"
	"log/slog"

	"github.com/pellelindal/FEEDJetshop/pkg/coercion"
	"github.com/pellelindal/FEEDJetshop/pkg/feed"
	"github.com/pellelindal/FEEDJetshop/pkg/jetshop"
	"github.com/pellelindal/FEEDJetshop/pkg/mapping"
	"github.com/pellelindal/FEEDJetshop/pkg/transform"
)

// Builder evaluates a mapping configuration against feed documents.
type Builder struct {
	cfg        *mapping.Config
	transforms *transform.Registry
	logger     *slog.Logger
}

// New returns a builder for the given mapping.
func New(cfg *mapping.Config, logger *slog.Logger) *Builder {
	return &Builder{
		cfg:        cfg,
		transforms: transform.NewRegistry(),
		logger:     logger,
	}
}

// Desired is the fully built desired state for one product. Errors is
// the accumulated list of field-resolution failures; a non-empty list
// means the product must be skipped, never partially written.
type Desired struct {
	// ByCulture maps culture to the scalar product-field payload.
	ByCulture map[string]map[string]any
	// Stock is the culture-agnostic stock payload.
	Stock map[string]any
	// Categories is the desired category id set. HasCategories is
	// false when the optional category source was absent, which means
	// "leave category connections alone".
	Categories    []string
	HasCategories bool
	// Dynamic maps dynamic-field key to per-culture values.
	Dynamic map[string]map[string]any
	// PriceLists are ready-to-send price list entries.
	PriceLists []map[string]any

	Errors []string
}

// Build evaluates every mapping section against the document.
func (b *Builder) Build(doc feed.Document, productNo string) *Desired {
	idx := feed.NewIndex(doc)
	d := &Desired{
		ByCulture: map[string]map[string]any{},
		Stock:     map[string]any{},
		Dynamic:   map[string]map[string]any{},
	}

	for _, culture := range b.cfg.Cultures {
		data := map[string]any{
			"ArticleNumber": productNo,
			"Culture":       culture,
		}
		for _, entry := range b.cfg.ProductFields {
			if !entry.AppliesTo(culture) {
				continue
			}
			value := b.applyEntry(entry, idx, culture, entryModeField, &d.Errors)
			if value == nil {
				continue
			}
			data[entry.Target] = value
		}
		d.ByCulture[culture] = data
	}

	for _, entry := range b.cfg.StockFields {
		value := b.applyEntry(entry, idx, "", entryModeStock, &d.Errors)
		if value == nil {
			continue
		}
		d.Stock[entry.Target] = value
	}

	d.Categories, d.HasCategories = b.extractCategories(idx, &d.Errors)

	for _, entry := range b.cfg.DynamicFields {
		cultures := entry.Cultures
		if len(cultures) == 0 {
			cultures = b.cfg.Cultures
		}
		for _, culture := range cultures {
			value := b.applyEntry(entry, idx, culture, entryModeDynamic, &d.Errors)
			if value == nil {
				continue
			}
			setNested(d.Dynamic, entry.Key, culture, value)
		}
	}

	if b.cfg.DynamicAuto.Enabled {
		b.applyAutoDynamic(idx, d.Dynamic, &d.Errors)
	}

	d.PriceLists = b.buildPriceLists(idx, productNo, &d.Errors)
	return d
}

type entryMode int

const (
	// entryModeField is a per-culture product field.
	entryModeField entryMode = iota
	// entryModeStock is a culture-agnostic stock field; cleared date
	// fields serialize as an explicit nil marker.
	entryModeStock
	// entryModeDynamic is a dynamic field; a removed source value
	// clears the destination field with an empty string.
	entryModeDynamic
)

// applyEntry runs the absent/empty/present trichotomy for one mapping
// entry: resolve, unwrap, localize, coerce, transform, validate.
// A nil return means the target key is omitted.
func (b *Builder) applyEntry(entry mapping.Entry, idx *feed.Index, culture string, mode entryMode, errors *[]string) any {
	target := entry.Target
	if mode == entryModeDynamic {
		target = entry.Key
	}

	source := b.selectSource(entry, culture, errors, target)
	if source == "" {
		return nil
	}
	sel := mapping.ParseSelector(source)
	raw, attribute, found := idx.Resolve(sel)
	value := raw

	if attributeValueRemoved(sel, attribute) {
		if mode == entryModeDynamic {
			// Dynamic fields are actively cleared, never left stale.
			return ""
		}
		if empty := emptyValueForType(entry.Type, mode == entryModeStock); empty != nil {
			return empty
		}
		if entry.Optional || entry.PreserveIfMissing {
			return nil
		}
		*errors = append(*errors, target+": missing required value")
		return nil
	}
	if !found {
		value = nil
	}

	// A keyed attribute selector without a path resolves to the whole
	// attribute object; use its value.
	if attribute != nil {
		if m, ok := value.(map[string]any); ok {
			if inner, has := m["value"]; has {
				value = inner
			}
		}
	}

	if culture != "" {
		if localized, ok := value.(map[string]any); ok {
			picked, ok := feed.Localize(localized, b.cfg, culture, entry.Fallback)
			if !ok {
				picked = nil
			}
			value = picked
		}
	}

	if !entry.AllowEmpty && coercion.IsEmpty(value) {
		if entry.Optional || entry.PreserveIfMissing {
			return nil
		}
		*errors = append(*errors, target+": missing required value")
		return nil
	}

	value = b.coerceWithPolicy(value, entry.Type, entry.Policy(), entry.ItemType, target, errors)
	if value == nil {
		return nil
	}

	value = b.runTransforms(value, entry, culture, attribute, target, errors)
	if value == nil {
		return nil
	}

	if !entry.Validations.Empty() {
		if err := entry.Validations.Validate(value); err != nil {
			*errors = append(*errors, fmt.Sprintf("%s: %v", target, err))
			return nil
		}
	}

	if !entry.AllowEmpty && coercion.IsEmpty(value) {
		if entry.Optional || entry.PreserveIfMissing {
			return nil
		}
		*errors = append(*errors, target+": empty value not allowed")
		return nil
	}
	return value
}

// selectSource picks the selector for the culture, honoring per-culture
// sources and their per-culture fallbacks.
func (b *Builder) selectSource(entry mapping.Entry, culture string, errors *[]string, target string) string {
	if len(entry.SourceByCulture) > 0 && culture != "" {
		if s, ok := entry.SourceByCulture[culture]; ok && s != "" {
			return s
		}
		if fb := entry.FallbackSourceFor(culture); fb != "" {
			if s, ok := entry.SourceByCulture[fb]; ok && s != "" {
				return s
			}
		}
	}
	if entry.Source != "" {
		return entry.Source
	}
	*errors = append(*errors, target+": no source available")
	return ""
}

// attributeValueRemoved detects an attribute that exists in the feed
// but whose value was removed: no value key, an empty object, or an
// object whose localized values are all empty. Removal means the
// destination field must be cleared, not preserved.
func attributeValueRemoved(sel mapping.Selector, attribute map[string]any) bool {
	if attribute == nil || sel.Root != "attributes" {
		return false
	}
	value, ok := attribute["value"]
	if !ok {
		return true
	}
	if m, isMap := value.(map[string]any); isMap {
		if len(m) == 0 {
			return true
		}
		for _, v := range m {
			if !coercion.IsEmpty(v) {
				return false
			}
		}
		return true
	}
	return false
}

// emptyValueForType is the explicit clearing value written when a
// source attribute's value was removed.
func emptyValueForType(typ coercion.Type, allowNil bool) any {
	switch typ {
	case coercion.TypeString:
		return ""
	case coercion.TypeList:
		return []any{}
	case coercion.TypeDate, coercion.TypeDateTime:
		if allowNil {
			return jetshop.Nil
		}
	}
	return nil
}

// coerceWithPolicy applies type coercion. Under the lenient policy a
// failure logs a warning and passes the raw value through; under strict
// it is a field error.
func (b *Builder) coerceWithPolicy(value any, typ coercion.Type, policy coercion.Policy, itemType coercion.Type, target string, errors *[]string) any {
	if value == nil {
		return nil
	}
	coerced, err := coercion.Coerce(value, typ, policy, itemType)
	if err != nil {
		if policy == coercion.PolicyLenient {
			b.logger.Warn("coercion failed, passing raw value through",
				"field", target,
				"error", err)
			return value
		}
		*errors = append(*errors, fmt.Sprintf("%s: %v", target, err))
		return nil
	}
	return coerced
}

func (b *Builder) runTransforms(value any, entry mapping.Entry, culture string, attribute map[string]any, target string, errors *[]string) any {
	if len(entry.Transforms) == 0 {
		return value
	}
	ctx := b.transformContext(culture, entry.Fallback, attribute)
	out, err := b.transforms.Apply(value, entry.Transforms, ctx)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("%s: %v", target, err))
		return nil
	}
	return out
}

func (b *Builder) transformContext(culture, fallbackOverride string, attribute map[string]any) transform.Context {
	fallbackCulture := fallbackOverride
	if fallbackCulture == "" && culture != "" {
		fallbackCulture = b.cfg.FallbackCulture(culture)
	}
	ctx := transform.Context{
		Culture:   culture,
		Attribute: attribute,
	}
	if culture != "" {
		ctx.FeedLanguage = b.cfg.CultureMap[culture]
	}
	if fallbackCulture != "" {
		ctx.FallbackLanguage = b.cfg.CultureMap[fallbackCulture]
	}
	return ctx
}

// extractCategories resolves the desired category id set once per
// product. The second return is false when the optional source is
// absent and category connections should be left untouched.
func (b *Builder) extractCategories(idx *feed.Index, errors *[]string) ([]string, bool) {
	cm := b.cfg.Categories
	sel := mapping.ParseSelector(cm.Source)
	raw, _, found := idx.Resolve(sel)
	if !found || raw == nil {
		if cm.Optional {
			return nil, false
		}
		*errors = append(*errors, "categories: missing required value")
		return []string{}, true
	}

	coerced := b.coerceWithPolicy(raw, cm.Type, cm.Policy(), cm.ItemType, "categories", errors)
	if coerced == nil {
		return []string{}, true
	}
	items, ok := coerced.([]any)
	if !ok {
		items = []any{coerced}
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, stringify(item))
	}
	return ids, true
}

// CategoryPayload builds the category section of an update: the full
// desired set plus explicit delete-connection entries for the ids that
// are currently connected but no longer desired.
func CategoryPayload(desired, removed []string) []any {
	payload := make([]any, 0, len(desired)+len(removed))
	for _, id := range desired {
		payload = append(payload, map[string]any{"CategoryId": id})
	}
	for _, id := range removed {
		payload = append(payload, map[string]any{
			"CategoryId":             id,
			"ProductInCategoryState": "DeleteConnection",
			"SortOrder":              int64(0),
			"IsCanonical":            false,
		})
	}
	return payload
}

func setNested(m map[string]map[string]any, key, culture string, value any) {
	inner, ok := m[key]
	if !ok {
		inner = map[string]any{}
		m[key] = inner
	}
	inner[culture] = value
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
