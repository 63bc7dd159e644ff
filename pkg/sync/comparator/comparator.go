// Package comparator computes the field-level differences between the
// destination's current product state and the desired state built from
// the feed. Only differences trigger writes.
package comparator

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/pellelindal/FEEDJetshop/pkg/coercion"
)

// Diff sections.
const (
	SectionProductData   = "ProductData"
	SectionCategories    = "Categories"
	SectionStockData     = "StockData"
	SectionDynamicFields = "DynamicFields"
)

// DiffItem is one detected difference. OldValue and NewValue carry the
// raw (un-normalized) values for reporting.
type DiffItem struct {
	TargetField string `json:"target_field"`
	OldValue    any    `json:"old_value"`
	NewValue    any    `json:"new_value"`
	Culture     string `json:"culture,omitempty"`
	Section     string `json:"section,omitempty"`
}

// normalize maps a value into its canonical comparison form: every
// numeric type becomes a fixed 4-digit decimal string so int64(10),
// json.Number("10.0") and "10.0000" all compare equal; dates and
// datetimes become ISO-8601 strings. Bools and other values are left
// alone.
func normalize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		return v
	case coercion.Decimal:
		return v.StringFixed(4)
	case int:
		return coercion.DecimalFromInt(int64(v)).StringFixed(4)
	case int64:
		return coercion.DecimalFromInt(v).StringFixed(4)
	case float64:
		if d, err := coercion.DecimalFromFloat(v); err == nil {
			return d.StringFixed(4)
		}
		return fmt.Sprintf("%v", v)
	case json.Number:
		if d, err := coercion.DecimalFromNumber(v); err == nil {
			return d.StringFixed(4)
		}
		return v.String()
	case coercion.Date:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// DiffProductData compares the desired scalar product fields against
// the current ones, key-wise over the desired keys. The nested category
// and stock sections have their own comparisons.
func DiffProductData(current, desired map[string]any, culture string) []DiffItem {
	var diffs []DiffItem
	for _, key := range sortedKeys(desired) {
		if key == "ProductInCategories" || key == "StockData" {
			continue
		}
		currentValue := current[key]
		desiredValue := desired[key]
		if !equal(currentValue, desiredValue) {
			diffs = append(diffs, DiffItem{
				TargetField: key,
				OldValue:    currentValue,
				NewValue:    desiredValue,
				Culture:     culture,
				Section:     SectionProductData,
			})
		}
	}
	return diffs
}

// DiffCategories compares category membership as unordered id sets.
// A difference is reported as a single item carrying both full lists.
func DiffCategories(current, desired []any, culture string) []DiffItem {
	currentIDs := NormalizeCategoryIDs(current)
	desiredIDs := NormalizeCategoryIDs(desired)

	sortedCurrent := append([]string(nil), currentIDs...)
	sortedDesired := append([]string(nil), desiredIDs...)
	sort.Strings(sortedCurrent)
	sort.Strings(sortedDesired)
	if reflect.DeepEqual(sortedCurrent, sortedDesired) {
		return nil
	}
	return []DiffItem{{
		TargetField: "ProductInCategories",
		OldValue:    currentIDs,
		NewValue:    desiredIDs,
		Culture:     culture,
		Section:     SectionCategories,
	}}
}

// NormalizeCategoryIDs flattens category entries to their id strings.
// Entries may be scalars or objects with a CategoryId key.
func NormalizeCategoryIDs(categories []any) []string {
	normalized := []string{}
	for _, item := range categories {
		var id any
		if m, ok := item.(map[string]any); ok {
			id = m["CategoryId"]
		} else {
			id = item
		}
		if id == nil {
			continue
		}
		normalized = append(normalized, stringify(id))
	}
	return normalized
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// DiffStock compares desired stock keys against the current stock map.
func DiffStock(current, desired map[string]any, culture string) []DiffItem {
	var diffs []DiffItem
	for _, key := range sortedKeys(desired) {
		if !equal(current[key], desired[key]) {
			diffs = append(diffs, DiffItem{
				TargetField: key,
				OldValue:    current[key],
				NewValue:    desired[key],
				Culture:     culture,
				Section:     SectionStockData,
			})
		}
	}
	return diffs
}

// DiffDynamicFields compares dynamic-field values per (key, culture).
func DiffDynamicFields(current map[string]map[string]any, desired map[string]map[string]any) []DiffItem {
	var diffs []DiffItem
	for _, key := range sortedKeysNested(desired) {
		cultures := desired[key]
		cultureKeys := make([]string, 0, len(cultures))
		for c := range cultures {
			cultureKeys = append(cultureKeys, c)
		}
		sort.Strings(cultureKeys)
		for _, culture := range cultureKeys {
			var currentValue any
			if cur, ok := current[key]; ok {
				currentValue = cur[culture]
			}
			if !equal(currentValue, cultures[culture]) {
				diffs = append(diffs, DiffItem{
					TargetField: key,
					OldValue:    currentValue,
					NewValue:    cultures[culture],
					Culture:     culture,
					Section:     SectionDynamicFields,
				})
			}
		}
	}
	return diffs
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysNested(m map[string]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
