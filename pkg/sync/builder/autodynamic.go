package builder

import (
	"sort"

	"github.com/pellelindal/FEEDJetshop/pkg/coercion"
	"github.com/pellelindal/FEEDJetshop/pkg/feed"
	"github.com/pellelindal/FEEDJetshop/pkg/mapping"
	"github.com/pellelindal/FEEDJetshop/pkg/transform"
)

// applyAutoDynamic synthesizes dynamic-field entries for feed
// attributes on the allowlist that no explicit mapping covers.
// Register-backed attributes get label resolution, other list values
// are joined, and everything is optional so absent attributes are
// simply skipped.
func (b *Builder) applyAutoDynamic(idx *feed.Index, dynamic map[string]map[string]any, errors *[]string) {
	auto := b.cfg.DynamicAuto
	if !auto.Active() {
		return
	}

	mapped := map[string]bool{}
	for _, code := range b.cfg.MappedAttributeCodes() {
		mapped[code] = true
	}

	attributes := idx.Attributes()
	codes := make([]string, 0, len(attributes))
	for code := range attributes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if mapped[code] || !auto.AllowsKey(code) {
			continue
		}
		if _, exists := dynamic[code]; exists {
			continue
		}
		attribute := attributes[code]
		dataType, _ := attribute["dataType"].(string)
		if !auto.AllowsDataType(dataType) {
			continue
		}
		if auto.SkipRange && isTruthy(attribute["range"]) {
			if _, isList := attribute["value"].([]any); isList {
				continue
			}
		}

		entry := b.autoEntry(code, dataType, attribute)
		cultures := b.cfg.Cultures
		for _, culture := range cultures {
			value := b.applyEntry(entry, idx, culture, entryModeDynamic, errors)
			if value == nil {
				continue
			}
			setNested(dynamic, code, culture, value)
		}
	}
}

// autoEntry builds the synthesized mapping entry for one attribute.
func (b *Builder) autoEntry(code, dataType string, attribute map[string]any) mapping.Entry {
	auto := b.cfg.DynamicAuto

	typ := auto.Type
	var transforms []transform.Spec
	joinArgs := map[string]any{"join_delimiter": auto.JoinDelimiter}

	switch dataType {
	case "DATA_REGISTER", "DATA_REGISTER_MULTI":
		if _, isList := attribute["value"].([]any); isList || dataType == "DATA_REGISTER_MULTI" {
			typ = coercion.TypeList
			transforms = append(transforms, transform.Spec{Name: "data_register_label", Args: joinArgs})
		} else {
			typ = coercion.TypeString
			transforms = append(transforms, transform.Spec{Name: "data_register_label"})
		}
	default:
		if _, isList := attribute["value"].([]any); isList {
			typ = coercion.TypeList
			transforms = append(transforms, transform.Spec{Name: "join_list", Args: joinArgs})
		}
	}

	return mapping.Entry{
		Key:        code,
		Source:     "attributes[" + code + "]",
		Type:       typ,
		Coerce:     auto.Coerce,
		Transforms: transforms,
		Optional:   true,
	}
}

func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
