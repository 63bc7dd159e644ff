package feed

import (
	"github.com/pellelindal/FEEDJetshop/pkg/coercion"
	"github.com/pellelindal/FEEDJetshop/pkg/mapping"
)

// Localize picks the value for culture out of a language-keyed map.
//
// Candidate keys are tried in order: the feed language mapped from the
// culture, the culture string itself, then the same pair for the
// fallback culture (the explicit override wins over the configured
// fallback). A key whose value is empty is skipped, so a blank "nb"
// entry still falls through to "sv". Returns (nil, false) when no
// candidate yields a non-empty value.
func Localize(value map[string]any, cfg *mapping.Config, culture, fallbackOverride string) (any, bool) {
	fallbackCulture := fallbackOverride
	if fallbackCulture == "" {
		fallbackCulture = cfg.FallbackCulture(culture)
	}

	candidates := []string{cfg.CultureMap[culture], culture}
	if fallbackCulture != "" {
		candidates = append(candidates, cfg.CultureMap[fallbackCulture], fallbackCulture)
	}

	for _, key := range candidates {
		if key == "" {
			continue
		}
		v, ok := value[key]
		if !ok || coercion.IsEmpty(v) {
			continue
		}
		return v, true
	}
	return nil, false
}
