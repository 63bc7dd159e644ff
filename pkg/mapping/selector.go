package mapping

import (
	"regexp"
	"strings"
)

// Selector addresses a value inside a feed product document. Two forms
// exist:
//
//	attributes[color].value   keyed lookup into a keyed collection
//	identifier.productNo      plain dotted path from the document root
//
// For the keyed form, Root is "texts" or "attributes", Key is the
// collection key and Path holds the trailing segments. For the dotted
// form Key is empty and Root is the first segment.
type Selector struct {
	Root string
	Key  string
	Path []string
}

var keyedSelectorRe = regexp.MustCompile(`^(texts|attributes)\[([^\]]+)\](?:\.(.+))?$`)

// ParseSelector parses a selector string. It never fails: strings that
// do not match the keyed form are treated as dotted paths.
func ParseSelector(source string) Selector {
	if m := keyedSelectorRe.FindStringSubmatch(source); m != nil {
		sel := Selector{Root: m[1], Key: m[2]}
		if m[3] != "" {
			for _, seg := range strings.Split(m[3], ".") {
				if seg != "" {
					sel.Path = append(sel.Path, seg)
				}
			}
		}
		return sel
	}
	parts := strings.Split(source, ".")
	sel := Selector{Root: parts[0]}
	if len(parts) > 1 {
		sel.Path = parts[1:]
	}
	return sel
}

// Keyed reports whether the selector uses the keyed collection form.
func (s Selector) Keyed() bool {
	return s.Key != ""
}
