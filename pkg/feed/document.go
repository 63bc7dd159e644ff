// Package feed models product documents from the feed export API and
// resolves mapping selectors against them.
package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pellelindal/FEEDJetshop/pkg/mapping"
)

// Document is one raw product document from the feed. Numbers are
// json.Number so integer and decimal values keep their exact textual
// form through coercion and diffing.
type Document map[string]any

// DecodeDocuments parses a feed export payload's content array.
func DecodeDocuments(data []byte) ([]Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var docs []Document
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode feed documents: %w", err)
	}
	return docs, nil
}

// Index provides keyed lookup of a document's attributes and texts by
// their import code. Built once per product.
type Index struct {
	doc        Document
	attributes map[string]map[string]any
	texts      map[string]map[string]any
}

// NewIndex builds the code index for doc. Entries without an
// importCode are skipped.
func NewIndex(doc Document) *Index {
	idx := &Index{
		doc:        doc,
		attributes: map[string]map[string]any{},
		texts:      map[string]map[string]any{},
	}
	collect(doc["attributes"], idx.attributes)
	collect(doc["texts"], idx.texts)
	return idx
}

func collect(raw any, out map[string]map[string]any) {
	items, ok := raw.([]any)
	if !ok {
		return
	}
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		code, ok := entry["importCode"].(string)
		if !ok || code == "" {
			continue
		}
		out[code] = entry
	}
}

// Attribute returns the attribute object with the given import code.
func (i *Index) Attribute(code string) (map[string]any, bool) {
	a, ok := i.attributes[code]
	return a, ok
}

// Attributes returns the full code→attribute map.
func (i *Index) Attributes() map[string]map[string]any {
	return i.attributes
}

// Texts returns the full code→text map.
func (i *Index) Texts() map[string]map[string]any {
	return i.texts
}

// Resolve evaluates a selector against the document. The second return
// is the attribute object the value came from, when the selector root
// is "attributes"; callers use it for label lookups. found is false
// when the keyed entry does not exist or a dotted path walks off a
// non-mapping value.
func (i *Index) Resolve(sel mapping.Selector) (value any, attribute map[string]any, found bool) {
	switch sel.Root {
	case "attributes":
		if sel.Keyed() {
			attr, ok := i.attributes[sel.Key]
			if !ok {
				return nil, nil, false
			}
			v, ok := walk(attr, sel.Path)
			return v, attr, ok
		}
	case "texts":
		if sel.Keyed() {
			text, ok := i.texts[sel.Key]
			if !ok {
				return nil, nil, false
			}
			v, ok := walk(text, sel.Path)
			return v, nil, ok
		}
	}
	root, ok := i.doc[sel.Root]
	if !ok {
		return nil, nil, false
	}
	v, ok := walkAny(root, sel.Path)
	return v, nil, ok
}

func walk(m map[string]any, path []string) (any, bool) {
	return walkAny(any(m), path)
}

func walkAny(value any, path []string) (any, bool) {
	for _, seg := range path {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return value, true
}

// ProductNo extracts identifier.productNo, the product's natural key.
func (d Document) ProductNo() string {
	id, ok := d["identifier"].(map[string]any)
	if !ok {
		return ""
	}
	no, _ := id["productNo"].(string)
	return strings.TrimSpace(no)
}

// Deleted reports whether the feed marks the product as deleted, via
// the top-level action, the top-level deleted flag or
// productHead.deleted. Both boolean true and the string "true" count
// as deletion flags.
func (d Document) Deleted() bool {
	if action, ok := d["action"].(string); ok && action == "Delete" {
		return true
	}
	if isTrue(d["deleted"]) {
		return true
	}
	if head, ok := d["productHead"].(map[string]any); ok {
		return isTrue(head["deleted"])
	}
	return false
}

func isTrue(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	default:
		return false
	}
}
