package jetshop

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pellelindal/FEEDJetshop/pkg/coercion"
)

const (
	soapEnvNS = "http://www.w3.org/2003/05/soap-envelope"
	wsNS      = "WebServiceProvider"
)

// FaultError is a SOAP fault returned by the API.
type FaultError struct {
	Code   string
	Reason string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("soap fault: %s - %s", e.Code, e.Reason)
}

// node is a minimal parsed XML element tree. The API's responses vary
// in namespace prefixes, so lookups match on local-name suffix only.
type node struct {
	name     string
	text     string
	children []*node
}

func parseXML(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	root := &node{}
	stack := []*node{root}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			stack[len(stack)-1].text += string(t)
		}
	}
	if len(root.children) == 0 {
		return nil, fmt.Errorf("parse xml: empty document")
	}
	return root.children[0], nil
}

// findAll returns every descendant whose local name matches.
func (n *node) findAll(name string) []*node {
	var out []*node
	var walk func(*node)
	walk = func(cur *node) {
		for _, c := range cur.children {
			if c.name == name {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// find returns the first descendant whose local name matches.
func (n *node) find(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	for _, c := range n.children {
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

// childText returns the text of the first direct child with the name.
func (n *node) childText(name string) string {
	for _, c := range n.children {
		if c.name == name {
			return c.text
		}
	}
	return ""
}

// descText returns the text of the first descendant with the name.
func (n *node) descText(name string) string {
	if found := n.find(name); found != nil {
		return found.text
	}
	return ""
}

// checkFault scans a response for any element whose name ends in
// "Fault" and converts it into a FaultError.
func checkFault(root *node) error {
	var fault *node
	var walk func(*node) *node
	walk = func(cur *node) *node {
		if strings.HasSuffix(cur.name, "Fault") {
			return cur
		}
		for _, c := range cur.children {
			if f := walk(c); f != nil {
				return f
			}
		}
		return nil
	}
	fault = walk(root)
	if fault == nil {
		return nil
	}
	code := fault.descText("faultcode")
	if code == "" {
		code = fault.descText("Value")
	}
	if code == "" {
		code = "Fault"
	}
	reason := fault.descText("faultstring")
	if reason == "" {
		reason = fault.descText("Text")
	}
	if reason == "" {
		reason = "Unknown"
	}
	return &FaultError{Code: code, Reason: reason}
}

// escape XML-escapes text content.
func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// formatValue renders a payload value as XML text. Bools serialize as
// true/false, dates and datetimes in ISO-8601 form.
func formatValue(value any) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case coercion.Decimal:
		return v.String()
	case coercion.Date:
		return v.String()
	case time.Time:
		return formatTime(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatTime(t time.Time) string {
	if t.Location() == time.UTC || t.Location() == nil {
		return t.Format("2006-01-02T15:04:05")
	}
	return t.Format("2006-01-02T15:04:05-07:00")
}

// writeField appends one element, honoring the Nil sentinel.
func writeField(b *strings.Builder, name string, value any) {
	if _, isNil := value.(NilValue); isNil {
		fmt.Fprintf(b, "<%s xsi:nil=\"true\" />", name)
		return
	}
	fmt.Fprintf(b, "<%s>%s</%s>", name, escape(formatValue(value)), name)
}

func buildEnvelope(bodyXML, headerXML string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<soap12:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
                 xmlns:xsd="http://www.w3.org/2001/XMLSchema"
                 xmlns:soap12="` + soapEnvNS + `">
  ` + headerXML + `
  <soap12:Body>
    ` + bodyXML + `
  </soap12:Body>
</soap12:Envelope>`
}

func buildHeaderXML(rawHeader, shopID string) string {
	if rawHeader != "" {
		if strings.Contains(rawHeader, "<soap12:Header") || strings.Contains(rawHeader, "<soap:Header") {
			return rawHeader
		}
		return "<soap12:Header>" + rawHeader + "</soap12:Header>"
	}
	return "<soap12:Header><ShopId>" + escape(shopID) + "</ShopId></soap12:Header>"
}

// buildProductDataXML renders one ProductData element: scalar fields in
// API order, then categories, then stock.
func buildProductDataXML(product ProductData) string {
	var b strings.Builder
	b.WriteString("<ProductData>")
	for _, key := range productDataFieldOrder {
		value, ok := product[key]
		if !ok || value == nil {
			continue
		}
		writeField(&b, key, value)
	}
	b.WriteString(buildCategoriesXML(product))
	b.WriteString(buildStockXML(product))
	b.WriteString("</ProductData>")
	return b.String()
}

// buildCategoriesXML renders ProductInCategories. A missing key emits
// nothing; an empty list emits an explicit empty element so the replace
// strategy can clear all connections.
func buildCategoriesXML(product ProductData) string {
	raw, ok := product["ProductInCategories"]
	if !ok || raw == nil {
		return ""
	}
	entries := asSlice(raw)
	if len(entries) == 0 {
		return "<ProductInCategories />"
	}
	articleNumber := formatValue(product["ArticleNumber"])

	var b strings.Builder
	b.WriteString("<ProductInCategories>")
	for _, entry := range entries {
		categoryID := ""
		var sortOrder, isCanonical, state any
		if m, ok := entry.(map[string]any); ok {
			categoryID = formatValue(m["CategoryId"])
			state = m["ProductInCategoryState"]
			if state != nil {
				sortOrder = m["SortOrder"]
				isCanonical = m["IsCanonical"]
			} else {
				sortOrder = orDefault(m["SortOrder"], int64(0))
				isCanonical = orDefault(m["IsCanonical"], false)
			}
		} else {
			categoryID = formatValue(entry)
			sortOrder = int64(0)
			isCanonical = false
		}
		if categoryID == "" || categoryID == "<nil>" {
			continue
		}
		b.WriteString("<ProductInCategoryData>")
		writeField(&b, "ArticleNumber", articleNumber)
		writeField(&b, "CategoryId", categoryID)
		if sortOrder != nil {
			writeField(&b, "SortOrder", sortOrder)
		}
		if isCanonical != nil {
			writeField(&b, "IsCanonical", isCanonical)
		}
		if state != nil {
			writeField(&b, "ProductInCategoryState", state)
		}
		b.WriteString("</ProductInCategoryData>")
	}
	b.WriteString("</ProductInCategories>")
	return b.String()
}

func buildStockXML(product ProductData) string {
	stock, ok := product["StockData"].(map[string]any)
	if !ok || len(stock) == 0 {
		return ""
	}
	var fields strings.Builder
	for _, key := range sortedKeys(stock) {
		value := stock[key]
		if value == nil {
			continue
		}
		writeField(&fields, key, value)
	}
	if fields.Len() == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<StockData>")
	writeField(&b, "ArticleNumber", formatValue(product["ArticleNumber"]))
	b.WriteString(fields.String())
	b.WriteString("</StockData>")
	return b.String()
}

func buildDynamicInputXML(input DynamicFieldInput) string {
	var b strings.Builder
	b.WriteString("<DynamicFieldOnProductInput>")
	writeField(&b, "ArticleNumber", input.ArticleNumber)
	writeField(&b, "Key", input.Key)
	writeField(&b, "ClearExistingListData", false)
	hasValues := false
	var values strings.Builder
	for _, loc := range input.ItemValues {
		if loc.Value == nil {
			continue
		}
		hasValues = true
		values.WriteString("<Localization>")
		writeField(&values, "Culture", loc.Culture)
		writeField(&values, "Value", loc.Value)
		values.WriteString("</Localization>")
	}
	if hasValues {
		b.WriteString("<ItemValues>" + values.String() + "</ItemValues>")
	} else {
		b.WriteString("<ItemValues />")
	}
	b.WriteString("<DynamicFieldItemListData /><DynamicFieldItemMultiLevelListData />")
	b.WriteString("</DynamicFieldOnProductInput>")
	return b.String()
}

func buildPriceListItemXML(item map[string]any) string {
	var b strings.Builder
	b.WriteString("<ArticlePriceListIncVat>")
	for _, key := range priceListFieldOrder {
		value, ok := item[key]
		if !ok || value == nil {
			continue
		}
		writeField(&b, key, value)
	}
	b.WriteString("</ArticlePriceListIncVat>")
	return b.String()
}

func asSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	case []map[string]any:
		out := make([]any, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out
	default:
		return nil
	}
}

func orDefault(v, def any) any {
	if v == nil {
		return def
	}
	return v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
