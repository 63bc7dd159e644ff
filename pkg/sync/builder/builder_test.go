package builder

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pellelindal/FEEDJetshop/pkg/coercion"
	"github.com/pellelindal/FEEDJetshop/pkg/feed"
	"github.com/pellelindal/FEEDJetshop/pkg/jetshop"
	"github.com/pellelindal/FEEDJetshop/pkg/mapping"
)

const testMapping = `
version: 1
cultures: ["sv-SE", "nb-NO"]
fallbacks:
  nb-NO: sv-SE
culture_map:
  sv-SE: sv
  nb-NO: nb
product_fields:
  - target: Name
    source: texts[name].value
    type: string
  - target: Description
    source: texts[desc].value
    type: string
    optional: true
  - target: Material
    source: attributes[material]
    type: string
    optional: true
stock_fields:
  - target: NewStockCount
    source: stock.count
    type: int
    coerce: coerce
  - target: DeliveryDate
    source: attributes[restock]
    type: date
    coerce: coerce
    optional: true
category_fields:
  source: categoryIds
  type: list
dynamic_fields_allowlist:
  - key: fsc
    source: attributes[fsc]
    type: string
    optional: true
dynamic_fields_auto_map:
  enabled: true
  coerce: coerce
  allowed_keys: ["color", "sizes", "width"]
price_lists:
  - price_list_id: "15"
    price_source: attributes[price]
    discounted_price_source: attributes[discount]
    discount_period_source: attributes[discount_period]
    hide_product_source: attributes[show]
    clear_discount_on_missing: true
    type: float
    coerce: coerce
`

const testProduct = `[{
  "identifier": {"productNo": "P-100"},
  "texts": [
    {"importCode": "name", "value": {"sv": "Stol", "nb": "Stol NO"}},
    {"importCode": "desc", "value": {"sv": "Beskrivning"}}
  ],
  "attributes": [
    {"importCode": "material", "dataType": "UNI_TEXT", "value": {"sv": "Ek"}},
    {"importCode": "restock", "dataType": "DATE"},
    {"importCode": "fsc", "dataType": "UNI_TEXT", "value": {}},
    {"importCode": "price", "dataType": "FLOAT", "value": "199.99"},
    {"importCode": "discount", "dataType": "FLOAT", "value": "0.00"},
    {"importCode": "show", "dataType": "BOOL"},
    {"importCode": "color", "dataType": "DATA_REGISTER", "value": "RED",
     "options": {"RED": {"sv": "Röd", "nb": "Rød"}}},
    {"importCode": "sizes", "dataType": "DATA_REGISTER_MULTI", "value": ["S", "M"],
     "options": {"S": {"sv": "Liten"}, "M": {"sv": "Mellan"}}},
    {"importCode": "width", "dataType": "FLOAT", "range": true, "value": ["10", "20"]},
    {"importCode": "secret", "dataType": "UNI_TEXT", "value": {"sv": "hemlig"}}
  ],
  "categoryIds": [10, 20],
  "stock": {"count": 5}
}]`

func testBuilder(t *testing.T) *Builder {
	t.Helper()
	cfg, err := mapping.Parse([]byte(testMapping))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, logger)
}

func testDocument(t *testing.T, payload string) feed.Document {
	t.Helper()
	docs, err := feed.DecodeDocuments([]byte(payload))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	return docs[0]
}

func TestBuildProductFieldsPerCulture(t *testing.T) {
	b := testBuilder(t)
	doc := testDocument(t, testProduct)

	d := b.Build(doc, "P-100")
	require.Empty(t, d.Errors)

	sv := d.ByCulture["sv-SE"]
	require.NotNil(t, sv)
	assert.Equal(t, "P-100", sv["ArticleNumber"])
	assert.Equal(t, "sv-SE", sv["Culture"])
	assert.Equal(t, "Stol", sv["Name"])
	assert.Equal(t, "Beskrivning", sv["Description"])
	assert.Equal(t, "Ek", sv["Material"])

	nb := d.ByCulture["nb-NO"]
	require.NotNil(t, nb)
	assert.Equal(t, "Stol NO", nb["Name"])
	// No nb value: falls back to the sv-SE culture chain.
	assert.Equal(t, "Beskrivning", nb["Description"])
	assert.Equal(t, "Ek", nb["Material"])
}

func TestBuildStockFields(t *testing.T) {
	b := testBuilder(t)
	doc := testDocument(t, testProduct)

	d := b.Build(doc, "P-100")
	require.Empty(t, d.Errors)

	assert.Equal(t, int64(5), d.Stock["NewStockCount"])
	// The restock attribute exists but its value was removed: date
	// fields clear with an explicit nil marker.
	assert.Equal(t, jetshop.Nil, d.Stock["DeliveryDate"])
}

func TestBuildMissingRequiredField(t *testing.T) {
	b := testBuilder(t)
	doc := testDocument(t, `[{
      "identifier": {"productNo": "P-2"},
      "attributes": [{"importCode": "price", "value": "10"}],
      "categoryIds": [],
      "stock": {"count": 0}
    }]`)

	d := b.Build(doc, "P-2")
	assert.Contains(t, d.Errors, "Name: missing required value")
}

func TestBuildCategories(t *testing.T) {
	b := testBuilder(t)
	doc := testDocument(t, testProduct)

	d := b.Build(doc, "P-100")
	require.True(t, d.HasCategories)
	assert.Equal(t, []string{"10", "20"}, d.Categories)
}

func TestBuildCategoriesRequiredWhenSourceMissing(t *testing.T) {
	b := testBuilder(t)
	doc := testDocument(t, `[{
      "identifier": {"productNo": "P-3"},
      "texts": [{"importCode": "name", "value": {"sv": "Bord"}}],
      "attributes": [{"importCode": "price", "value": "10"}],
      "stock": {"count": 0}
    }]`)

	d := b.Build(doc, "P-3")
	assert.True(t, d.HasCategories)
	assert.Empty(t, d.Categories)
	assert.Contains(t, d.Errors, "categories: missing required value")
}

func TestBuildCategoriesOptionalWhenSourceMissing(t *testing.T) {
	cfg, err := mapping.Parse([]byte(testMapping))
	require.NoError(t, err)
	cfg.Categories.Optional = true
	b := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	doc := testDocument(t, `[{
      "identifier": {"productNo": "P-3"},
      "texts": [{"importCode": "name", "value": {"sv": "Bord"}}],
      "attributes": [{"importCode": "price", "value": "10"}],
      "stock": {"count": 0}
    }]`)

	d := b.Build(doc, "P-3")
	assert.False(t, d.HasCategories)
	assert.Nil(t, d.Categories)
	assert.NotContains(t, d.Errors, "categories: missing required value")
}

func TestBuildDynamicFieldClearsRemovedValue(t *testing.T) {
	b := testBuilder(t)
	doc := testDocument(t, testProduct)

	d := b.Build(doc, "P-100")
	require.Empty(t, d.Errors)

	// fsc is present with an empty value object: active clearing.
	require.Contains(t, d.Dynamic, "fsc")
	assert.Equal(t, "", d.Dynamic["fsc"]["sv-SE"])
	assert.Equal(t, "", d.Dynamic["fsc"]["nb-NO"])
}

func TestAutoDynamicFields(t *testing.T) {
	b := testBuilder(t)
	doc := testDocument(t, testProduct)

	d := b.Build(doc, "P-100")
	require.Empty(t, d.Errors)

	require.Contains(t, d.Dynamic, "color")
	assert.Equal(t, "Röd", d.Dynamic["color"]["sv-SE"])
	assert.Equal(t, "Rød", d.Dynamic["color"]["nb-NO"])

	require.Contains(t, d.Dynamic, "sizes")
	assert.Equal(t, "Liten, Mellan", d.Dynamic["sizes"]["sv-SE"])
	// nb has no labels; the fallback feed language serves them.
	assert.Equal(t, "Liten, Mellan", d.Dynamic["sizes"]["nb-NO"])

	// width is a range attribute with a list value.
	assert.NotContains(t, d.Dynamic, "width")
	// secret is not on the allowlist.
	assert.NotContains(t, d.Dynamic, "secret")
}

func TestPriceListClearsZeroDiscountAndHidesProduct(t *testing.T) {
	b := testBuilder(t)
	doc := testDocument(t, testProduct)

	d := b.Build(doc, "P-100")
	require.Empty(t, d.Errors)
	require.Len(t, d.PriceLists, 1)

	item := d.PriceLists[0]
	assert.Equal(t, "P-100", item["ArticleNumber"])
	assert.Equal(t, "15", item["PriceListId"])
	price, ok := item["PriceIncVat"].(coercion.Decimal)
	require.True(t, ok)
	assert.Equal(t, "199.99", price.String())
	// A zero discount price clears the discount.
	assert.Equal(t, int64(-1), item["DiscountedPriceIncVat"])
	// The show attribute's value was removed: hide rather than expose.
	assert.Equal(t, true, item["HideProduct"])
	assert.Equal(t, false, item["UseDiscountDateSpan"])
}

func TestPriceListDiscountWithPeriod(t *testing.T) {
	b := testBuilder(t)
	doc := testDocument(t, `[{
      "identifier": {"productNo": "P-4"},
      "texts": [{"importCode": "name", "value": {"sv": "Bord"}}],
      "attributes": [
        {"importCode": "price", "value": "500"},
        {"importCode": "discount", "value": "450.50"},
        {"importCode": "discount_period",
         "value": ["2026-09-01T00:00:00", "2026-09-30T23:59:59"]},
        {"importCode": "show", "value": true}
      ],
      "categoryIds": ["7"],
      "stock": {"count": 1}
    }]`)

	d := b.Build(doc, "P-4")
	require.Empty(t, d.Errors)
	require.Len(t, d.PriceLists, 1)

	item := d.PriceLists[0]
	discount, ok := item["DiscountedPriceIncVat"].(coercion.Decimal)
	require.True(t, ok)
	assert.Equal(t, "450.5", discount.String())
	assert.Equal(t, true, item["UseDiscountDateSpan"])
	start, ok := item["DiscountStartDate"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2026, start.Year())
	assert.Equal(t, false, item["HideProduct"])
}

func TestPriceListMissingPrice(t *testing.T) {
	doc := testDocument(t, `[{
      "identifier": {"productNo": "P-5"},
      "texts": [{"importCode": "name", "value": {"sv": "Bord"}}],
      "attributes": [],
      "categoryIds": [],
      "stock": {"count": 0}
    }]`)

	b := testBuilder(t)
	d := b.Build(doc, "P-5")
	assert.Contains(t, d.Errors, "price_list:15 missing price")
	assert.Empty(t, d.PriceLists)

	cfg, err := mapping.Parse([]byte(testMapping))
	require.NoError(t, err)
	cfg.PriceLists[0].Optional = true
	opt := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	d = opt.Build(doc, "P-5")
	assert.NotContains(t, d.Errors, "price_list:15 missing price")
	assert.Empty(t, d.PriceLists)
}

func TestCategoryPayload(t *testing.T) {
	payload := CategoryPayload([]string{"10", "20"}, []string{"30"})
	require.Len(t, payload, 3)
	assert.Equal(t, map[string]any{"CategoryId": "10"}, payload[0])
	assert.Equal(t, map[string]any{
		"CategoryId":             "30",
		"ProductInCategoryState": "DeleteConnection",
		"SortOrder":              int64(0),
		"IsCanonical":            false,
	}, payload[2])
}

func TestAttributeValueRemoved(t *testing.T) {
	sel := mapping.ParseSelector("attributes[x]")
	assert.True(t, attributeValueRemoved(sel, map[string]any{"importCode": "x"}))
	assert.True(t, attributeValueRemoved(sel, map[string]any{"value": map[string]any{}}))
	assert.True(t, attributeValueRemoved(sel, map[string]any{
		"value": map[string]any{"sv": "", "nb": ""},
	}))
	assert.False(t, attributeValueRemoved(sel, map[string]any{
		"value": map[string]any{"sv": "Ek"},
	}))
	assert.False(t, attributeValueRemoved(sel, map[string]any{"value": "Ek"}))
	assert.False(t, attributeValueRemoved(mapping.ParseSelector("texts[x]"), map[string]any{}))
}
