// Package jetshop implements the destination shop's SOAP 1.2 API:
// product read/write, dynamic fields, price lists and deletes.
package jetshop

// NilValue is the sentinel for a field that must serialize as an
// explicit xsi:nil element, used to clear destination date fields.
type NilValue struct{}

// Nil is the singleton NilValue.
var Nil = NilValue{}

// ProductData is a culture-specific product payload or read result.
// Values are strings, numbers, bools, dates or Nil; StockData and
// ProductInCategories nest under their own keys.
type ProductData = map[string]any

// ProductResult is the per-article, per-culture outcome of an
// add/update call.
type ProductResult struct {
	ArticleNumber string
	Culture       string
	Status        string
	Success       bool
}

// addUpdateSuccessStatuses are the statuses the API reports for a
// successful create or update.
var addUpdateSuccessStatuses = map[string]bool{
	"SuccessNew":    true,
	"SuccessUpdate": true,
}

// DynamicFieldLocalization is one per-culture value of a dynamic field.
type DynamicFieldLocalization struct {
	Culture string
	Value   any
}

// DynamicFieldInput is one dynamic-field save request for an article.
type DynamicFieldInput struct {
	ArticleNumber string
	Key           string
	ItemValues    []DynamicFieldLocalization
}

// DynamicFieldResult is the per-key outcome of a dynamic-field save.
type DynamicFieldResult struct {
	Key     string
	Success bool
	Message string
}

// productDataFieldOrder is the element order the API expects inside
// ProductData.
var productDataFieldOrder = []string{
	"ArticleNumber",
	"Culture",
	"TemplateId",
	"Name",
	"SubName",
	"ShortDescription",
	"ProductDescription",
	"Price",
	"EanCode",
}

// priceListFieldOrder is the element order inside ArticlePriceListIncVat.
var priceListFieldOrder = []string{
	"ArticleNumber",
	"PriceListId",
	"PriceIncVat",
	"DiscountedPriceIncVat",
	"HideProduct",
	"DiscountedPriceIsMemberPrice",
	"UseDiscountDateSpan",
	"DiscountStartDate",
	"DiscountEndDate",
}
