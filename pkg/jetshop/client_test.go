package jetshop

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func soapServer(t *testing.T, handler func(body string) string) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "application/soap+xml; charset=utf-8", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/soap+xml")
		fmt.Fprint(w, handler(string(body)))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(ClientOptions{
		URL:        srv.URL,
		Username:   "user",
		Password:   "pass",
		ShopID:     "123",
		TemplateID: "7",
	}, testLogger())
	return srv, c
}

func envelope(inner string) string {
	return `<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body xmlns="WebServiceProvider">` + inner + `</soap:Body>
</soap:Envelope>`
}

func TestProductGetParsesCurrentState(t *testing.T) {
	_, c := soapServer(t, func(body string) string {
		assert.Contains(t, body, "<ShopId>123</ShopId>")
		assert.Contains(t, body, "<ArticleNumber>A-1</ArticleNumber>")
		assert.Contains(t, body, "<Culture>sv-SE</Culture>")
		return envelope(`
<Product_GetResponse>
  <Product_GetResult>
    <ProductData>
      <ArticleNumber>A-1</ArticleNumber>
      <Culture>sv-SE</Culture>
      <Name>Stol</Name>
      <Price>199.9900</Price>
      <ProductInCategories>
        <ProductInCategoryData><CategoryId> 42 </CategoryId></ProductInCategoryData>
        <ProductInCategoryData><CategoryId>999</CategoryId></ProductInCategoryData>
      </ProductInCategories>
      <StockData>
        <NewStockCount>5</NewStockCount>
        <UseAdvancedStatus>true</UseAdvancedStatus>
      </StockData>
    </ProductData>
  </Product_GetResult>
</Product_GetResponse>`)
	})

	product, err := c.ProductGet(context.Background(), "sv-SE", "A-1")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, "A-1", product["ArticleNumber"])
	assert.Equal(t, "Stol", product["Name"])
	assert.Equal(t, "199.9900", product["Price"])
	assert.Equal(t, []string{"42", "999"}, product["ProductInCategories"])

	stock, ok := product["StockData"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(5), stock["NewStockCount"])
	assert.Equal(t, true, stock["UseAdvancedStatus"])
}

func TestProductGetMissingProduct(t *testing.T) {
	_, c := soapServer(t, func(string) string {
		return envelope(`<Product_GetResponse><Product_GetResult /></Product_GetResponse>`)
	})
	product, err := c.ProductGet(context.Background(), "sv-SE", "A-404")
	require.NoError(t, err)
	assert.Nil(t, product)
}

func TestProductAddUpdateResults(t *testing.T) {
	_, c := soapServer(t, func(body string) string {
		assert.Contains(t, body, "<Product_AddUpdate")
		return envelope(`
<Product_AddUpdateResponse>
  <Product_AddUpdateResult>
    <ProductResult>
      <ArticleNumber>A-1</ArticleNumber>
      <Culture>sv-SE</Culture>
      <StatusMainProductCreateDelete>SuccessUpdate</StatusMainProductCreateDelete>
    </ProductResult>
    <ProductResult>
      <ArticleNumber>A-1</ArticleNumber>
      <Culture>nb-NO</Culture>
      <StatusMainProductCreateDelete>ErrorValidation</StatusMainProductCreateDelete>
    </ProductResult>
  </Product_AddUpdateResult>
</Product_AddUpdateResponse>`)
	})

	results, err := c.ProductAddUpdate(context.Background(), []ProductData{
		{"ArticleNumber": "A-1", "Culture": "sv-SE", "Name": "Stol"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, "SuccessUpdate", results[0].Status)
	assert.False(t, results[1].Success)
	assert.Equal(t, "nb-NO", results[1].Culture)
}

func TestProductDeleteToleratesNotFound(t *testing.T) {
	_, c := soapServer(t, func(body string) string {
		assert.Contains(t, body, "<AddRedirect>false</AddRedirect>")
		return envelope(`<Product_DeleteResponse><Product_DeleteResult>NotFound</Product_DeleteResult></Product_DeleteResponse>`)
	})
	assert.NoError(t, c.ProductDelete(context.Background(), "A-404"))
}

func TestDynamicFieldsGetAndSave(t *testing.T) {
	_, c := soapServer(t, func(body string) string {
		if strings.Contains(body, "GetProductDynamicFieldData") {
			return envelope(`
<Response>
  <DynamicFieldOnProductOutput>
    <Key>atr_material</Key>
    <ItemValues>
      <Localization><Culture>sv-SE</Culture><Value>Läder</Value></Localization>
      <Localization><Culture>nb-NO</Culture><Value>Lær</Value></Localization>
    </ItemValues>
  </DynamicFieldOnProductOutput>
</Response>`)
		}
		return envelope(`
<Response>
  <DynamicFieldItemResult>
    <Key>atr_material</Key>
    <Success>true</Success>
    <Message></Message>
  </DynamicFieldItemResult>
  <DynamicFieldItemResult>
    <Key>atr_missing</Key>
    <Success>false</Success>
    <Message>No dynamic field, connected to product, found with key.</Message>
  </DynamicFieldItemResult>
</Response>`)
	})

	current, err := c.DynamicFieldsGet(context.Background(), []string{"A-1"}, []string{"sv-SE", "nb-NO"})
	require.NoError(t, err)
	require.Contains(t, current, "atr_material")
	assert.Equal(t, "Läder", current["atr_material"]["sv-SE"])
	assert.Equal(t, "Lær", current["atr_material"]["nb-NO"])

	results, err := c.DynamicFieldsSave(context.Background(), []DynamicFieldInput{
		{ArticleNumber: "A-1", Key: "atr_material", ItemValues: []DynamicFieldLocalization{
			{Culture: "sv-SE", Value: "Läder"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Message, "No dynamic field")
}

func TestSoapFaultBecomesError(t *testing.T) {
	_, c := soapServer(t, func(string) string {
		return `<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <soap:Fault>
      <soap:Code><soap:Value>soap:Sender</soap:Value></soap:Code>
      <soap:Reason><soap:Text>Invalid article</soap:Text></soap:Reason>
    </soap:Fault>
  </soap:Body>
</soap:Envelope>`
	})
	_, err := c.ProductGet(context.Background(), "sv-SE", "A-1")
	require.Error(t, err)
	var fe *FaultError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "soap:Sender", fe.Code)
	assert.Equal(t, "Invalid article", fe.Reason)
}

func TestPriceListUpdate(t *testing.T) {
	var gotBody string
	_, c := soapServer(t, func(body string) string {
		gotBody = body
		return envelope(`<PriceList_UpdateArticleIncVATResponse />`)
	})
	err := c.PriceListUpdate(context.Background(), []map[string]any{
		{"ArticleNumber": "A-1", "PriceListId": "1", "PriceIncVat": "199.9900"},
	})
	require.NoError(t, err)
	assert.Contains(t, gotBody, "<ArticlePriceListIncVat>")
	assert.Contains(t, gotBody, "<PriceIncVat>199.9900</PriceIncVat>")
}
