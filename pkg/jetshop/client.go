package jetshop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pellelindal/FEEDJetshop/pkg/transport"
)

// ClientOptions configure the SOAP client.
type ClientOptions struct {
	URL        string
	Username   string
	Password   string
	ShopID     string
	HeaderXML  string
	TemplateID string
	Timeout    time.Duration
	Retry      transport.RetryConfig
}

// Client talks SOAP 1.2 to the destination shop API.
type Client struct {
	opts      ClientOptions
	http      *http.Client
	logger    *slog.Logger
	headerXML string
}

// NewClient builds a destination client. An explicit HeaderXML wins
// over the default ShopId header.
func NewClient(opts ClientOptions, logger *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		opts:      opts,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
		headerXML: buildHeaderXML(opts.HeaderXML, opts.ShopID),
	}
}

// TemplateID returns the destination template id for product writes.
func (c *Client) TemplateID() string {
	return c.opts.TemplateID
}

// ProductGet reads a product's current state for one culture. A nil
// result with nil error means the product does not exist yet.
func (c *Client) ProductGet(ctx context.Context, culture, articleNumber string) (ProductData, error) {
	body := fmt.Sprintf(`<Product_Get xmlns="%s">
  <productOptions>
    <ArticleNumber>%s</ArticleNumber>
    <Culture>%s</Culture>
  </productOptions>
</Product_Get>`, wsNS, escape(articleNumber), escape(culture))

	root, err := c.post(ctx, body, "Product_Get")
	if err != nil {
		return nil, err
	}
	product := findProductData(root, articleNumber)
	if product == nil {
		return nil, nil
	}
	result := ProductData{
		"ArticleNumber":       product.childText("ArticleNumber"),
		"Culture":             product.childText("Culture"),
		"Name":                product.childText("Name"),
		"SubName":             product.childText("SubName"),
		"ShortDescription":    product.childText("ShortDescription"),
		"ProductDescription":  product.childText("ProductDescription"),
		"Price":               product.childText("Price"),
		"EanCode":             product.childText("EanCode"),
		"ProductInCategories": parseCategories(product),
		"StockData":           parseStock(product),
	}
	c.logger.Debug("destination product read",
		"article_number", articleNumber,
		"culture", culture,
		"categories", result["ProductInCategories"])
	return result, nil
}

func findProductData(root *node, articleNumber string) *node {
	candidates := root.findAll("ProductData")
	if len(candidates) == 0 {
		return nil
	}
	for _, n := range candidates {
		if n.childText("ArticleNumber") == articleNumber {
			return n
		}
	}
	return candidates[0]
}

func parseCategories(product *node) []string {
	var categories []string
	for _, item := range product.findAll("ProductInCategoryData") {
		id := strings.TrimSpace(item.descText("CategoryId"))
		if id != "" {
			categories = append(categories, id)
		}
	}
	return categories
}

func parseStock(product *node) map[string]any {
	stock := product.find("StockData")
	if stock == nil {
		return map[string]any{}
	}
	out := map[string]any{}
	setText := func(key string) {
		if v := stock.childText(key); v != "" {
			out[key] = v
		} else {
			out[key] = nil
		}
	}
	setInt := func(key string) {
		out[key] = parseIntText(stock.childText(key))
	}
	setText("DeliveryDate")
	setInt("NewStockCount")
	setInt("StockStatusId")
	setText("StockStatusName")
	out["UseAdvancedStatus"] = parseBoolText(stock.childText("UseAdvancedStatus"))
	setInt("StockStatusWhenOutOfStock")
	return out
}

func parseIntText(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// Some responses render counts as "42.0".
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return nil
	}
	return int64(f)
}

func parseBoolText(s string) any {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return nil
	}
}

// ProductAddUpdate writes one or more culture-specific product payloads
// and returns the per-article results.
func (c *Client) ProductAddUpdate(ctx context.Context, products []ProductData) ([]ProductResult, error) {
	var productsXML strings.Builder
	for _, p := range products {
		productsXML.WriteString(buildProductDataXML(p))
	}
	body := fmt.Sprintf(`<Product_AddUpdate xmlns="%s">
  <products>
    %s
  </products>
</Product_AddUpdate>`, wsNS, productsXML.String())

	root, err := c.post(ctx, body, "Product_AddUpdate")
	if err != nil {
		return nil, err
	}
	var results []ProductResult
	for _, item := range root.findAll("ProductResult") {
		status := item.childText("StatusMainProductCreateDelete")
		results = append(results, ProductResult{
			ArticleNumber: item.childText("ArticleNumber"),
			Culture:       item.childText("Culture"),
			Status:        status,
			Success:       addUpdateSuccessStatuses[status],
		})
	}
	return results, nil
}

// ProductDelete removes a product. A NotFound response is logged, not
// an error: the desired state is already in place.
func (c *Client) ProductDelete(ctx context.Context, articleNumber string) error {
	body := fmt.Sprintf(`<Product_Delete xmlns="%s">
  <productDeleteRequest>
    <ArticleNumber>%s</ArticleNumber>
    <AddRedirect>false</AddRedirect>
    <Redirects />
  </productDeleteRequest>
</Product_Delete>`, wsNS, escape(articleNumber))

	root, err := c.post(ctx, body, "Product_Delete")
	if err != nil {
		return err
	}
	if containsText(root, "NotFound") {
		c.logger.Info("destination delete: product not found",
			"article_number", articleNumber)
	}
	return nil
}

func containsText(n *node, needle string) bool {
	if strings.Contains(n.text, needle) {
		return true
	}
	for _, c := range n.children {
		if containsText(c, needle) {
			return true
		}
	}
	return false
}

// DynamicFieldsGet reads the current dynamic-field values for a set of
// articles, keyed by field key then culture.
func (c *Client) DynamicFieldsGet(ctx context.Context, articleNumbers, cultures []string) (map[string]map[string]string, error) {
	var articlesXML, culturesXML strings.Builder
	for _, num := range articleNumbers {
		fmt.Fprintf(&articlesXML, "<string>%s</string>", escape(num))
	}
	for _, culture := range cultures {
		fmt.Fprintf(&culturesXML, "<string>%s</string>", escape(culture))
	}
	body := fmt.Sprintf(`<ProductDynamicField_GetProductDynamicFieldData xmlns="%s">
  <articleNumbers>
    %s
  </articleNumbers>
  <cultures>
    %s
  </cultures>
</ProductDynamicField_GetProductDynamicFieldData>`, wsNS, articlesXML.String(), culturesXML.String())

	root, err := c.post(ctx, body, "ProductDynamicField_GetProductDynamicFieldData")
	if err != nil {
		return nil, err
	}
	result := map[string]map[string]string{}
	for _, item := range root.findAll("DynamicFieldOnProductOutput") {
		key := item.childText("Key")
		if key == "" {
			continue
		}
		values, ok := result[key]
		if !ok {
			values = map[string]string{}
			result[key] = values
		}
		for _, loc := range item.findAll("Localization") {
			if culture := loc.childText("Culture"); culture != "" {
				values[culture] = loc.childText("Value")
			}
		}
	}
	return result, nil
}

// DynamicFieldsSave writes dynamic-field values and returns the per-key
// results.
func (c *Client) DynamicFieldsSave(ctx context.Context, inputs []DynamicFieldInput) ([]DynamicFieldResult, error) {
	var inputsXML strings.Builder
	for _, input := range inputs {
		inputsXML.WriteString(buildDynamicInputXML(input))
	}
	body := fmt.Sprintf(`<ProductDynamicField_SaveProductDynamicFieldData xmlns="%s">
  <dynamicFieldOnProductInputs>
    %s
  </dynamicFieldOnProductInputs>
</ProductDynamicField_SaveProductDynamicFieldData>`, wsNS, inputsXML.String())

	root, err := c.post(ctx, body, "ProductDynamicField_SaveProductDynamicFieldData")
	if err != nil {
		return nil, err
	}
	var results []DynamicFieldResult
	for _, item := range root.findAll("DynamicFieldItemResult") {
		results = append(results, DynamicFieldResult{
			Key:     item.childText("Key"),
			Success: strings.EqualFold(item.childText("Success"), "true"),
			Message: item.childText("Message"),
		})
	}
	return results, nil
}

// PriceListUpdate writes article price-list entries.
func (c *Client) PriceListUpdate(ctx context.Context, items []map[string]any) error {
	var itemsXML strings.Builder
	for _, item := range items {
		itemsXML.WriteString(buildPriceListItemXML(item))
	}
	body := fmt.Sprintf(`<PriceList_UpdateArticleIncVAT xmlns="%s">
  <articlePriceLists>
    %s
  </articlePriceLists>
</PriceList_UpdateArticleIncVAT>`, wsNS, itemsXML.String())

	_, err := c.post(ctx, body, "PriceList_UpdateArticleIncVAT")
	return err
}

// post sends one SOAP request under the retry policy, checks for faults
// and returns the parsed response tree.
func (c *Client) post(ctx context.Context, bodyXML, operation string) (*node, error) {
	envelope := buildEnvelope(bodyXML, c.headerXML)
	start := time.Now()

	root, err := transport.WithRetry(ctx, c.retryConfig(), func(int) (*node, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, strings.NewReader(envelope))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
		req.Header.Set("Accept", "application/soap+xml")
		if c.opts.Username != "" {
			req.SetBasicAuth(c.opts.Username, c.opts.Password)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		parsed, parseErr := parseXML(body)
		if parsed != nil {
			if faultErr := checkFault(parsed); faultErr != nil {
				return nil, faultErr
			}
		}
		if resp.StatusCode >= 400 {
			return nil, &transport.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		if parseErr != nil {
			return nil, parseErr
		}
		return parsed, nil
	})

	duration := time.Since(start).Milliseconds()
	if err != nil {
		c.logger.Error("destination request failed",
			"operation", operation,
			"duration_ms", duration,
			"error", err)
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	c.logger.Info("destination request",
		"operation", operation,
		"duration_ms", duration)
	return root, nil
}

func (c *Client) retryConfig() transport.RetryConfig {
	cfg := c.opts.Retry
	if cfg.RetryIf == nil {
		cfg.RetryIf = retryTransientOnly()
	}
	if cfg.Backoff == "" {
		cfg.Backoff = transport.BackoffExponential
	}
	if cfg.Logger == nil {
		cfg.Logger = c.logger
	}
	return cfg
}

// retryTransientOnly retries transport failures but never SOAP faults:
// a fault is a definitive answer from the API.
func retryTransientOnly() transport.RetryCondition {
	transient := transport.IsTransient()
	return func(err error) bool {
		var fe *FaultError
		if errors.As(err, &fe) {
			return false
		}
		return transient(err)
	}
}
