package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pellelindal/FEEDJetshop/pkg/transport"
)

const (
	pageSize         = 20
	tokenExpirySlack = 60 * time.Second
	maxLoggedBody    = 4000
)

// ClientOptions configure the feed export client.
type ClientOptions struct {
	TokenURL     string
	ExportURL    string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	Retry        transport.RetryConfig
}

// Client talks to the feed export API using OAuth client-credentials
// tokens cached until shortly before expiry.
type Client struct {
	opts    ClientOptions
	http    *http.Client
	logger  *slog.Logger
	baseURL string

	token        string
	tokenExpires time.Time
	now          func() time.Time
}

// NewClient builds a feed client. The base URL for non-export endpoints
// is derived from the export URL's scheme and host.
func NewClient(opts ClientOptions, logger *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		opts:    opts,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
		baseURL: deriveBaseURL(opts.ExportURL),
		now:     time.Now,
	}
}

func deriveBaseURL(exportURL string) string {
	u, err := url.Parse(exportURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(exportURL, "/")
	}
	return u.Scheme + "://" + u.Host
}

// Token returns a valid access token, fetching a new one when the
// cached token is within a minute of expiry.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.token != "" && c.now().Before(c.tokenExpires.Add(-tokenExpirySlack)) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.opts.ClientID},
		"client_secret": {c.opts.ClientSecret},
	}
	body, err := c.do(ctx, http.MethodPost, c.opts.TokenURL,
		strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	if err != nil {
		c.logger.Error("feed token request failed", "error", err)
		return "", fmt.Errorf("feed token: %w", err)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("feed token: decode response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("feed token: response missing access_token")
	}
	expiresIn := payload.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	c.token = payload.AccessToken
	c.tokenExpires = c.now().Add(time.Duration(expiresIn) * time.Second)
	c.logger.Info("feed token acquired",
		"token", redactToken(payload.AccessToken),
		"expires_in", expiresIn)
	return c.token, nil
}

func redactToken(token string) string {
	if len(token) <= 6 {
		return fmt.Sprintf("...%d", len(token))
	}
	return fmt.Sprintf("%s...%d", token[:6], len(token))
}

type exportPage struct {
	Content          []Document `json:"content"`
	TotalPages       *int       `json:"totalPages"`
	Last             *bool      `json:"last"`
	NumberOfElements *int       `json:"numberOfElements"`
	Pageable         *struct {
		Paged   bool `json:"paged"`
		Unpaged bool `json:"unpaged"`
	} `json:"pageable"`
}

// FetchProducts pulls every changed product since exportFrom, walking
// the paged export endpoint. productNo restricts the export to a single
// product; limit, when positive, truncates the result.
func (c *Client) FetchProducts(ctx context.Context, exportFrom string, productNo string, limit int) ([]Document, error) {
	start := time.Now()
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	exportURL := strings.TrimRight(c.opts.ExportURL, "/")
	exportURL = strings.TrimSuffix(exportURL, "/full")

	var all []Document
	var totalPages *int
	page := 0

	for {
		params := url.Values{}
		params.Set("showInactive", "true")
		params.Set("orderByLanguageCode", "nb")
		params.Set("dateFormat", "SHORT")
		params.Set("page", strconv.Itoa(page))
		params.Set("size", strconv.Itoa(pageSize))
		params.Set("exportFrom", exportFrom)
		params.Set("changesOnly", "true")
		params.Set("includeDeleted", "true")
		params.Set("includeModifiedByBasedata", "true")
		params.Set("productHeadOnly", "false")
		params.Set("includeOptions", "true")
		params.Set("includeLastModifiedTimestamp", "false")
		if productNo != "" {
			params.Set("productNo", productNo)
		}

		body, err := c.do(ctx, http.MethodPost, exportURL+"?"+params.Encode(), nil,
			map[string]string{
				"Authorization": "Bearer " + token,
				"Accept":        "application/json",
			})
		if err != nil {
			c.logger.Error("feed fetch failed",
				"product_no", productNo,
				"page", page,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err)
			return nil, fmt.Errorf("feed export page %d: %w", page, err)
		}
		c.logResponse("export", body, page)

		var payload exportPage
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("feed export page %d: decode: %w", page, err)
		}
		all = append(all, payload.Content...)

		if limit > 0 && len(all) >= limit {
			all = all[:limit]
			break
		}
		if payload.TotalPages != nil {
			totalPages = payload.TotalPages
		}
		if payload.Last != nil && *payload.Last {
			break
		}
		if totalPages != nil && page >= max(*totalPages-1, 0) {
			break
		}
		if payload.Pageable != nil && (!payload.Pageable.Paged || payload.Pageable.Unpaged) {
			break
		}
		if payload.NumberOfElements != nil && *payload.NumberOfElements == 0 {
			break
		}
		if payload.NumberOfElements == nil && len(payload.Content) == 0 {
			break
		}
		page++
	}

	if totalPages != nil && *totalPages > 1 {
		c.logger.Info("feed export paged",
			"total_pages", *totalPages,
			"pages_fetched", page+1)
	}
	c.logger.Info("feed fetch complete",
		"products", len(all),
		"product_no", productNo,
		"duration_ms", time.Since(start).Milliseconds())
	return all, nil
}

// FetchMediaBase64 downloads a media asset as a base64 string.
func (c *Client) FetchMediaBase64(ctx context.Context, mediaCode string) (string, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return "", err
	}
	u := c.baseURL + "/media/export/base64/mediaCode?" + url.Values{"mediaCode": {mediaCode}}.Encode()
	body, err := c.do(ctx, http.MethodGet, u, nil, map[string]string{
		"Authorization": "Bearer " + token,
		"Accept":        "text/plain",
	})
	if err != nil {
		c.logger.Error("feed media fetch failed", "media_code", mediaCode, "error", err)
		return "", fmt.Errorf("feed media %s: %w", mediaCode, err)
	}
	c.logResponse("media_base64", body, 0)
	return strings.TrimSpace(string(body)), nil
}

// do runs one HTTP request under the retry policy and returns the body
// of a 2xx response.
func (c *Client) do(ctx context.Context, method, rawURL string, reqBody io.Reader, headers map[string]string) ([]byte, error) {
	// The request body has to be rebuildable per attempt.
	var bodyBytes []byte
	if reqBody != nil {
		var err error
		bodyBytes, err = io.ReadAll(reqBody)
		if err != nil {
			return nil, err
		}
	}

	return transport.WithRetry(ctx, c.retryConfig(), func(int) ([]byte, error) {
		var rd io.Reader
		if bodyBytes != nil {
			rd = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
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
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &transport.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		return body, nil
	})
}

func (c *Client) retryConfig() transport.RetryConfig {
	cfg := c.opts.Retry
	if cfg.RetryIf == nil {
		cfg.RetryIf = transport.IsTransient()
	}
	if cfg.Backoff == "" {
		cfg.Backoff = transport.BackoffExponential
	}
	if cfg.Logger == nil {
		cfg.Logger = c.logger
	}
	return cfg
}

func (c *Client) logResponse(api string, body []byte, page int) {
	text, truncated, length := transport.TruncateBody(string(body), maxLoggedBody)
	c.logger.Debug("feed api response",
		"api", api,
		"page", page,
		"response_length", length,
		"response_truncated", truncated,
		"response_body", text)
}
