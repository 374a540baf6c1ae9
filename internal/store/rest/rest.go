// Package rest talks to a remote list store over its REST API: list items are
// created and merged with JSON requests, binaries are added to folders and field
// choices are read from the field definition.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/debemdeboas/kable/internal/store"
	"github.com/debemdeboas/kable/internal/util"
)

const (
	maxResponseBytes  = 8 << 20  // 8 MiB
	maxErrorBodyBytes = 32 << 10 // 32 KiB

	jsonContentType = "application/json;odata=nometadata"
)

var restLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	restLogger = l
}

type Config struct {
	SiteURL string
	// Token is the opaque bearer credential of the hosting session.
	Token string

	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

type Client struct { // implements store.Handle
	site       string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New(cfg Config) (*Client, error) {
	if cfg.SiteURL == "" {
		return nil, fmt.Errorf("site URL is required")
	}
	u, err := url.Parse(cfg.SiteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("site URL must be absolute: %q", cfg.SiteURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		site:       strings.TrimRight(cfg.SiteURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
	}, nil
}

// Error is a non-2xx answer from the store.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// odataString quotes s for use inside an OData string literal in a URL path.
func odataString(s string) string {
	return "'" + url.PathEscape(strings.ReplaceAll(s, "'", "''")) + "'"
}

func (c *Client) listURL(list string) string {
	return c.site + "/_api/web/lists/getbytitle(" + odataString(list) + ")"
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader, headers map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", jsonContentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	restLogger.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Store request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &Error{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, errBody)}
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return respBody, nil
}

// errorMessage extracts the store's own message from an error body.
func errorMessage(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, p := range []string{"error.message.value", `odata\.error.message.value`, "error.message", "message"} {
			if v := gjson.GetBytes(body, p); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}

func (c *Client) CreateRecord(ctx context.Context, list string, payload store.Payload) (store.RecordID, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.listURL(list)+"/items", bytes.NewReader(body), map[string]string{
		"Content-Type": jsonContentType,
	})
	if err != nil {
		return 0, err
	}

	for _, p := range []string{"Id", "ID", "d.Id", "d.ID"} {
		if v := gjson.GetBytes(resp, p); v.Exists() && v.Int() > 0 {
			return store.RecordID(v.Int()), nil
		}
	}
	return 0, nil
}

func (c *Client) UpdateRecord(ctx context.Context, list string, id store.RecordID, payload store.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	target := fmt.Sprintf("%s/items(%d)", c.listURL(list), id)
	_, err = c.do(ctx, http.MethodPost, target, bytes.NewReader(body), map[string]string{
		"Content-Type":  jsonContentType,
		"X-HTTP-Method": "MERGE",
		"IF-MATCH":      "*",
	})
	return err
}

func (c *Client) UploadAsset(ctx context.Context, assetPath string, data []byte, opts store.UploadOptions) error {
	dir, name := util.SplitAssetPath(assetPath)
	if name == "" {
		return fmt.Errorf("asset path %q has no file name", assetPath)
	}

	target := fmt.Sprintf("%s/_api/web/GetFolderByServerRelativeUrl(%s)/Files/add(url=%s,overwrite=%t)",
		c.site, odataString(dir), odataString(name), opts.Overwrite)
	_, err := c.do(ctx, http.MethodPost, target, bytes.NewReader(data), map[string]string{
		"Content-Type": "application/octet-stream",
	})
	return err
}

func (c *Client) GetFieldChoices(ctx context.Context, list, field string) ([]string, error) {
	target := c.listURL(list) + "/fields/getbyinternalnameortitle(" + odataString(field) + ")"
	resp, err := c.do(ctx, http.MethodGet, target, nil, nil)
	if err != nil {
		return nil, err
	}

	choices := make([]string, 0)
	for _, p := range []string{"Choices", "Choices.results", "d.Choices.results"} {
		v := gjson.GetBytes(resp, p)
		if !v.IsArray() {
			continue
		}
		for _, choice := range v.Array() {
			choices = append(choices, choice.String())
		}
		return choices, nil
	}
	return choices, nil
}
