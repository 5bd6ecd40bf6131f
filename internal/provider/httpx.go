package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxResponseBytes = 1 << 20

// Client wraps an HTTP client with a per-provider rate limiter and maps
// provider responses onto the adapter error taxonomy.
type Client struct {
	provider Type
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient builds a provider HTTP client. rps bounds outbound request rate;
// zero means unlimited.
func NewClient(provider Type, timeout time.Duration, rps float64) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Client{
		provider: provider,
		http:     &http.Client{Timeout: timeout},
		limiter:  limiter,
	}
}

// GetJSON performs a GET and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, op, endpoint string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return WrapError(c.provider, op, CodeInvalidConfig, err)
	}
	return c.doJSON(op, req, header, out)
}

// PostForm performs a form POST and decodes the JSON response into out.
func (c *Client) PostForm(ctx context.Context, op, endpoint string, form map[string]string, out any) error {
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return WrapError(c.provider, op, CodeInvalidConfig, err)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.doJSON(op, req, header, out)
}

// PostJSON performs a JSON POST and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, op, endpoint string, header http.Header, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return WrapError(c.provider, op, CodeInvalidConfig, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(encoded)))
	if err != nil {
		return WrapError(c.provider, op, CodeInvalidConfig, err)
	}
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")
	return c.doJSON(op, req, header, out)
}

func (c *Client) doJSON(op string, req *http.Request, header http.Header, out any) error {
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if err := c.limiter.Wait(req.Context()); err != nil {
		return WrapError(c.provider, op, CodeUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return WrapError(c.provider, op, CodeUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return WrapError(c.provider, op, CodeUnavailable, err)
	}
	if err := c.mapStatus(op, resp, body); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return WrapError(c.provider, op, CodeUnavailable, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) mapStatus(op string, resp *http.Response, body []byte) error {
	status := resp.StatusCode
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return NewError(c.provider, op, CodeAuthExpired, summarizeBody(body))
	case status == http.StatusForbidden:
		return NewError(c.provider, op, CodeAuthRejected, summarizeBody(body))
	case status == http.StatusTooManyRequests:
		e := NewError(c.provider, op, CodeRateLimited, summarizeBody(body))
		if after := resp.Header.Get("Retry-After"); after != "" {
			if secs, err := strconv.Atoi(after); err == nil && secs > 0 {
				e.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return e
	case status >= 400 && status < 500:
		return NewError(c.provider, op, CodeInvalidConfig, summarizeBody(body))
	default:
		return NewError(c.provider, op, CodeUnavailable, fmt.Sprintf("status %d: %s", status, summarizeBody(body)))
	}
}

func summarizeBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 256 {
		text = text[:256]
	}
	return text
}

// ReadString returns the first present key from a config map as a string.
func ReadString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key]; ok {
			switch v := value.(type) {
			case string:
				return v
			default:
				encoded, err := json.Marshal(v)
				if err == nil {
					return strings.Trim(string(encoded), "\"")
				}
			}
		}
	}
	return ""
}
