package httpclient

import (
	"context"
	"errors"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response carries the vendor HTTP status alongside the raw body so callers
// can translate non-2xx responses themselves.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client wraps resty for outbound calls to payment vendors. It deliberately
// carries no client-level retry: retry policy for money-moving calls lives
// with the caller, which must reuse the same idempotency key per attempt.
type Client struct {
	r *resty.Client
}

// New creates a client with a 30s request timeout.
func New() *Client {
	r := resty.New().SetTimeout(30 * time.Second)
	return &Client{r: r}
}

// WithTimeout sets a custom request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.r.SetTimeout(d)
	return c
}

// WithBaseURL sets a base URL prefixed to request paths.
func (c *Client) WithBaseURL(base string) *Client {
	c.r.SetBaseURL(base)
	return c
}

// WithBearerToken sets a bearer token for authentication.
func (c *Client) WithBearerToken(token string) *Client {
	c.r.SetAuthToken(token)
	return c
}

// WithBasicAuth sets HTTP basic credentials.
func (c *Client) WithBasicAuth(user, pass string) *Client {
	c.r.SetBasicAuth(user, pass)
	return c
}

// WithHeader sets a header on every request.
func (c *Client) WithHeader(key, value string) *Client {
	c.r.SetHeader(key, value)
	return c
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.do(ctx, resty.MethodGet, url, nil, headers, false)
}

// PostJSON sends a POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, url string, body interface{}, headers map[string]string) (*Response, error) {
	return c.do(ctx, resty.MethodPost, url, body, headers, false)
}

// PostForm sends a POST with form-encoded data.
func (c *Client) PostForm(ctx context.Context, url string, data map[string]string, headers map[string]string) (*Response, error) {
	return c.do(ctx, resty.MethodPost, url, data, headers, true)
}

// PatchJSON sends a PATCH with a JSON body.
func (c *Client) PatchJSON(ctx context.Context, url string, body interface{}, headers map[string]string) (*Response, error) {
	return c.do(ctx, resty.MethodPatch, url, body, headers, false)
}

// PutJSON sends a PUT with a JSON body.
func (c *Client) PutJSON(ctx context.Context, url string, body interface{}, headers map[string]string) (*Response, error) {
	return c.do(ctx, resty.MethodPut, url, body, headers, false)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.do(ctx, resty.MethodDelete, url, nil, headers, false)
}

func (c *Client) do(ctx context.Context, method, url string, body interface{}, headers map[string]string, form bool) (*Response, error) {
	req := c.r.R().SetContext(ctx)
	for k, v := range headers {
		req.SetHeader(k, v)
	}
	if body != nil {
		if form {
			if data, ok := body.(map[string]string); ok {
				req.SetFormData(data)
			}
		} else {
			req.SetHeader("Content-Type", "application/json")
			req.SetBody(body)
		}
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// IsTimeout reports whether the transport error was a timeout or context
// deadline, as opposed to a connection-level failure.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Timeout()
	}
	return false
}
