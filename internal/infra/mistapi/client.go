package mistapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultHost    = "api.mist.com"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

var ErrMissingToken = errors.New("mist api token is not configured")

var statusMessages = map[int]string{
	http.StatusBadRequest:      "Bad Request. The API endpoint exists but its syntax/payload is incorrect, detail may be given",
	http.StatusUnauthorized:    "Unauthorized",
	http.StatusForbidden:       "Permission Denied",
	http.StatusNotFound:        "Not found. The API endpoint doesn't exist or resource doesn't exist",
	http.StatusTooManyRequests: "Too Many Request. The API Token used for the request reached the 5000 API Calls per hour threshold",
}

type Options struct {
	Host       string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client issues authenticated calls against the Mist REST API.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	logger  *zap.Logger
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

type Response struct {
	Status int
	Data   json.RawMessage
	// Next is the pagination link reported by the API, if any.
	Next string
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mist api returned HTTP %d: %s", e.Status, e.Message)
}

func NewClient(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := ParseHost(opts.Host)
	if err != nil {
		return nil, err
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: base,
		token:   strings.TrimSpace(opts.Token),
		http:    httpClient,
		logger:  logger.Named("mistapi"),
	}, nil
}

// ParseHost accepts a bare API host or a full base URL.
func ParseHost(host string) (*url.URL, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultHost
	}
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse mist host: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse mist host: missing host in %q", host)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}

func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	if !c.Configured() {
		return Response{}, ErrMissingToken
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	// req.Path is expected to carry already-escaped segments.
	target, err := url.Parse(c.baseURL.String() + "/" + strings.TrimPrefix(req.Path, "/"))
	if err != nil {
		return Response{}, fmt.Errorf("build request url: %w", err)
	}
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return Response{}, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+c.token)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("mist api request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read mist api response: %w", err)
	}
	c.logger.Debug("mist api call",
		zap.String("method", method),
		zap.String("path", target.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{Status: resp.StatusCode}, &APIError{
			Status:  resp.StatusCode,
			Message: errorMessage(resp.StatusCode, data),
		}
	}

	out := Response{Status: resp.StatusCode, Next: resp.Header.Get("X-Page-Next")}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 {
		if !json.Valid(trimmed) {
			return out, errors.New("mist api returned invalid JSON")
		}
		out.Data = json.RawMessage(trimmed)
	}
	if out.Next == "" {
		out.Next = nextFromBody(out.Data)
	}
	return out, nil
}

func errorMessage(status int, data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) > 0 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return string(data)
	}
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return "Unknown error"
}

func nextFromBody(data json.RawMessage) string {
	if len(data) == 0 || data[0] != '{' {
		return ""
	}
	var envelope struct {
		Next string `json:"next"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	return envelope.Next
}
