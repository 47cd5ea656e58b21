// Package ticketing talks to the support desk REST API.
package ticketing

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL   = "https://central-supportdesk.kayako.com/api/v1/"
	DefaultShimURL   = "https://nzm4zzomsptqgmle2tzhmxd27i0bednl.lambda-url.us-east-1.on.aws/api/v2/"
	DefaultRetryWait = 15 * time.Second

	maxAttempts    = 3
	requestTimeout = 30 * time.Second
)

type ClientConfig struct {
	BaseURL   string
	ShimURL   string
	RetryWait time.Duration
}

// Client is a thin REST client. Every call makes at most three attempts and
// only HTTP 429 is retried; any other failure yields a nil result.
type Client struct {
	rest    *resty.Client
	baseURL string
	shimURL string
	creds   Credentials
	logger  *zap.Logger
}

func NewClient(cfg ClientConfig, creds Credentials, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ShimURL == "" {
		cfg.ShimURL = DefaultShimURL
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = DefaultRetryWait
	}

	wait := cfg.RetryWait
	rest := resty.New().
		SetTimeout(requestTimeout).
		SetBasicAuth(creds.Email, creds.Password).
		SetHeader("Accept", "application/json").
		SetLogger(logger.Sugar()).
		SetRetryCount(maxAttempts-1).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(wait).
		SetRetryAfter(func(*resty.Client, *resty.Response) (time.Duration, error) {
			return wait, nil
		}).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r != nil && r.StatusCode() == http.StatusTooManyRequests
		}).
		AddRetryHook(func(r *resty.Response, _ error) {
			if r.Request.Attempt >= maxAttempts {
				return
			}
			logger.Warn("Rate limit reached, waiting before retrying",
				zap.String("url", r.Request.URL),
				zap.Int("attempt", r.Request.Attempt),
				zap.Duration("wait", wait))
		})

	return &Client{
		rest:    rest,
		baseURL: withTrailingSlash(cfg.BaseURL),
		shimURL: withTrailingSlash(cfg.ShimURL),
		creds:   creds,
		logger:  logger,
	}
}

func (c *Client) Get(ctx context.Context, endpoint string, shim bool) ([]byte, bool) {
	return c.do(ctx, http.MethodGet, endpoint, shim, nil, http.StatusOK)
}

func (c *Client) Post(ctx context.Context, endpoint string, shim bool, body any) ([]byte, bool) {
	return c.do(ctx, http.MethodPost, endpoint, shim, body, http.StatusCreated)
}

func (c *Client) Put(ctx context.Context, endpoint string, shim bool, body any) ([]byte, bool) {
	return c.do(ctx, http.MethodPut, endpoint, shim, body, http.StatusOK, http.StatusAccepted)
}

// Ping checks that the credentials are accepted.
func (c *Client) Ping(ctx context.Context) bool {
	if !c.creds.Complete() {
		c.logger.Warn("Missing ticketing credentials",
			zap.Bool("email", c.creds.Email != ""),
			zap.Bool("password", c.creds.Password != ""))
		return false
	}

	_, ok := c.Get(ctx, "departments.json", false)
	if ok {
		c.logger.Info("Ticketing connection successful")
	}
	return ok
}

func (c *Client) do(ctx context.Context, method, endpoint string, shim bool, body any, accepted ...int) ([]byte, bool) {
	url := c.url(endpoint, shim)

	req := c.rest.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		c.logger.Error("Request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return nil, false
	}

	status := resp.StatusCode()
	c.logger.Debug("API call",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", status))

	if slices.Contains(accepted, status) {
		return resp.Body(), true
	}

	switch status {
	case http.StatusUnauthorized:
		c.logger.Error("Authentication failed", zap.String("endpoint", endpoint))
	case http.StatusNotFound:
		c.logger.Error("Resource not found", zap.String("endpoint", endpoint))
	case http.StatusTooManyRequests:
		c.logger.Error("Rate limit retries exhausted",
			zap.String("endpoint", endpoint),
			zap.Int("attempts", resp.Request.Attempt))
	default:
		c.logger.Error("Unexpected response status",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int("status", status))
	}
	return nil, false
}

func (c *Client) url(endpoint string, shim bool) string {
	base := c.baseURL
	if shim {
		base = c.shimURL
	}
	return base + strings.TrimPrefix(endpoint, "/")
}

func withTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
