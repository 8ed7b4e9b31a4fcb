// Package client is a typed REST client for the quiz portal API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
)

const (
	apiPrefix   = "/api/v1"
	refreshPath = "/auth/refresh-token"
)

type Client struct {
	http    *resty.Client
	tokens  TokenStore
	refresh singleflight.Group
}

type Option func(*resty.Client)

func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

func WithRetry(count int) Option {
	return func(c *resty.Client) { c.SetRetryCount(count) }
}

// New builds a client for baseURL (the server root, without /api/v1).
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if tokens == nil {
		tokens = NewMemoryTokenStore(nil)
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+apiPrefix).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc, tokens: tokens}
}

func (c *Client) Tokens() TokenStore {
	return c.tokens
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	// anonymous requests carry no bearer token and are never refreshed.
	anonymous bool
}

func (c *Client) send(ctx context.Context, r request, accessToken string) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if r.query != nil {
		req.SetQueryParamsFromValues(r.query)
	}
	if r.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(r.body)
	}
	if !r.anonymous && accessToken != "" {
		req.SetAuthToken(accessToken)
	}
	resp, err := req.Execute(r.method, r.path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	return resp, nil
}

// do sends r. A 401 triggers one token refresh and one retry; if the refresh
// fails the caller gets ErrSessionExpired.
func (c *Client) do(ctx context.Context, r request) (*resty.Response, error) {
	access := ""
	if !r.anonymous {
		tokens, err := c.tokens.Load()
		if err != nil {
			return nil, err
		}
		if tokens != nil {
			access = tokens.AccessToken
		}
	}

	resp, err := c.send(ctx, r, access)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusUnauthorized && !r.anonymous {
		fresh, err := c.refreshTokens(ctx, access)
		if err != nil {
			return nil, err
		}
		if resp, err = c.send(ctx, r, fresh); err != nil {
			return nil, err
		}
		if resp.StatusCode() == http.StatusUnauthorized {
			return nil, ErrSessionExpired
		}
	}

	if resp.IsError() {
		return nil, newAPIError(resp.StatusCode(), resp.Body())
	}
	return resp, nil
}

// refreshTokens exchanges the stored refresh token once, even when several
// requests hit a 401 at the same time. stale is the access token that was rejected.
func (c *Client) refreshTokens(ctx context.Context, stale string) (string, error) {
	v, err, _ := c.refresh.Do("refresh", func() (any, error) {
		tokens, err := c.tokens.Load()
		if err != nil {
			return "", err
		}
		if tokens == nil || tokens.RefreshToken == "" {
			return "", ErrSessionExpired
		}
		// Another caller already refreshed.
		if tokens.AccessToken != stale {
			return tokens.AccessToken, nil
		}

		fresh, err := c.exchange(ctx, refreshPath, map[string]string{"refreshToken": tokens.RefreshToken})
		if err != nil {
			_ = c.tokens.Clear()
			return "", ErrSessionExpired
		}
		return fresh.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// exchange posts to a token endpoint and stores the returned tokens.
func (c *Client) exchange(ctx context.Context, path string, body any) (*Tokens, error) {
	resp, err := c.do(ctx, request{method: http.MethodPost, path: path, body: body, anonymous: true})
	if err != nil {
		return nil, err
	}
	var tokens Tokens
	if err := json.Unmarshal(resp.Body(), &tokens); err != nil {
		return nil, fmt.Errorf("decode tokens: %w", err)
	}
	if tokens.AccessToken == "" {
		return nil, errors.New("token response has no access token")
	}
	if err := c.tokens.Save(&tokens); err != nil {
		return nil, fmt.Errorf("save tokens: %w", err)
	}
	return &tokens, nil
}

func (c *Client) document(ctx context.Context, r request) (*Document, error) {
	resp, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w", r.method, r.path, err)
	}
	return &doc, nil
}

func getList[T any](ctx context.Context, c *Client, path string, params ListParams) (*ListResponse[T], error) {
	doc, err := c.document(ctx, request{method: http.MethodGet, path: path, query: params.Values()})
	if err != nil {
		return nil, err
	}
	return DecodeList[T](doc)
}

func single[T any](ctx context.Context, c *Client, r request) (*SingleResponse[T], error) {
	doc, err := c.document(ctx, r)
	if err != nil {
		return nil, err
	}
	return DecodeSingle[T](doc)
}
