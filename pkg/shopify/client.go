package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	gobreaker "github.com/sony/gobreaker/v2"

	pkgerrors "github.com/angelmondragon/easyrecs-backend/pkg/errors"
)

const (
	defaultAPIVersion           = "2025-01"
	defaultBaseURLTemplate      = "https://%s"
	responseBodyReadLimit int64 = 1024
)

var errTokenSourceRequired = errors.New("shopify token source is required")

const productNodesQuery = `query ProductNodes($ids: [ID!]!) {
  nodes(ids: $ids) {
    ... on Product {
      id
      title
      handle
      featuredImage { url altText }
      priceRange { minVariantPrice { amount currencyCode } }
      variants(first: 1) { edges { node { id } } }
    }
  }
}`

// TokenSource resolves the offline Admin API token for a shop.
type TokenSource interface {
	AccessToken(ctx context.Context, shopDomain string) (string, error)
}

// Client calls the Admin GraphQL API on behalf of installed shops.
type Client struct {
	httpClient      *http.Client
	baseURLTemplate string
	apiVersion      string
	tokens          TokenSource
	breaker         *gobreaker.CircuitBreaker[[]byte]
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURLTemplate overrides the per-shop base URL. The template receives
// the shop domain through a single %s verb.
func WithBaseURLTemplate(template string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(template); trimmed != "" {
			c.baseURLTemplate = trimmed
		}
	}
}

// WithAPIVersion pins the Admin API version segment.
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(version); trimmed != "" {
			c.apiVersion = trimmed
		}
	}
}

// WithTimeout sets the default HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithBreaker guards the HTTP exchange with cb. Token lookups and GraphQL
// level errors do not count against it.
func WithBreaker(cb *gobreaker.CircuitBreaker[[]byte]) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// NewClient builds an Admin API client.
func NewClient(tokens TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errTokenSourceRequired
	}

	client := &Client{
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		baseURLTemplate: defaultBaseURLTemplate,
		apiVersion:      defaultAPIVersion,
		tokens:          tokens,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Image is a product's featured image.
type Image struct {
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
}

// Money is an amount in a shop currency.
type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

// Product is the storefront-ready detail for a recommended product.
type Product struct {
	ID            string `json:"id"`
	Title         string `json:"title,omitempty"`
	Handle        string `json:"handle,omitempty"`
	FeaturedImage *Image `json:"featuredImage,omitempty"`
	MinPrice      *Money `json:"price,omitempty"`
	VariantID     string `json:"variantId,omitempty"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type productNode struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Handle        string `json:"handle"`
	FeaturedImage *struct {
		URL     string `json:"url"`
		AltText string `json:"altText"`
	} `json:"featuredImage"`
	PriceRange *struct {
		MinVariantPrice struct {
			Amount       decimal.Decimal `json:"amount"`
			CurrencyCode string          `json:"currencyCode"`
		} `json:"minVariantPrice"`
	} `json:"priceRange"`
	Variants struct {
		Edges []struct {
			Node struct {
				ID string `json:"id"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

// Products hydrates the given product ids in input order. Ids that no longer
// resolve to a product are skipped.
func (c *Client) Products(ctx context.Context, shopDomain string, ids []string) ([]Product, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shopify client not configured")
	}
	if len(ids) == 0 {
		return []Product{}, nil
	}

	gids := make([]string, 0, len(ids))
	for _, id := range ids {
		if gid := ProductGID(id); gid != "" {
			gids = append(gids, gid)
		}
	}

	var resp struct {
		Data struct {
			Nodes []*productNode `json:"nodes"`
		} `json:"data"`
	}
	if err := c.do(ctx, shopDomain, graphQLRequest{
		Query:     productNodesQuery,
		Variables: map[string]any{"ids": gids},
	}, &resp); err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(resp.Data.Nodes))
	for _, node := range resp.Data.Nodes {
		if node == nil || node.ID == "" {
			continue
		}
		products = append(products, node.toProduct())
	}
	return products, nil
}

func (n *productNode) toProduct() Product {
	p := Product{ID: n.ID, Title: n.Title, Handle: n.Handle}
	if n.FeaturedImage != nil && n.FeaturedImage.URL != "" {
		p.FeaturedImage = &Image{URL: n.FeaturedImage.URL, AltText: n.FeaturedImage.AltText}
	}
	if n.PriceRange != nil {
		p.MinPrice = &Money{
			Amount:       n.PriceRange.MinVariantPrice.Amount,
			CurrencyCode: n.PriceRange.MinVariantPrice.CurrencyCode,
		}
	}
	if len(n.Variants.Edges) > 0 {
		p.VariantID = n.Variants.Edges[0].Node.ID
	}
	return p
}

func (c *Client) do(ctx context.Context, shopDomain string, body graphQLRequest, out any) error {
	token, err := c.tokens.AccessToken(ctx, shopDomain)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve shop access token")
	}
	if strings.TrimSpace(token) == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, "shop has no access token")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal graphql request")
	}

	var raw []byte
	if c.breaker != nil {
		raw, err = c.breaker.Execute(func() ([]byte, error) {
			return c.exchange(ctx, shopDomain, token, payload)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "shopify admin api unavailable")
		}
	} else {
		raw, err = c.exchange(ctx, shopDomain, token, payload)
	}
	if err != nil {
		return err
	}

	var envelope struct {
		Errors []graphQLError `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode graphql response")
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Message)
		}
		return pkgerrors.New(pkgerrors.CodeDependency, "graphql errors: "+strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode graphql data")
	}
	return nil
}

// exchange performs the HTTP round trip and returns the raw 200 body.
func (c *Client) exchange(ctx context.Context, shopDomain, token string, payload []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphQLURL(shopDomain), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build graphql request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Shopify-Access-Token", token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute graphql request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "graphql request failed")
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read graphql response")
	}
	return raw, nil
}

func (c *Client) graphQLURL(shopDomain string) string {
	base := strings.TrimRight(fmt.Sprintf(c.baseURLTemplate, shopDomain), "/")
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", base, c.apiVersion)
}
