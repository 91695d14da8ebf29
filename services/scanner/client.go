// Package scanner enumerates the shop's full catalog through its
// result-capped search endpoint by walking a prefix frontier.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"vitasana-backend/lib/telemetry"
	"vitasana-backend/lib/textutil"
	"vitasana-backend/services/auth"
)

var tracer = otel.Tracer("services/scanner")

// MaxResults is the hard cap the search endpoint puts on one response.
// A response this long means the query matched more products than it
// returned.
const MaxResults = 40

// ErrUnauthorized means the session cookies were rejected. The caller
// should refresh the session before trying again.
var ErrUnauthorized = auth.ErrUnauthorized

// QuerySemantics describes how the remote endpoint matches a query
// against product names.
type QuerySemantics string

const (
	SemanticsStartsWith QuerySemantics = "starts_with"
	SemanticsContains   QuerySemantics = "contains"
)

// Product is one search hit.
type Product struct {
	Sku         int64
	Name        string
	Stock       int64
	Price       float64
	ImageUrl    string
	Description string
}

// SessionSource provides cookies for search requests. Satisfied by
// auth.Session.
type SessionSource interface {
	GetSessionConfig(ctx context.Context) (auth.SessionConfig, error)
	Invalidate()
}

type ClientOptions struct {
	BaseUrl string
	// SearchPath is the endpoint relative to BaseUrl, defaulting to
	// "/recherche".
	SearchPath string
	Session    SessionSource
}

// Client wraps the shop's search endpoint.
type Client struct {
	http       *resty.Client
	searchPath string
	session    SessionSource
}

func NewClient(opts ClientOptions) *Client {
	searchPath := opts.SearchPath
	if searchPath == "" {
		searchPath = "/recherche"
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "services/scanner/http")

	return &Client{
		http:       client,
		searchPath: searchPath,
		session:    opts.Session,
	}
}

// The endpoint is inconsistent about numeric fields, sometimes sending
// them as JSON numbers and sometimes as formatted strings, so they are
// decoded as any and coerced afterwards.
type searchResult struct {
	Sku          any    `json:"sku"`
	Id           any    `json:"id"`
	Name         string `json:"name"`
	Images       string `json:"images"`
	Description  string `json:"description"`
	Stock        any    `json:"stock_1"`
	StockAlt     any    `json:"stock"`
	RegularPrice any    `json:"regular_price"`
}

func lenientInt(v any) (int64, bool) {
	switch v := v.(type) {
	case float64:
		return int64(v), true
	case string:
		return textutil.LenientInt(v)
	}
	return 0, false
}

func lenientFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case string:
		return textutil.LenientFloat(v)
	}
	return 0, false
}

// sku prefers the explicit sku field and falls back to the id. ok is
// false when neither parses, in which case the hit cannot be stored.
func (r searchResult) sku() (int64, bool) {
	if sku, ok := lenientInt(r.Sku); ok {
		return sku, true
	}
	return lenientInt(r.Id)
}

func (r searchResult) stock() int64 {
	if stock, ok := lenientInt(r.Stock); ok {
		return stock
	}
	stock, _ := lenientInt(r.StockAlt)
	return stock
}

// Search queries the endpoint for one term. A malformed or failed
// (non-auth) response degrades to an empty result so a single flaky
// page cannot kill a scan; transport errors and rejected sessions are
// returned to the caller.
func (c *Client) Search(ctx context.Context, query string) ([]Product, error) {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()

	session, err := c.session.GetSessionConfig(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to get session")
		return nil, err
	}

	res, err := session.Apply(c.http.R()).
		SetContext(ctx).
		SetQueryParam("title", query).
		SetHeader("accept", "application/json").
		Get(c.searchPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search request failed")
		return nil, err
	}

	status := res.StatusCode()
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.session.Invalidate()
		span.SetStatus(codes.Error, "session rejected")
		return nil, fmt.Errorf("query %q: %w", query, ErrUnauthorized)
	}
	if status != http.StatusOK {
		slog.WarnContext(ctx, "search returned unexpected status", "query", query, "status", status)
		return nil, nil
	}

	var results []searchResult
	if err := json.Unmarshal(res.Body(), &results); err != nil {
		slog.WarnContext(ctx, "search returned unparsable body", "query", query, "err", err)
		return nil, nil
	}

	products := make([]Product, 0, len(results))
	for _, result := range results {
		sku, ok := result.sku()
		if !ok {
			slog.WarnContext(ctx, "search hit without a usable sku", "query", query, "name", result.Name)
			continue
		}
		price, _ := lenientFloat(result.RegularPrice)
		products = append(products, Product{
			Sku:         sku,
			Name:        result.Name,
			Stock:       result.stock(),
			Price:       price,
			ImageUrl:    result.Images,
			Description: result.Description,
		})
	}
	return products, nil
}
