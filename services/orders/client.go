package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"

	"vitasana-backend/lib/telemetry"
	"vitasana-backend/services/auth"
)

// WooOrder is an order as the WooCommerce REST API returns it.
type WooOrder struct {
	Id          int64      `json:"id"`
	Number      string     `json:"number"`
	Status      string     `json:"status"`
	DateCreated string     `json:"date_created"`
	Total       string     `json:"total"`
	Billing     WooBilling `json:"billing"`
	LineItems   []WooItem  `json:"line_items"`
}

type WooBilling struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type WooItem struct {
	Id       int64       `json:"id"`
	Name     string      `json:"name"`
	Sku      string      `json:"sku"`
	Quantity int64       `json:"quantity"`
	Price    json.Number `json:"price"`
}

type ClientOptions struct {
	// BaseUrl is the shop root; the wc/v3 path is appended here.
	BaseUrl        string
	ConsumerKey    string
	ConsumerSecret string
}

// Client pulls orders from the WooCommerce REST API.
type Client struct {
	http *resty.Client
}

func NewClient(opts ClientOptions) *Client {
	client := resty.New()
	client.SetBaseURL(opts.BaseUrl + "/wp-json/wc/v3")
	client.SetBasicAuth(opts.ConsumerKey, opts.ConsumerSecret)
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "services/orders/http")

	return &Client{http: client}
}

const ordersPerPage = 50

// FetchOrders pulls every order with one of the given statuses,
// paginating until the API runs out. An empty status list fetches all.
func (c *Client) FetchOrders(ctx context.Context, statuses []string) ([]WooOrder, error) {
	ctx, span := tracer.Start(ctx, "FetchOrders")
	defer span.End()

	var all []WooOrder
	for page := 1; ; page++ {
		req := c.http.R().
			SetContext(ctx).
			SetQueryParam("per_page", fmt.Sprintf("%d", ordersPerPage)).
			SetQueryParam("page", fmt.Sprintf("%d", page))
		if len(statuses) > 0 {
			req.SetQueryParam("status", strings.Join(statuses, ","))
		}

		res, err := req.Get("/orders")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "orders request failed")
			return nil, err
		}
		status := res.StatusCode()
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			span.SetStatus(codes.Error, "credentials rejected")
			return nil, fmt.Errorf("woocommerce: %w", auth.ErrUnauthorized)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("woocommerce: unexpected status %d on page %d", status, page)
		}

		var orders []WooOrder
		if err := json.Unmarshal(res.Body(), &orders); err != nil {
			return nil, fmt.Errorf("woocommerce: unparsable orders page %d: %w", page, err)
		}
		if len(orders) == 0 {
			break
		}
		all = append(all, orders...)
		if len(orders) < ordersPerPage {
			break
		}
	}
	return all, nil
}
