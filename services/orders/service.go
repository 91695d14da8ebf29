package orders

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"vitasana-backend/lib/textutil"
	"vitasana-backend/services/catalog"
)

var tracer = otel.Tracer("services/orders")

// Item stock status after reconciliation.
const (
	StockReady     = "ready"
	StockPartial   = "partial"
	StockOut       = "out_of_stock"
	StockUnknown   = "unknown"
	StockUnmatched = "unmatched"
)

// Order fulfillability, derived from its items.
const (
	FulfillReady   = "ready"
	FulfillPartial = "partial"
	FulfillUnknown = "unknown"
	FulfillOut     = "out_of_stock"
)

type Options struct {
	Store  *catalog.Store
	Client *Client
	// Statuses restricts which orders are pulled. Empty pulls all.
	Statuses []string
	// Refresh, when set, re-checks a product's stock against the
	// supplier before reconciling instead of trusting the last
	// monitoring record.
	Refresh func(ctx context.Context, sku int64) error
}

type Service struct {
	store    *catalog.Store
	client   *Client
	statuses []string
	refresh  func(ctx context.Context, sku int64) error
}

func NewService(opts Options) *Service {
	return &Service{
		store:    opts.Store,
		client:   opts.Client,
		statuses: opts.Statuses,
		refresh:  opts.Refresh,
	}
}

// SyncResult summarizes one reconciliation pass.
type SyncResult struct {
	OrdersSynced   int            `json:"orders_synced"`
	ItemsMatched   int            `json:"items_matched"`
	ItemsUnmatched int            `json:"items_unmatched"`
	Fulfillability map[string]int `json:"fulfillability"`
}

// SyncOrders pulls orders from the shop, matches every line item
// against the catalog, checks stock for the matches and persists the
// lot.
func (s *Service) SyncOrders(ctx context.Context) (SyncResult, error) {
	ctx, span := tracer.Start(ctx, "SyncOrders")
	defer span.End()

	result := SyncResult{Fulfillability: map[string]int{}}

	wooOrders, err := s.client.FetchOrders(ctx, s.statuses)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch orders")
		return result, err
	}

	products, err := s.store.GetProducts(ctx, -1, 0, nil)
	if err != nil {
		span.SetStatus(codes.Error, "failed to load catalog")
		return result, err
	}
	matcher := NewMatcher(products)

	// stock is looked up once per sku per sync, orders routinely
	// share products
	stockCache := map[int64]*int64{}

	for _, wooOrder := range wooOrders {
		order, matched, unmatched, err := s.reconcileOrder(ctx, matcher, stockCache, wooOrder)
		if err != nil {
			return result, fmt.Errorf("order %d: %w", wooOrder.Id, err)
		}
		if err := s.store.SaveOrder(ctx, order); err != nil {
			return result, fmt.Errorf("save order %d: %w", wooOrder.Id, err)
		}

		result.OrdersSynced++
		result.ItemsMatched += matched
		result.ItemsUnmatched += unmatched
		result.Fulfillability[order.Fulfillability]++
	}

	slog.InfoContext(ctx, "orders synced",
		"orders", result.OrdersSynced,
		"items_matched", result.ItemsMatched,
		"items_unmatched", result.ItemsUnmatched)
	return result, nil
}

func (s *Service) reconcileOrder(
	ctx context.Context,
	matcher *Matcher,
	stockCache map[int64]*int64,
	wooOrder WooOrder,
) (catalog.SyncedOrder, int, int, error) {
	matched := 0
	unmatched := 0

	var items []catalog.SyncedOrderItem
	var statuses []string
	for _, wooItem := range wooOrder.LineItems {
		item := catalog.SyncedOrderItem{
			ID:          wooItem.Id,
			ProductName: wooItem.Name,
			Sku:         wooItem.Sku,
			Quantity:    wooItem.Quantity,
		}
		if price, ok := textutil.LenientFloat(wooItem.Price.String()); ok {
			item.PriceAtSync = sql.NullFloat64{Float64: price, Valid: true}
		}

		match := matcher.MatchItem(wooItem.Sku, wooItem.Name)
		if match == nil {
			item.StockStatus = StockUnmatched
			unmatched++
		} else {
			matched++
			item.MatchedSku = sql.NullInt64{Int64: match.Sku, Valid: true}
			item.MatchType = match.Type

			stock, err := s.lookupStock(ctx, stockCache, match.Sku)
			if err != nil {
				return catalog.SyncedOrder{}, 0, 0, err
			}
			if stock == nil {
				item.StockStatus = StockUnknown
			} else {
				item.AvailableQty = sql.NullInt64{Int64: *stock, Valid: true}
				switch {
				case *stock >= wooItem.Quantity:
					item.StockStatus = StockReady
				case *stock > 0:
					item.StockStatus = StockPartial
				default:
					item.StockStatus = StockOut
				}
			}
		}

		statuses = append(statuses, item.StockStatus)
		items = append(items, item)
	}

	order := catalog.SyncedOrder{
		ID:             wooOrder.Id,
		Number:         wooOrder.Number,
		Status:         wooOrder.Status,
		DateCreated:    parseWooDate(wooOrder.DateCreated),
		Fulfillability: fulfillability(statuses),
		Items:          items,
	}
	if total, ok := textutil.LenientFloat(wooOrder.Total); ok {
		order.TotalAmount = total
	}
	if wooOrder.Billing.Email != "" {
		order.Customer = &catalog.SyncedCustomer{
			FirstName: wooOrder.Billing.FirstName,
			LastName:  wooOrder.Billing.LastName,
			Email:     wooOrder.Billing.Email,
			Phone:     wooOrder.Billing.Phone,
		}
	}
	return order, matched, unmatched, nil
}

// lookupStock returns the product's available stock, nil when it has
// never been monitored.
func (s *Service) lookupStock(ctx context.Context, cache map[int64]*int64, sku int64) (*int64, error) {
	if stock, ok := cache[sku]; ok {
		return stock, nil
	}

	if s.refresh != nil {
		if err := s.refresh(ctx, sku); err != nil {
			slog.WarnContext(ctx, "stock refresh failed, falling back to last record",
				"sku", sku, "err", err)
		}
	}

	record, err := s.store.GetLastRecord(ctx, sku)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.Stock.Valid {
		cache[sku] = nil
		return nil, nil
	}
	stock := record.Stock.Int64
	cache[sku] = &stock
	return &stock, nil
}

// fulfillability folds item statuses into one verdict for the order:
// everything ready means ready, anything ready or partial means the
// order can at least be started, unknowns block a verdict, and a fully
// stocked-out order is out_of_stock.
func fulfillability(statuses []string) string {
	if len(statuses) == 0 {
		return FulfillUnknown
	}

	allReady := true
	anyAvailable := false
	anyUnknown := false
	for _, status := range statuses {
		if status != StockReady {
			allReady = false
		}
		if status == StockReady || status == StockPartial {
			anyAvailable = true
		}
		if status == StockUnknown || status == StockUnmatched {
			anyUnknown = true
		}
	}

	switch {
	case allReady:
		return FulfillReady
	case anyAvailable:
		return FulfillPartial
	case anyUnknown:
		return FulfillUnknown
	default:
		return FulfillOut
	}
}

func parseWooDate(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
