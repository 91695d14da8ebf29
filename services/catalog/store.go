// Package catalog persists discovered products, monitoring history,
// scan prefixes and synced orders in a sqlite database.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"vitasana-backend/lib/timezone"
	"vitasana-backend/services/catalog/db"
)

var tracer = otel.Tracer("services/catalog")

// OpenDB opens (and migrates) the catalog database. path is a local
// sqlite file (":memory:" for ephemeral) or a libsql:// URL for a
// hosted replica; authToken only applies to the latter.
func OpenDB(path, authToken string) (*sql.DB, error) {
	if strings.HasPrefix(path, "libsql://") {
		dsn := path
		if authToken != "" {
			values := url.Values{}
			values.Add("authToken", authToken)
			dsn += "?" + values.Encode()
		}
		database, err := sql.Open("libsql", dsn)
		if err != nil {
			return nil, err
		}
		if _, err := database.Exec(db.Schema); err != nil {
			database.Close()
			return nil, err
		}
		return database, nil
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite does not tolerate concurrent writers on one file.
	database.SetMaxOpenConns(1)
	if _, err := database.Exec("PRAGMA journal_mode = WAL"); err != nil {
		database.Close()
		return nil, err
	}
	if _, err := database.Exec(db.Schema); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// SearchedProduct is a product as returned by the remote search endpoint.
type SearchedProduct struct {
	Sku         int64
	Name        string
	Stock       int64
	Price       float64
	ImageUrl    string
	Description string
}

// MonitoringRecord is one observation of a product's stock and pricing.
type MonitoringRecord struct {
	Timestamp       time.Time
	Stock           int64
	Price           float64
	DiscountPercent float64
	FinalPrice      float64
	Availability    string
	Points          int64
}

// Store is the persistence gateway for the catalog database.
type Store struct {
	database *sql.DB
	qry      *db.Queries
}

func NewStore(database *sql.DB) *Store {
	return &Store{
		database: database,
		qry:      db.New(database),
	}
}

// UpsertProductsFromSearch saves a batch of search results inside one
// transaction. Every product also gets a history observation with the
// stock and price the search response reported.
func (s *Store) UpsertProductsFromSearch(ctx context.Context, products []SearchedProduct) error {
	ctx, span := tracer.Start(ctx, "UpsertProductsFromSearch")
	defer span.End()

	now := timezone.Now().Format(time.RFC3339)

	tx, err := s.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	qtx := s.qry.WithTx(tx)

	for _, p := range products {
		err := qtx.UpsertProductFromSearch(ctx, db.UpsertProductFromSearchParams{
			Sku:           p.Sku,
			Name:          p.Name,
			ImageUrl:      nullString(p.ImageUrl),
			Description:   nullString(p.Description),
			LastCheckedAt: sql.NullString{String: now, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("upsert product %d: %w", p.Sku, err)
		}

		availability := "Out of Stock"
		if p.Stock > 0 {
			availability = "In Stock"
		}
		err = qtx.CreateMonitoringRecord(ctx, db.CreateMonitoringRecordParams{
			ProductSku:   p.Sku,
			Timestamp:    now,
			Stock:        sql.NullInt64{Int64: p.Stock, Valid: true},
			Price:        sql.NullFloat64{Float64: p.Price, Valid: true},
			Availability: nullString(availability),
		})
		if err != nil {
			return fmt.Errorf("record observation for %d: %w", p.Sku, err)
		}
	}
	return tx.Commit()
}

// AddProduct inserts a newly discovered product, ignoring duplicates.
// Reports whether a row was actually created.
func (s *Store) AddProduct(ctx context.Context, sku int64, name, productUrl, imageUrl string) (bool, error) {
	rows, err := s.qry.CreateProduct(ctx, db.CreateProductParams{
		Sku:        sku,
		Name:       name,
		ProductUrl: nullString(productUrl),
		ImageUrl:   nullString(imageUrl),
	})
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s *Store) SetProductDescription(ctx context.Context, sku int64, description string) error {
	return s.qry.SetProductDescription(ctx, db.SetProductDescriptionParams{
		Description: nullString(description),
		Sku:         sku,
	})
}

func (s *Store) GetProduct(ctx context.Context, sku int64) (db.Product, error) {
	return s.qry.GetProduct(ctx, sku)
}

// GetProducts lists products. A negative limit means no limit. When
// keywords are given, products matching any keyword (against name or
// sku) are returned instead, merged without duplicates.
func (s *Store) GetProducts(ctx context.Context, limit, offset int64, keywords []string) ([]db.Product, error) {
	ctx, span := tracer.Start(ctx, "GetProducts")
	defer span.End()

	if len(keywords) == 0 {
		if limit < 0 {
			// sqlite treats a negative LIMIT as unlimited
			limit = -1
		}
		return s.qry.ListProducts(ctx, db.ListProductsParams{Limit: limit, Offset: offset})
	}

	seen := map[int64]bool{}
	var merged []db.Product
	for _, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		matches, err := s.qry.SearchProducts(ctx, "%"+keyword+"%")
		if err != nil {
			return nil, err
		}
		for _, p := range matches {
			if seen[p.Sku] {
				continue
			}
			seen[p.Sku] = true
			merged = append(merged, p)
		}
	}
	return merged, nil
}

func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	return s.qry.CountProducts(ctx)
}

func (s *Store) UpdateLastChecked(ctx context.Context, sku int64, at time.Time) error {
	return s.qry.UpdateLastChecked(ctx, db.UpdateLastCheckedParams{
		LastCheckedAt: sql.NullString{String: at.Format(time.RFC3339), Valid: true},
		Sku:           sku,
	})
}

// AddMonitoringRecord appends an observation for a product and bumps
// its last checked timestamp, atomically.
func (s *Store) AddMonitoringRecord(ctx context.Context, sku int64, record MonitoringRecord) error {
	tx, err := s.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	qtx := s.qry.WithTx(tx)

	err = qtx.CreateMonitoringRecord(ctx, db.CreateMonitoringRecordParams{
		ProductSku:      sku,
		Timestamp:       record.Timestamp.Format(time.RFC3339),
		Stock:           sql.NullInt64{Int64: record.Stock, Valid: true},
		Price:           sql.NullFloat64{Float64: record.Price, Valid: true},
		DiscountPercent: sql.NullFloat64{Float64: record.DiscountPercent, Valid: true},
		FinalPrice:      sql.NullFloat64{Float64: record.FinalPrice, Valid: true},
		Availability:    nullString(record.Availability),
		Points:          sql.NullInt64{Int64: record.Points, Valid: true},
	})
	if err != nil {
		return err
	}
	err = qtx.UpdateLastChecked(ctx, db.UpdateLastCheckedParams{
		LastCheckedAt: sql.NullString{String: record.Timestamp.Format(time.RFC3339), Valid: true},
		Sku:           sku,
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetLastRecord returns the most recent observation for a product, or
// (nil, nil) when the product has never been monitored.
func (s *Store) GetLastRecord(ctx context.Context, sku int64) (*db.MonitoringHistory, error) {
	record, err := s.qry.GetLastRecord(ctx, sku)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetProductHistory lists observations for a product inside [after,
// before], newest first. A negative limit means no limit.
func (s *Store) GetProductHistory(
	ctx context.Context, sku int64, after, before time.Time, limit int64,
) ([]db.MonitoringHistory, error) {
	if limit < 0 {
		limit = -1
	}
	return s.qry.ListProductHistory(ctx, db.ListProductHistoryParams{
		ProductSku: sku,
		After:      after.Format(time.RFC3339),
		Before:     before.Format(time.RFC3339),
		Limit:      limit,
	})
}

// GetLatestStatuses returns every product joined with its most recent
// observation, if any.
func (s *Store) GetLatestStatuses(ctx context.Context) ([]db.ListLatestStatusesRow, error) {
	return s.qry.ListLatestStatuses(ctx)
}

// RecordScanPrefix remembers that a prefix produced results during an
// enumeration pass.
func (s *Store) RecordScanPrefix(ctx context.Context, prefix string, resultCount int) error {
	return s.qry.RecordScanPrefix(ctx, db.RecordScanPrefixParams{
		Prefix:        prefix,
		ResultCount:   int64(resultCount),
		LastScannedAt: timezone.Now().Format(time.RFC3339),
	})
}

// GetEffectivePrefixes lists every prefix that has ever produced
// results, ordered lexicographically.
func (s *Store) GetEffectivePrefixes(ctx context.Context) ([]string, error) {
	return s.qry.ListEffectivePrefixes(ctx)
}

// ProductNames returns the names of every known product, for prefix
// list generation.
func (s *Store) ProductNames(ctx context.Context) ([]string, error) {
	products, err := s.qry.ListProducts(ctx, db.ListProductsParams{Limit: -1, Offset: 0})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return names, nil
}

// SyncedOrder is an order (with its customer and line items) as pulled
// from the shop backend, ready to persist.
type SyncedOrder struct {
	ID             int64
	Number         string
	Status         string
	DateCreated    time.Time
	TotalAmount    float64
	Fulfillability string
	Customer       *SyncedCustomer
	Items          []SyncedOrderItem
}

type SyncedCustomer struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type SyncedOrderItem struct {
	ID           int64
	ProductName  string
	Sku          string
	Quantity     int64
	MatchedSku   sql.NullInt64
	MatchType    string
	StockStatus  string
	AvailableQty sql.NullInt64
	PriceAtSync  sql.NullFloat64
}

// SaveOrder persists one synced order. The customer is upserted by
// email, the order row is created or updated, and line items are
// replaced wholesale so matches never go stale.
func (s *Store) SaveOrder(ctx context.Context, order SyncedOrder) error {
	ctx, span := tracer.Start(ctx, "SaveOrder")
	defer span.End()

	tx, err := s.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	qtx := s.qry.WithTx(tx)

	var customerID sql.NullInt64
	isNewOrder := false
	_, err = qtx.GetOrder(ctx, order.ID)
	if errors.Is(err, sql.ErrNoRows) {
		isNewOrder = true
	} else if err != nil {
		return err
	}

	if order.Customer != nil && order.Customer.Email != "" {
		id, err := s.upsertCustomer(ctx, qtx, *order.Customer)
		if err != nil {
			return err
		}
		customerID = sql.NullInt64{Int64: id, Valid: true}

		if isNewOrder {
			err = qtx.AddCustomerStats(ctx, db.AddCustomerStatsParams{
				TotalSpent:    order.TotalAmount,
				LastOrderDate: order.DateCreated.Format(time.RFC3339),
				ID:            id,
			})
			if err != nil {
				return err
			}
		}
	}

	if isNewOrder {
		err = qtx.CreateOrder(ctx, db.CreateOrderParams{
			ID:             order.ID,
			Number:         order.Number,
			CustomerID:     customerID,
			Status:         order.Status,
			DateCreated:    order.DateCreated.Format(time.RFC3339),
			TotalAmount:    order.TotalAmount,
			Fulfillability: order.Fulfillability,
		})
	} else {
		err = qtx.UpdateOrder(ctx, db.UpdateOrderParams{
			Status:         order.Status,
			Fulfillability: order.Fulfillability,
			ID:             order.ID,
		})
	}
	if err != nil {
		return err
	}

	if err := qtx.DeleteOrderItems(ctx, order.ID); err != nil {
		return err
	}
	for _, item := range order.Items {
		err := qtx.CreateOrderItem(ctx, db.CreateOrderItemParams{
			ID:           item.ID,
			OrderID:      order.ID,
			ProductName:  item.ProductName,
			Sku:          nullString(item.Sku),
			Quantity:     item.Quantity,
			MatchedSku:   item.MatchedSku,
			MatchType:    nullString(item.MatchType),
			StockStatus:  nullString(item.StockStatus),
			AvailableQty: item.AvailableQty,
			PriceAtSync:  item.PriceAtSync,
		})
		if err != nil {
			return fmt.Errorf("save item %d of order %d: %w", item.ID, order.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) upsertCustomer(ctx context.Context, qtx *db.Queries, customer SyncedCustomer) (int64, error) {
	existing, err := qtx.GetCustomerByEmail(ctx, customer.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return qtx.CreateCustomer(ctx, db.CreateCustomerParams{
			FirstName: customer.FirstName,
			LastName:  customer.LastName,
			Email:     customer.Email,
			Phone:     customer.Phone,
		})
	}
	if err != nil {
		return 0, err
	}
	err = qtx.UpdateCustomer(ctx, db.UpdateCustomerParams{
		FirstName: customer.FirstName,
		LastName:  customer.LastName,
		Phone:     customer.Phone,
		ID:        existing.ID,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to update customer", "email", customer.Email, "err", err)
	}
	return existing.ID, nil
}

// GetOrders lists synced orders, optionally filtered by status. A
// negative limit means no limit.
func (s *Store) GetOrders(ctx context.Context, status string, limit int64) ([]db.ListOrdersRow, error) {
	if limit < 0 {
		limit = -1
	}
	if status == "" {
		return s.qry.ListOrders(ctx, limit)
	}
	filtered, err := s.qry.ListOrdersByStatus(ctx, db.ListOrdersByStatusParams{
		Status: status,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	rows := make([]db.ListOrdersRow, 0, len(filtered))
	for _, row := range filtered {
		rows = append(rows, db.ListOrdersRow(row))
	}
	return rows, nil
}

func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]db.OrderItem, error) {
	return s.qry.ListOrderItems(ctx, orderID)
}

func (s *Store) GetCustomers(ctx context.Context, limit int64) ([]db.Customer, error) {
	if limit < 0 {
		limit = -1
	}
	return s.qry.ListCustomers(ctx, limit)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
