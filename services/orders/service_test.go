package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vitasana-backend/lib/testutil"
	"vitasana-backend/services/catalog"
	"vitasana-backend/services/catalog/db"
)

func fakeWooCommerce(t *testing.T, orders []WooOrder) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-json/wc/v3/orders", func(w http.ResponseWriter, r *http.Request) {
		key, secret, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "ck_test", key)
		require.Equal(t, "cs_test", secret)

		if r.URL.Query().Get("page") != "1" {
			w.Write([]byte("[]"))
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(orders))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setupOrders(t *testing.T, wooOrders []WooOrder) (*Service, *catalog.Store) {
	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "orders",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)
	store := catalog.NewStore(result.DB)

	server := fakeWooCommerce(t, wooOrders)
	service := NewService(Options{
		Store: store,
		Client: NewClient(ClientOptions{
			BaseUrl:        server.URL,
			ConsumerKey:    "ck_test",
			ConsumerSecret: "cs_test",
		}),
	})
	return service, store
}

func addProduct(t *testing.T, store *catalog.Store, sku int64, name string) {
	t.Helper()
	_, err := store.AddProduct(context.Background(), sku, name, "", "")
	require.NoError(t, err)
}

func TestSyncOrders(t *testing.T) {
	wooOrders := []WooOrder{
		{
			Id:          9001,
			Number:      "9001",
			Status:      "processing",
			DateCreated: "2026-02-15T10:00:00",
			Total:       "120.50",
			Billing: WooBilling{
				FirstName: "Karim",
				LastName:  "E",
				Email:     "karim@example.com",
			},
			LineItems: []WooItem{
				{Id: 1, Name: "Doliprane 1000mg", Sku: "100", Quantity: 2, Price: "23.5"},
				{Id: 2, Name: "Mystery product", Sku: "", Quantity: 1, Price: "10"},
			},
		},
	}
	service, store := setupOrders(t, wooOrders)

	ctx := context.Background()
	addProduct(t, store, 100, "Doliprane 1000mg")
	require.NoError(t, store.AddMonitoringRecord(ctx, 100, catalog.MonitoringRecord{
		Timestamp:    time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC),
		Stock:        10,
		Price:        23.5,
		FinalPrice:   23.5,
		Availability: "In Stock",
	}))

	result, err := service.SyncOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, result.OrdersSynced)
	require.Equal(t, 1, result.ItemsMatched)
	require.Equal(t, 1, result.ItemsUnmatched)
	require.Equal(t, map[string]int{FulfillPartial: 1}, result.Fulfillability)

	saved, err := store.GetOrders(ctx, "", -1)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Equal(t, "processing", saved[0].Status)
	require.InDelta(t, 120.5, saved[0].TotalAmount, 0.001)
	require.Equal(t, "Karim", saved[0].FirstName.String)

	items, err := store.GetOrderItems(ctx, 9001)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byId := map[int64]db.OrderItem{}
	for _, item := range items {
		byId[item.ID] = item
	}
	require.Equal(t, StockReady, byId[1].StockStatus.String)
	require.Equal(t, MatchSku, byId[1].MatchType.String)
	require.Equal(t, int64(100), byId[1].MatchedSku.Int64)
	require.Equal(t, int64(10), byId[1].AvailableQty.Int64)
	require.Equal(t, StockUnmatched, byId[2].StockStatus.String)
	require.False(t, byId[2].MatchedSku.Valid)
}

func TestSyncOrdersStockVerdicts(t *testing.T) {
	wooOrders := []WooOrder{
		{
			Id: 1, Number: "1", Status: "processing",
			DateCreated: "2026-02-15T10:00:00", Total: "50",
			LineItems: []WooItem{
				{Id: 11, Name: "Doliprane 1000mg", Sku: "100", Quantity: 2, Price: "25"},
			},
		},
		{
			Id: 2, Number: "2", Status: "processing",
			DateCreated: "2026-02-15T11:00:00", Total: "80",
			LineItems: []WooItem{
				{Id: 21, Name: "Panadol Extra", Sku: "200", Quantity: 5, Price: "16"},
			},
		},
		{
			Id: 3, Number: "3", Status: "processing",
			DateCreated: "2026-02-15T12:00:00", Total: "30",
			LineItems: []WooItem{
				{Id: 31, Name: "Smecta", Sku: "300", Quantity: 1, Price: "30"},
			},
		},
	}
	service, store := setupOrders(t, wooOrders)

	ctx := context.Background()
	addProduct(t, store, 100, "Doliprane 1000mg")
	addProduct(t, store, 200, "Panadol Extra")
	addProduct(t, store, 300, "Smecta")
	now := time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.AddMonitoringRecord(ctx, 100, catalog.MonitoringRecord{
		Timestamp: now, Stock: 10, Availability: "In Stock",
	}))
	require.NoError(t, store.AddMonitoringRecord(ctx, 200, catalog.MonitoringRecord{
		Timestamp: now, Stock: 2, Availability: "In Stock",
	}))
	require.NoError(t, store.AddMonitoringRecord(ctx, 300, catalog.MonitoringRecord{
		Timestamp: now, Stock: 0, Availability: "Out of Stock",
	}))

	result, err := service.SyncOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, result.OrdersSynced)
	require.Equal(t, map[string]int{
		FulfillReady:   1,
		FulfillPartial: 1,
		FulfillOut:     1,
	}, result.Fulfillability)
}

func TestSyncOrdersUsesRefreshHook(t *testing.T) {
	wooOrders := []WooOrder{
		{
			Id: 7, Number: "7", Status: "processing",
			DateCreated: "2026-02-15T10:00:00", Total: "25",
			LineItems: []WooItem{
				{Id: 71, Name: "Doliprane 1000mg", Sku: "100", Quantity: 1, Price: "25"},
			},
		},
	}
	service, store := setupOrders(t, wooOrders)

	ctx := context.Background()
	addProduct(t, store, 100, "Doliprane 1000mg")

	refreshed := []int64{}
	service.refresh = func(ctx context.Context, sku int64) error {
		refreshed = append(refreshed, sku)
		// the refresh writes a fresh monitoring record
		return store.AddMonitoringRecord(ctx, sku, catalog.MonitoringRecord{
			Timestamp: time.Date(2026, 2, 15, 9, 59, 0, 0, time.UTC),
			Stock:     3, Availability: "In Stock",
		})
	}

	result, err := service.SyncOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{100}, refreshed)
	require.Equal(t, map[string]int{FulfillReady: 1}, result.Fulfillability)
}
