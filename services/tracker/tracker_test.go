package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vitasana-backend/lib/testutil"
	"vitasana-backend/services/auth"
	"vitasana-backend/services/catalog"
	"vitasana-backend/services/catalog/db"
)

func setupTracker(t *testing.T, handler http.Handler) (*Tracker, *catalog.Store) {
	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "tracker",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)
	store := catalog.NewStore(result.DB)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewTracker(Options{
		Store:      store,
		BaseUrl:    server.URL,
		ClientId:   "client-1",
		Username:   "vitasana",
		Password:   "secret",
		Workers:    2,
		RetryDelay: time.Millisecond,
	}), store
}

func supplierResponse(offers ...productOffer) []byte {
	raw, _ := json.Marshal(productResponse{Products: offers})
	return raw
}

func addProduct(t *testing.T, store *catalog.Store, sku int64, name string) {
	t.Helper()
	_, err := store.AddProduct(context.Background(), sku, name, "", "")
	require.NoError(t, err)
}

func TestRunRecordsMonitoring(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "vitasana", username)
		require.Equal(t, "secret", password)
		require.Equal(t, "client-1", r.URL.Query().Get("client_id"))

		switch r.URL.Query().Get("product_id") {
		case "1":
			w.Write(supplierResponse(productOffer{
				Name:     "Doliprane 1000mg",
				Stock:    "14",
				Price:    "23,50 DH",
				Discount: "10",
				Points:   "2",
			}))
		case "2":
			w.Write(supplierResponse(productOffer{
				Name:  "Panadol Extra",
				Stock: "0",
				Price: "30.00",
			}))
		default:
			w.Write(supplierResponse())
		}
	})
	tracker, store := setupTracker(t, handler)

	ctx := context.Background()
	addProduct(t, store, 1, "Doliprane 1000mg")
	addProduct(t, store, 2, "Panadol Extra")

	progress := NewProgress()
	require.NoError(t, tracker.Run(ctx, progress))

	snapshot := progress.Snapshot()
	require.Equal(t, PhaseCompleted, snapshot.Phase)
	require.Equal(t, 2, snapshot.Checked)
	require.Equal(t, 0, snapshot.Failed)

	record, err := store.GetLastRecord(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, int64(14), record.Stock.Int64)
	require.InDelta(t, 23.5, record.Price.Float64, 0.001)
	require.InDelta(t, 21.15, record.FinalPrice.Float64, 0.001)
	require.Equal(t, "In Stock", record.Availability.String)
	require.Equal(t, int64(2), record.Points.Int64)

	record, err = store.GetLastRecord(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, "Out of Stock", record.Availability.String)
}

func TestRunMatchesNameVariants(t *testing.T) {
	// the supplier calls the product by its short name, the catalog
	// carries the long dashed form
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(supplierResponse(productOffer{
			Name:  "Smecta",
			Stock: "5",
			Price: "40",
		}))
	})
	tracker, store := setupTracker(t, handler)

	ctx := context.Background()
	addProduct(t, store, 7, "Smecta - 30 sachets")

	require.NoError(t, tracker.Run(ctx, NewProgress()))

	record, err := store.GetLastRecord(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, int64(5), record.Stock.Int64)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(supplierResponse(productOffer{Name: "Gaviscon", Stock: "3", Price: "55"}))
	})
	tracker, store := setupTracker(t, handler)

	ctx := context.Background()
	addProduct(t, store, 9, "Gaviscon")

	require.NoError(t, tracker.Run(ctx, NewProgress()))
	require.Equal(t, int32(3), attempts.Load())

	record, err := store.GetLastRecord(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, record)
}

func TestRunAbortsOnRejectedCredentials(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	tracker, store := setupTracker(t, handler)

	ctx := context.Background()
	addProduct(t, store, 1, "Doliprane")
	addProduct(t, store, 2, "Panadol")
	addProduct(t, store, 3, "Smecta")

	progress := NewProgress()
	err := tracker.Run(ctx, progress)
	require.ErrorIs(t, err, auth.ErrUnauthorized)
	require.Equal(t, PhaseError, progress.Snapshot().Phase)
}

func TestRunSkipsUnmatchedProduct(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(supplierResponse(productOffer{Name: "something else entirely", Stock: "1", Price: "10"}))
	})
	tracker, store := setupTracker(t, handler)

	ctx := context.Background()
	addProduct(t, store, 4, "Doliprane")

	require.NoError(t, tracker.Run(ctx, NewProgress()))

	// no history row, but the product was still marked as checked
	record, err := store.GetLastRecord(ctx, 4)
	require.NoError(t, err)
	require.Nil(t, record)

	product, err := store.GetProduct(ctx, 4)
	require.NoError(t, err)
	require.True(t, product.LastCheckedAt.Valid)
}
