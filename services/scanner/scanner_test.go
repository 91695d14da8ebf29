package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vitasana-backend/lib/testutil"
	"vitasana-backend/services/auth"
	"vitasana-backend/services/catalog"
	"vitasana-backend/services/catalog/db"
)

type staticSession struct {
	invalidations atomic.Int32
}

func (s *staticSession) GetSessionConfig(ctx context.Context) (auth.SessionConfig, error) {
	return auth.SessionConfig{
		Cookies:   map[string]string{"laravel_session": "sess"},
		XsrfToken: "tok",
	}, nil
}

func (s *staticSession) Invalidate() {
	s.invalidations.Add(1)
}

// cappedCatalog serves a search endpoint over a fixed corpus with
// prefix matching and the same result cap as the real shop. It records
// how often each query was made.
type cappedCatalog struct {
	mu      sync.Mutex
	corpus  map[string]int64
	queries map[string]int
}

func newCappedCatalog(corpus map[string]int64) *cappedCatalog {
	return &cappedCatalog{
		corpus:  corpus,
		queries: map[string]int{},
	}
}

func (c *cappedCatalog) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("title")

		c.mu.Lock()
		c.queries[query]++
		c.mu.Unlock()

		type hit struct {
			Sku    int64  `json:"sku"`
			Name   string `json:"name"`
			Images string `json:"images"`
			Stock  int64  `json:"stock_1"`
		}
		var hits []hit
		for name, sku := range c.corpus {
			if strings.HasPrefix(name, query) {
				hits = append(hits, hit{Sku: sku, Name: name, Stock: 5})
			}
			if len(hits) >= MaxResults {
				break
			}
		}
		json.NewEncoder(w).Encode(hits)
	})
}

func (c *cappedCatalog) queryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.queries {
		total += n
	}
	return total
}

func setupScanner(t *testing.T, handler http.Handler, optimizedPath string) (*Scanner, *catalog.Store, *staticSession) {
	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "scanner",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)
	store := catalog.NewStore(result.DB)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	session := &staticSession{}
	client := NewClient(ClientOptions{
		BaseUrl: server.URL,
		Session: session,
	})
	scanner := NewScanner(Options{
		Client:            client,
		Store:             store,
		OptimizedListPath: optimizedPath,
		QueryDelay:        time.Millisecond,
		ErrorBackoff:      time.Millisecond,
	})
	return scanner, store, session
}

// A corpus dense enough that single characters hit the cap and the
// frontier has to expand to find everything.
func denseCorpus(t *testing.T) map[string]int64 {
	corpus := map[string]int64{}
	sku := int64(1)
	add := func(name string) {
		if _, ok := corpus[name]; !ok {
			corpus[name] = sku
			sku++
		}
	}

	// 60 products under "aa", spread across third characters so
	// depth 3 gets below the cap
	for i := 0; i < 60; i++ {
		add(fmt.Sprintf("aa%c variant %02d", 'a'+(i%10), i))
	}
	// filler spread over the rest of the alphabet
	rndm := rand.New(rand.NewSource(7))
	for len(corpus) < 90 {
		add(strings.TrimSpace(testutil.RandomName(rndm, 12)))
	}
	return corpus
}

func TestFullEnumeration(t *testing.T) {
	corpus := denseCorpus(t)
	remote := newCappedCatalog(corpus)
	scanner, store, _ := setupScanner(t, remote.handler(), "")

	progress := NewProgress()
	err := scanner.Run(context.Background(), RunOptions{}, progress)
	require.NoError(t, err)

	count, err := store.CountProducts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(len(corpus)), count)

	for name, sku := range corpus {
		product, err := store.GetProduct(context.Background(), sku)
		require.NoError(t, err)
		require.Equal(t, name, product.Name)
	}

	snapshot := progress.Snapshot()
	require.Equal(t, PhaseCompleted, snapshot.Phase)
	require.Equal(t, snapshot.PrefixesTotal, snapshot.PrefixesProcessed)

	// each prefix is queried at most once
	remote.mu.Lock()
	defer remote.mu.Unlock()
	for query, n := range remote.queries {
		require.Equal(t, 1, n, "query %q repeated", query)
	}

	// productive prefixes were remembered
	prefixes, err := store.GetEffectivePrefixes(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, prefixes)
}

func TestNoExpansionBelowCap(t *testing.T) {
	// a tiny corpus never hits the cap, so only the seed characters
	// get queried
	remote := newCappedCatalog(map[string]int64{
		"doliprane": 1,
		"panadol":   2,
	})
	scanner, _, _ := setupScanner(t, remote.handler(), "")

	err := scanner.Run(context.Background(), RunOptions{}, NewProgress())
	require.NoError(t, err)
	require.Equal(t, len(Alphabet), remote.queryCount())
}

func TestDepthBound(t *testing.T) {
	// every prefix of "aaaaaa" stays capped forever; the frontier
	// must still terminate at the depth bound
	var longest atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("title")
		if int32(len(query)) > longest.Load() {
			longest.Store(int32(len(query)))
		}

		type hit struct {
			Sku  int64  `json:"sku"`
			Name string `json:"name"`
		}
		var hits []hit
		if strings.HasPrefix("aaaaaa", query) {
			for i := 0; i < MaxResults; i++ {
				hits = append(hits, hit{Sku: int64(i + 1), Name: fmt.Sprintf("aaaaaa %02d", i)})
			}
		}
		json.NewEncoder(w).Encode(hits)
	})
	scanner, _, _ := setupScanner(t, handler, "")

	progress := NewProgress()
	err := scanner.Run(context.Background(), RunOptions{}, progress)
	require.NoError(t, err)
	require.Equal(t, PhaseCompleted, progress.Snapshot().Phase)
	require.LessOrEqual(t, longest.Load(), int32(MaxDepth))
}

func TestCancellation(t *testing.T) {
	corpus := denseCorpus(t)
	remote := newCappedCatalog(corpus)

	ctx, cancel := context.WithCancel(context.Background())
	var queries atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if queries.Add(1) == 3 {
			cancel()
		}
		remote.handler().ServeHTTP(w, r)
	})
	scanner, _, _ := setupScanner(t, handler, "")

	progress := NewProgress()
	err := scanner.Run(ctx, RunOptions{}, progress)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, PhaseStopped, progress.Snapshot().Phase)
	require.Less(t, int(queries.Load()), len(Alphabet))
}

func TestOptimizedScan(t *testing.T) {
	corpus := map[string]int64{}
	for i := 0; i < 50; i++ {
		corpus[fmt.Sprintf("doliprane %02d", i)] = int64(i + 1)
	}
	corpus["panadol extra"] = 100
	remote := newCappedCatalog(corpus)

	listPath := filepath.Join(t.TempDir(), "optimized_prefixes.json")
	raw, err := json.Marshal([]string{"dol", "pan"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(listPath, raw, 0644))

	scanner, store, _ := setupScanner(t, remote.handler(), listPath)

	progress := NewProgress()
	err = scanner.Run(context.Background(), RunOptions{Optimized: true}, progress)
	require.NoError(t, err)

	// even though "dol" hits the cap, an optimized scan never
	// expands the frontier
	require.Equal(t, 2, remote.queryCount())
	require.Equal(t, PhaseCompleted, progress.Snapshot().Phase)

	count, err := store.CountProducts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(MaxResults+1), count)
}

func TestOptimizedScanMissingList(t *testing.T) {
	remote := newCappedCatalog(nil)
	scanner, _, _ := setupScanner(t, remote.handler(), filepath.Join(t.TempDir(), "missing.json"))

	progress := NewProgress()
	err := scanner.Run(context.Background(), RunOptions{Optimized: true}, progress)
	require.ErrorIs(t, err, ErrNoOptimizedList)
	require.Equal(t, PhaseError, progress.Snapshot().Phase)
	require.Equal(t, 0, remote.queryCount())
}

func TestUnauthorizedAbortsScan(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	scanner, _, session := setupScanner(t, handler, "")

	progress := NewProgress()
	err := scanner.Run(context.Background(), RunOptions{}, progress)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, PhaseError, progress.Snapshot().Phase)
	require.Equal(t, int32(1), session.invalidations.Load())
}

func TestStoreFailureSkipsPrefix(t *testing.T) {
	remote := newCappedCatalog(map[string]int64{"apple": 1, "zebra": 2})

	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "scanner",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)
	store := catalog.NewStore(result.DB)
	// every write from here on fails
	require.NoError(t, result.DB.Close())

	server := httptest.NewServer(remote.handler())
	t.Cleanup(server.Close)

	scanner := NewScanner(Options{
		Client: NewClient(ClientOptions{
			BaseUrl: server.URL,
			Session: &staticSession{},
		}),
		Store:        store,
		QueryDelay:   time.Millisecond,
		ErrorBackoff: time.Millisecond,
	})

	progress := NewProgress()
	require.NoError(t, scanner.Run(context.Background(), RunOptions{}, progress))
	require.Equal(t, PhaseCompleted, progress.Snapshot().Phase)

	// the failed persists did not stop later prefixes from being
	// queried
	require.Equal(t, len(Alphabet), remote.queryCount())
	remote.mu.Lock()
	defer remote.mu.Unlock()
	require.Equal(t, 1, remote.queries["a"])
	require.Equal(t, 1, remote.queries["z"])
}

func TestProgressReportsCurrentPrefix(t *testing.T) {
	remote := newCappedCatalog(map[string]int64{"doliprane": 1})

	progress := NewProgress()
	var mu sync.Mutex
	seen := map[string]bool{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[progress.Snapshot().CurrentPrefix] = true
		mu.Unlock()
		remote.handler().ServeHTTP(w, r)
	})
	scanner, _, _ := setupScanner(t, handler, "")

	require.NoError(t, scanner.Run(context.Background(), RunOptions{}, progress))

	for _, c := range Alphabet {
		require.True(t, seen[string(c)], "prefix %q never reported", string(c))
	}
	require.Empty(t, progress.Snapshot().CurrentPrefix)
}

func TestSearchIdentifierFallback(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"sku": "1", "name": "doliprane", "stock_1": "3", "regular_price": "24,90 DH"},
			{"id": 2, "name": "panadol", "stock": 1},
			{"name": "no identifier"}
		]`)
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientOptions{BaseUrl: server.URL, Session: &staticSession{}})
	products, err := client.Search(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, []Product{
		{Sku: 1, Name: "doliprane", Stock: 3, Price: 24.9},
		{Sku: 2, Name: "panadol", Stock: 1},
	}, products)
}

func TestSearchStockFromScan(t *testing.T) {
	corpus := map[string]int64{"doliprane": 1}
	scanner, store, _ := setupScanner(t, newCappedCatalog(corpus).handler(), "")

	require.NoError(t, scanner.Run(context.Background(), RunOptions{}, NewProgress()))

	// the search response's stock figure lands in the history
	record, err := store.GetLastRecord(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, int64(5), record.Stock.Int64)
	require.Equal(t, "In Stock", record.Availability.String)
}

func TestFlakyQueryIsSkipped(t *testing.T) {
	corpus := map[string]int64{"doliprane": 1, "panadol": 2}
	remote := newCappedCatalog(corpus)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("title") == "z" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		remote.handler().ServeHTTP(w, r)
	})
	scanner, store, _ := setupScanner(t, handler, "")

	progress := NewProgress()
	err := scanner.Run(context.Background(), RunOptions{}, progress)
	require.NoError(t, err)
	require.Equal(t, PhaseCompleted, progress.Snapshot().Phase)

	count, err := store.CountProducts(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}
