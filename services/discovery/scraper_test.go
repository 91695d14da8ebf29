package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vitasana-backend/lib/testutil"
	"vitasana-backend/services/catalog"
	"vitasana-backend/services/catalog/db"
)

func productCard(sku int64, name, href, image string) string {
	return fmt.Sprintf(`
		<div class="klb-product">
			<img data-src="%s">
			<div class="product-text"><h4><a href="%s">%s</a></h4></div>
			<a class="ajax_add_to_cart" data-product_sku="%d">Add</a>
		</div>`, image, href, name, sku)
}

// fakeShopSite serves a 3 page listing plus product pages carrying
// descriptions.
func fakeShopSite(t *testing.T) *httptest.Server {
	var server *httptest.Server

	mux := http.NewServeMux()
	pageHandler := func(page int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var cards string
			for i := 0; i < 4; i++ {
				sku := int64(page*10 + i)
				cards += productCard(
					sku,
					fmt.Sprintf("Product %d", sku),
					server.URL+fmt.Sprintf("/produit/%d/", sku),
					fmt.Sprintf("https://cdn.example/%d.jpg", sku),
				)
			}
			fmt.Fprintf(w, "<html><body>%s</body></html>", cards)
		}
	}
	mux.HandleFunc("/boutique/", pageHandler(1))
	mux.HandleFunc("/boutique/page/2/", pageHandler(2))
	mux.HandleFunc("/boutique/page/3/", pageHandler(3))
	mux.HandleFunc("/boutique/page/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/produit/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<div id="tab-description">
				<p>Indications for %s.</p>
				<p></p>
				<p>Posologie.</p>
			</div>
		</body></html>`, r.URL.Path)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setupScraper(t *testing.T, baseUrl string) (*Scraper, *catalog.Store) {
	result, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "discovery",
		DbSchema: db.Schema,
	})
	t.Cleanup(cleanup)
	store := catalog.NewStore(result.DB)

	return NewScraper(Options{
		Store:     store,
		BaseUrl:   baseUrl,
		Workers:   2,
		PageDelay: time.Millisecond,
	}), store
}

func TestRunDiscoversListing(t *testing.T) {
	server := fakeShopSite(t)
	scraper, store := setupScraper(t, server.URL)

	ctx := context.Background()
	result, err := scraper.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, result.PagesScraped)
	require.Equal(t, 12, result.ProductsSeen)
	require.Equal(t, 12, result.ProductsNew)

	count, err := store.CountProducts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(12), count)

	product, err := store.GetProduct(ctx, 21)
	require.NoError(t, err)
	require.Equal(t, "product 21", product.Name)
	require.Equal(t, "https://cdn.example/21.jpg", product.ImageUrl.String)
	require.Contains(t, product.ProductUrl.String, "/produit/21/")
	require.Contains(t, product.Description.String, "Indications")
	require.Contains(t, product.Description.String, "Posologie")
}

func TestRunIsIncremental(t *testing.T) {
	server := fakeShopSite(t)
	scraper, store := setupScraper(t, server.URL)

	ctx := context.Background()
	// sku 10 already exists from an earlier scan
	require.NoError(t, store.UpsertProductsFromSearch(ctx, []catalog.SearchedProduct{
		{Sku: 10, Name: "product 10"},
	}))

	result, err := scraper.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 12, result.ProductsSeen)
	require.Equal(t, 11, result.ProductsNew)

	count, err := store.CountProducts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(12), count)
}

func TestRunEmptyListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	scraper, store := setupScraper(t, server.URL)

	result, err := scraper.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.ProductsSeen)

	count, err := store.CountProducts(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}
