// Package discovery scrapes the public shop listing to seed the
// catalog with products, their urls and images. Unlike the scanner it
// needs no session, but it does have to get past cloudflare.
package discovery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"vitasana-backend/lib/telemetry"
	"vitasana-backend/lib/textutil"
	"vitasana-backend/services/catalog"
)

var tracer = otel.Tracer("services/discovery")

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0",
}

type Options struct {
	Store *catalog.Store

	BaseUrl string
	// ListingPath is the paginated listing root, defaulting to
	// "/boutique".
	ListingPath string
	// Workers fetch listing pages and product descriptions
	// concurrently. Defaults to 3.
	Workers int
	// PageDelay spaces out listing requests per worker. Defaults to
	// 500ms.
	PageDelay time.Duration
}

type Scraper struct {
	store       *catalog.Store
	http        *resty.Client
	listingPath string
	workers     int
	pageDelay   time.Duration
}

func NewScraper(opts Options) *Scraper {
	listingPath := strings.TrimSuffix(opts.ListingPath, "/")
	if listingPath == "" {
		listingPath = "/boutique"
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 3
	}
	pageDelay := opts.PageDelay
	if pageDelay == 0 {
		pageDelay = 500 * time.Millisecond
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetTimeout(time.Second * 30)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		req.SetHeader("user-agent", userAgents[rand.Intn(len(userAgents))])
		return nil
	})
	telemetry.InstrumentResty(client, "services/discovery/http")

	return &Scraper{
		store:       opts.Store,
		http:        client,
		listingPath: listingPath,
		workers:     workers,
		pageDelay:   pageDelay,
	}
}

type listedProduct struct {
	Sku      int64
	Name     string
	Url      string
	ImageUrl string
}

// Result summarizes one discovery run.
type Result struct {
	PagesScraped int
	ProductsSeen int
	ProductsNew  int
}

// Run walks the listing until it runs out of pages, inserting every
// product it has not seen before, then fetches descriptions for the
// new ones.
func (s *Scraper) Run(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	products, pages, err := s.scrapeListing(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "listing scrape failed")
		return Result{}, err
	}

	result := Result{PagesScraped: pages, ProductsSeen: len(products)}

	var created []listedProduct
	for _, product := range products {
		isNew, err := s.store.AddProduct(ctx, product.Sku, product.Name, product.Url, product.ImageUrl)
		if err != nil {
			return result, fmt.Errorf("add product %d: %w", product.Sku, err)
		}
		if isNew {
			created = append(created, product)
		}
	}
	result.ProductsNew = len(created)

	slog.InfoContext(ctx, "listing scraped",
		"pages", pages, "seen", len(products), "new", len(created))

	s.fetchDescriptions(ctx, created)
	return result, nil
}

// scrapeListing fans workers out over page numbers. The first empty or
// missing page marks the end; pages beyond it are discarded.
func (s *Scraper) scrapeListing(ctx context.Context) ([]listedProduct, int, error) {
	var nextPage atomic.Int64
	var lastPage atomic.Int64
	lastPage.Store(int64(1 << 30))

	var mu sync.Mutex
	byPage := map[int64][]listedProduct{}
	var scrapeErr error

	wg := sync.WaitGroup{}
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				page := nextPage.Add(1)
				if page > lastPage.Load() || ctx.Err() != nil {
					return
				}

				products, err := s.scrapePage(ctx, page)
				if err != nil {
					mu.Lock()
					if scrapeErr == nil {
						scrapeErr = err
					}
					mu.Unlock()
					lastPage.Store(0)
					return
				}
				if len(products) == 0 {
					// shrink, multiple workers may pass the end
					for {
						known := lastPage.Load()
						if page-1 >= known || lastPage.CompareAndSwap(known, page-1) {
							break
						}
					}
					return
				}

				mu.Lock()
				byPage[page] = products
				mu.Unlock()

				timer := time.NewTimer(s.pageDelay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
		}()
	}
	wg.Wait()

	if scrapeErr != nil {
		return nil, 0, scrapeErr
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	end := lastPage.Load()
	var all []listedProduct
	pages := 0
	for page := int64(1); page <= end; page++ {
		products, ok := byPage[page]
		if !ok {
			continue
		}
		pages++
		all = append(all, products...)
	}
	return all, pages, nil
}

func (s *Scraper) scrapePage(ctx context.Context, page int64) ([]listedProduct, error) {
	ctx, span := tracer.Start(ctx, "scrapePage")
	defer span.End()
	span.SetAttributes(attribute.Int64("page", page))

	path := s.listingPath + "/"
	if page > 1 {
		path = fmt.Sprintf("%s/page/%d/", s.listingPath, page)
	}
	res, err := s.http.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("page %d: unexpected status %d", page, res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, err
	}

	var products []listedProduct
	doc.Find("div.klb-product").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("div.product-text h4 a")
		name := textutil.NormalizeName(link.Text())
		href := link.AttrOr("href", "")

		skuAttr := card.Find("a.ajax_add_to_cart").AttrOr("data-product_sku", "")
		sku, ok := textutil.LenientInt(skuAttr)
		if !ok || name == "" {
			slog.DebugContext(ctx, "skipping malformed product card",
				"page", page, "name", name, "sku", skuAttr)
			return
		}

		img := card.Find("img")
		image := img.AttrOr("data-src", "")
		if image == "" {
			image = img.AttrOr("data-lazy-src", "")
		}
		if image == "" {
			image = img.AttrOr("src", "")
		}

		products = append(products, listedProduct{
			Sku:      sku,
			Name:     name,
			Url:      href,
			ImageUrl: image,
		})
	})
	return products, nil
}

// fetchDescriptions backfills descriptions for newly created products.
// Failures are logged and skipped.
func (s *Scraper) fetchDescriptions(ctx context.Context, products []listedProduct) {
	ctx, span := tracer.Start(ctx, "fetchDescriptions")
	defer span.End()

	queue := make(chan listedProduct)
	wg := sync.WaitGroup{}
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for product := range queue {
				description, err := s.scrapeDescription(ctx, product.Url)
				if err != nil {
					slog.WarnContext(ctx, "failed to fetch description",
						"sku", product.Sku, "url", product.Url, "err", err)
					continue
				}
				if description == "" {
					continue
				}
				err = s.store.SetProductDescription(ctx, product.Sku, description)
				if err != nil {
					slog.WarnContext(ctx, "failed to save description",
						"sku", product.Sku, "err", err)
				}
			}
		}()
	}

	for _, product := range products {
		if product.Url == "" {
			continue
		}
		select {
		case <-ctx.Done():
		case queue <- product:
			continue
		}
		break
	}
	close(queue)
	wg.Wait()
}

func (s *Scraper) scrapeDescription(ctx context.Context, url string) (string, error) {
	res, err := s.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", err
	}
	if res.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return "", err
	}

	var paragraphs []string
	doc.Find("div#tab-description p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n"), nil
}
