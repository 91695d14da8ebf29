// Package tracker re-checks stock and pricing for every known product
// through the supplier's product endpoint, appending one monitoring
// record per product per run.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"vitasana-backend/lib/telemetry"
	"vitasana-backend/lib/textutil"
	"vitasana-backend/lib/timezone"
	"vitasana-backend/services/auth"
	"vitasana-backend/services/catalog"
	"vitasana-backend/services/catalog/db"
)

var tracer = otel.Tracer("services/tracker")

type Options struct {
	Store *catalog.Store

	BaseUrl string
	// ProductPath is the endpoint relative to BaseUrl, defaulting to
	// "/api/get_product".
	ProductPath string
	// ClientId identifies our account to the supplier endpoint.
	ClientId string
	Username string
	Password string

	// Workers is the number of products checked concurrently.
	// Defaults to 4.
	Workers int
	// Retries per product before giving up on it. Defaults to 3.
	Retries int
	// RetryDelay defaults to 2 seconds.
	RetryDelay time.Duration
}

type Tracker struct {
	store       *catalog.Store
	http        *resty.Client
	productPath string
	clientId    string
	workers     int
	retries     int
	retryDelay  time.Duration
}

func NewTracker(opts Options) *Tracker {
	productPath := opts.ProductPath
	if productPath == "" {
		productPath = "/api/get_product"
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = 3
	}
	retryDelay := opts.RetryDelay
	if retryDelay == 0 {
		retryDelay = 2 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetBasicAuth(opts.Username, opts.Password)
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "services/tracker/http")

	return &Tracker{
		store:       opts.Store,
		http:        client,
		productPath: productPath,
		clientId:    opts.ClientId,
		workers:     workers,
		retries:     retries,
		retryDelay:  retryDelay,
	}
}

// Run checks every product in the catalog once. Individual product
// failures are logged and skipped; a rejected credential aborts the
// whole run since every remaining check would fail the same way.
func (t *Tracker) Run(ctx context.Context, progress *Progress) error {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	products, err := t.store.GetProducts(ctx, -1, 0, nil)
	if err != nil {
		progress.finish(PhaseError, err.Error())
		span.SetStatus(codes.Error, "failed to list products")
		return err
	}
	progress.start(len(products))
	slog.InfoContext(ctx, "monitoring run started", "products", len(products), "workers", t.workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan db.Product)
	var abortErr error
	var abortLock sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < t.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for product := range queue {
				err := t.checkProduct(ctx, product)
				if errors.Is(err, auth.ErrUnauthorized) || errors.Is(err, context.Canceled) {
					abortLock.Lock()
					if abortErr == nil {
						abortErr = err
					}
					abortLock.Unlock()
					cancel()
					continue
				}
				if err != nil {
					slog.WarnContext(ctx, "product check failed",
						"sku", product.Sku, "name", product.Name, "err", err)
					progress.markFailed()
					continue
				}
				progress.done()
			}
		}()
	}

feed:
	for _, product := range products {
		select {
		case <-ctx.Done():
			break feed
		case queue <- product:
		}
	}
	close(queue)
	wg.Wait()

	abortLock.Lock()
	defer abortLock.Unlock()
	if abortErr != nil {
		progress.finish(PhaseError, abortErr.Error())
		span.SetStatus(codes.Error, "monitoring run aborted")
		return abortErr
	}

	progress.finish(PhaseCompleted, "")
	snapshot := progress.Snapshot()
	slog.InfoContext(ctx, "monitoring run finished",
		"checked", snapshot.Checked, "failed", snapshot.Failed)
	return nil
}

// CheckSku re-checks a single product, used by order reconciliation
// to get fresh stock for matched line items.
func (t *Tracker) CheckSku(ctx context.Context, sku int64) error {
	product, err := t.store.GetProduct(ctx, sku)
	if err != nil {
		return err
	}
	return t.checkProduct(ctx, product)
}

type productOffer struct {
	Name     string `json:"name"`
	Stock    string `json:"stock"`
	Price    string `json:"price"`
	Discount string `json:"discount"`
	Points   string `json:"points"`
}

type productResponse struct {
	Products []productOffer `json:"products"`
}

func (t *Tracker) checkProduct(ctx context.Context, product db.Product) error {
	ctx, span := tracer.Start(ctx, "checkProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("sku", product.Sku))

	offers, err := t.fetchOffers(ctx, product.Sku)
	if err != nil {
		return err
	}

	offer := filterOffer(offers, product.Name)
	if offer == nil {
		slog.WarnContext(ctx, "no offer matched product name",
			"sku", product.Sku, "name", product.Name, "offers", len(offers))
		return t.store.UpdateLastChecked(ctx, product.Sku, timezone.Now())
	}

	stock, ok := textutil.LenientInt(offer.Stock)
	if !ok {
		return fmt.Errorf("unparsable stock %q", offer.Stock)
	}
	price, ok := textutil.LenientFloat(offer.Price)
	if !ok {
		return fmt.Errorf("unparsable price %q", offer.Price)
	}
	discount, ok := textutil.LenientFloat(offer.Discount)
	if !ok {
		discount = 0
	}
	points, ok := textutil.LenientInt(offer.Points)
	if !ok {
		points = 0
	}

	availability := "Out of Stock"
	if stock > 0 {
		availability = "In Stock"
	}

	return t.store.AddMonitoringRecord(ctx, product.Sku, catalog.MonitoringRecord{
		Timestamp:       timezone.Now(),
		Stock:           stock,
		Price:           price,
		DiscountPercent: discount,
		FinalPrice:      price * (1 - discount/100),
		Availability:    availability,
		Points:          points,
	})
}

func (t *Tracker) fetchOffers(ctx context.Context, sku int64) ([]productOffer, error) {
	var lastErr error
	for attempt := 0; attempt < t.retries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(t.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		res, err := t.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"product_id": fmt.Sprintf("%d", sku),
				"client_id":  t.clientId,
			}).
			Get(t.productPath)
		if err != nil {
			lastErr = err
			continue
		}

		status := res.StatusCode()
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, fmt.Errorf("product %d: %w", sku, auth.ErrUnauthorized)
		}
		if status != http.StatusOK {
			lastErr = fmt.Errorf("product %d: unexpected status %d", sku, status)
			continue
		}

		var parsed productResponse
		if err := json.Unmarshal(res.Body(), &parsed); err != nil {
			lastErr = fmt.Errorf("product %d: unparsable response: %w", sku, err)
			continue
		}
		return parsed.Products, nil
	}
	return nil, lastErr
}

// filterOffer matches an offer against the product by normalized name,
// trying progressively looser variants: the full name, the part before
// a dash separator, then the first three words.
func filterOffer(offers []productOffer, productName string) *productOffer {
	for _, variant := range nameVariants(productName) {
		for i := range offers {
			if textutil.NormalizeName(offers[i].Name) == variant {
				return &offers[i]
			}
		}
	}
	return nil
}

func nameVariants(name string) []string {
	full := textutil.NormalizeName(name)
	variants := []string{full}

	for _, separator := range []string{" – ", " - "} {
		if head, _, found := strings.Cut(full, separator); found {
			variants = append(variants, strings.TrimSpace(head))
			break
		}
	}

	words := strings.Fields(full)
	if len(words) > 3 {
		variants = append(variants, strings.Join(words[:3], " "))
	}
	return variants
}
