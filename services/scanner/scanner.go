package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"vitasana-backend/services/catalog"
)

// Alphabet covers every character product names are queried by:
// lowercase letters, digits and the space separating words.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789 "

// MaxDepth bounds how long a prefix the frontier will ever expand to.
const MaxDepth = 5

// ErrNoOptimizedList means an optimized scan was requested but no
// prefix list has been generated yet.
var ErrNoOptimizedList = fmt.Errorf("optimized prefix list not found, run the optimizer first")

type Options struct {
	Client *Client
	Store  *catalog.Store
	// OptimizedListPath is where the optimizer saved its prefix
	// list, read by optimized scans.
	OptimizedListPath string
	// QueryDelay spaces out search requests. Defaults to 200ms.
	QueryDelay time.Duration
	// ErrorBackoff is the pause after a failed request. Defaults to
	// one second.
	ErrorBackoff time.Duration
}

// Scanner walks the prefix frontier against the capped search
// endpoint, persisting every product it sees.
type Scanner struct {
	client            *Client
	store             *catalog.Store
	optimizedListPath string
	queryDelay        time.Duration
	errorBackoff      time.Duration
}

func NewScanner(opts Options) *Scanner {
	queryDelay := opts.QueryDelay
	if queryDelay == 0 {
		queryDelay = 200 * time.Millisecond
	}
	errorBackoff := opts.ErrorBackoff
	if errorBackoff == 0 {
		errorBackoff = time.Second
	}
	return &Scanner{
		client:            opts.Client,
		store:             opts.Store,
		optimizedListPath: opts.OptimizedListPath,
		queryDelay:        queryDelay,
		errorBackoff:      errorBackoff,
	}
}

type RunOptions struct {
	// Optimized seeds the frontier from the saved prefix list and
	// disables cap-driven expansion, instead of starting from single
	// characters.
	Optimized bool
}

// Run performs one full enumeration pass. Progress is updated as the
// frontier is worked; cancel the context to stop early. Only a
// rejected session or a missing optimized list abort the scan; a flaky
// query or a failed persist is backed off and skipped.
func (s *Scanner) Run(ctx context.Context, opts RunOptions, progress *Progress) error {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(attribute.Bool("optimized", opts.Optimized))

	var frontier []string
	if opts.Optimized {
		var err error
		frontier, err = s.loadOptimizedList()
		if err != nil {
			progress.finish(PhaseError, err.Error())
			span.SetStatus(codes.Error, "failed to load optimized list")
			return err
		}
	} else {
		for _, c := range Alphabet {
			frontier = append(frontier, string(c))
		}
	}

	progress.start(len(frontier))
	slog.InfoContext(ctx, "scan started", "seed_prefixes", len(frontier), "optimized", opts.Optimized)

	visited := map[string]bool{}
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			progress.finish(PhaseStopped, "scan cancelled")
			slog.InfoContext(ctx, "scan stopped")
			return err
		}

		prefix := frontier[0]
		frontier = frontier[1:]

		if visited[prefix] || len(prefix) > MaxDepth {
			progress.prefixDone()
			continue
		}
		visited[prefix] = true
		progress.scanning(prefix)

		products, err := s.client.Search(ctx, prefix)
		if errors.Is(err, ErrUnauthorized) {
			progress.finish(PhaseError, err.Error())
			span.SetStatus(codes.Error, "session rejected")
			return err
		}
		if err != nil {
			slog.WarnContext(ctx, "query failed, backing off", "prefix", prefix, "err", err)
			progress.prefixDone()
			if err := sleep(ctx, s.errorBackoff); err != nil {
				progress.finish(PhaseStopped, "scan cancelled")
				return err
			}
			continue
		}

		if len(products) > 0 {
			err = s.store.UpsertProductsFromSearch(ctx, searchedProducts(products))
			if err != nil {
				slog.WarnContext(ctx, "failed to persist products, backing off", "prefix", prefix, "err", err)
				progress.prefixDone()
				if err := sleep(ctx, s.errorBackoff); err != nil {
					progress.finish(PhaseStopped, "scan cancelled")
					return err
				}
				continue
			}
			if err := s.store.RecordScanPrefix(ctx, prefix, len(products)); err != nil {
				slog.WarnContext(ctx, "failed to record prefix", "prefix", prefix, "err", err)
			}
			progress.addItems(len(products))
		}

		// a capped response means this prefix hides more products
		// than one page shows, so fan out one character deeper
		if len(products) >= MaxResults && !opts.Optimized && len(prefix) < MaxDepth {
			expansions := make([]string, 0, len(Alphabet))
			for _, c := range Alphabet {
				expansions = append(expansions, prefix+string(c))
			}
			frontier = append(frontier, expansions...)
			progress.addTotal(len(expansions))
		} else if len(products) >= MaxResults && opts.Optimized {
			slog.WarnContext(ctx, "optimized prefix hit the result cap, list may be stale", "prefix", prefix)
		}

		progress.prefixDone()

		if len(frontier) > 0 {
			if err := sleep(ctx, s.queryDelay); err != nil {
				progress.finish(PhaseStopped, "scan cancelled")
				return err
			}
		}
	}

	progress.finish(PhaseCompleted, "")
	snapshot := progress.Snapshot()
	slog.InfoContext(ctx, "scan completed",
		"items_found", snapshot.ItemsFound,
		"prefixes_processed", snapshot.PrefixesProcessed)
	return nil
}

func (s *Scanner) loadOptimizedList() ([]string, error) {
	raw, err := os.ReadFile(s.optimizedListPath)
	if os.IsNotExist(err) {
		return nil, ErrNoOptimizedList
	}
	if err != nil {
		return nil, err
	}
	var prefixes []string
	if err := json.Unmarshal(raw, &prefixes); err != nil {
		return nil, fmt.Errorf("parse optimized list %q: %w", s.optimizedListPath, err)
	}
	if len(prefixes) == 0 {
		return nil, ErrNoOptimizedList
	}
	return prefixes, nil
}

func searchedProducts(products []Product) []catalog.SearchedProduct {
	out := make([]catalog.SearchedProduct, 0, len(products))
	for _, p := range products {
		out = append(out, catalog.SearchedProduct{
			Sku:         p.Sku,
			Name:        p.Name,
			Stock:       p.Stock,
			Price:       p.Price,
			ImageUrl:    p.ImageUrl,
			Description: p.Description,
		})
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
