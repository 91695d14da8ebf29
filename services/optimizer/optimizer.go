// Package optimizer derives a minimal prefix list from the known
// catalog. Scanning that list instead of the full frontier covers
// every known product in far fewer queries.
package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"vitasana-backend/lib/textutil"
	"vitasana-backend/services/catalog"
	"vitasana-backend/services/scanner"
)

var tracer = otel.Tracer("services/optimizer")

// GeneratePrefixes computes an ordered prefix list for a corpus of
// product names. Every name is covered by at least one prefix, and
// every prefix matches at most the result cap's worth of names except
// where the depth bound forces a wider leaf. The output is
// deterministic for a given corpus.
func GeneratePrefixes(names []string, semantics scanner.QuerySemantics) []string {
	normalized := make([]string, 0, len(names))
	for _, name := range names {
		name = textutil.NormalizeName(name)
		if name != "" {
			normalized = append(normalized, name)
		}
	}
	return generate(normalized, semantics, scanner.MaxResults, scanner.MaxDepth)
}

func generate(names []string, semantics scanner.QuerySemantics, limit, maxDepth int) []string {
	var prefixes []string
	for _, c := range scanner.Alphabet {
		prefix := string(c)
		prefixes = append(prefixes, branch(filter(names, prefix, semantics), prefix, semantics, limit, maxDepth)...)
	}
	return prefixes
}

func branch(subset []string, prefix string, semantics scanner.QuerySemantics, limit, maxDepth int) []string {
	if len(subset) == 0 {
		return nil
	}
	if len(subset) <= limit {
		return []string{prefix}
	}
	if len(prefix) >= maxDepth {
		// too many names share this prefix and we cannot split it
		// further, scans of this leaf will hit the cap
		return []string{prefix}
	}

	var out []string
	covered := map[string]bool{}
	for _, c := range scanner.Alphabet {
		deeper := prefix + string(c)
		child := filter(subset, deeper, semantics)
		if len(child) == 0 {
			continue
		}
		for _, name := range child {
			covered[name] = true
		}
		out = append(out, branch(child, deeper, semantics, limit, maxDepth)...)
	}

	// names that end right at this prefix match it but no deeper
	// one, so the prefix itself has to stay in the list
	for _, name := range subset {
		if !covered[name] {
			out = append(out, prefix)
			break
		}
	}
	return out
}

func filter(names []string, prefix string, semantics scanner.QuerySemantics) []string {
	var matched []string
	for _, name := range names {
		if matches(name, prefix, semantics) {
			matched = append(matched, name)
		}
	}
	return matched
}

func matches(name, prefix string, semantics scanner.QuerySemantics) bool {
	if semantics == scanner.SemanticsContains {
		return strings.Contains(name, prefix)
	}
	return strings.HasPrefix(name, prefix)
}

type Options struct {
	Store *catalog.Store
	// ListPath is where the generated list is written, read later by
	// optimized scans.
	ListPath  string
	Semantics scanner.QuerySemantics
}

// Optimizer regenerates the optimized prefix list from the catalog.
type Optimizer struct {
	store     *catalog.Store
	listPath  string
	semantics scanner.QuerySemantics
}

func NewOptimizer(opts Options) *Optimizer {
	semantics := opts.Semantics
	if semantics == "" {
		semantics = scanner.SemanticsStartsWith
	}
	return &Optimizer{
		store:     opts.Store,
		listPath:  opts.ListPath,
		semantics: semantics,
	}
}

// SaveOptimizedList generates the prefix list from every known product
// name and writes it to disk, returning the list.
func (o *Optimizer) SaveOptimizedList(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "SaveOptimizedList")
	defer span.End()

	names, err := o.store.ProductNames(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to list product names")
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("catalog is empty, run a full scan before optimizing")
	}

	prefixes := GeneratePrefixes(names, o.semantics)

	raw, err := json.MarshalIndent(prefixes, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(o.listPath), 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(o.listPath, raw, 0644); err != nil {
		span.SetStatus(codes.Error, "failed to write prefix list")
		return nil, err
	}

	slog.InfoContext(ctx, "optimized prefix list saved",
		"path", o.listPath,
		"products", len(names),
		"prefixes", len(prefixes))
	return prefixes, nil
}
