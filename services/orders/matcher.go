// Package orders reconciles WooCommerce orders against the supplier
// catalog: which line items map to which catalog products, and whether
// the stock on hand can fulfill each order.
package orders

import (
	"strconv"

	"github.com/antzucaro/matchr"

	"vitasana-backend/lib/textutil"
	"vitasana-backend/services/catalog/db"
)

// Match type, strongest first. A sku match whose names disagree is
// downgraded to sku_only since shops are known to recycle skus.
const (
	MatchSku     = "sku"
	MatchSkuOnly = "sku_only"
	MatchExact   = "exact"
	MatchFuzzy   = "fuzzy"
)

const (
	// skuNameAgreement is the minimum name similarity for a sku
	// match to count as verified.
	skuNameAgreement = 0.4
	// fuzzyThreshold is the minimum similarity for a pure name
	// match.
	fuzzyThreshold = 0.85

	confidenceSkuVerified = 1.0
	confidenceSkuOnly     = 0.9
	confidenceExact       = 0.95
)

// Match is a resolved line item.
type Match struct {
	Sku        int64
	Type       string
	Confidence float64
}

// Matcher resolves order line items against a catalog snapshot.
type Matcher struct {
	bySku  map[int64]db.Product
	byName map[string]db.Product
}

func NewMatcher(products []db.Product) *Matcher {
	m := &Matcher{
		bySku:  map[int64]db.Product{},
		byName: map[string]db.Product{},
	}
	for _, product := range products {
		m.bySku[product.Sku] = product
		m.byName[textutil.NormalizeName(product.Name)] = product
	}
	return m
}

// MatchItem resolves one line item by sku when possible, then by
// normalized name, then by fuzzy similarity. Returns nil when nothing
// in the catalog is plausible.
func (m *Matcher) MatchItem(itemSku, itemName string) *Match {
	name := textutil.NormalizeName(itemName)

	if itemSku != "" {
		if sku, err := strconv.ParseInt(itemSku, 10, 64); err == nil {
			if product, ok := m.bySku[sku]; ok {
				similarity := matchr.JaroWinkler(name, textutil.NormalizeName(product.Name), false)
				if similarity > skuNameAgreement {
					return &Match{Sku: sku, Type: MatchSku, Confidence: confidenceSkuVerified}
				}
				return &Match{Sku: sku, Type: MatchSkuOnly, Confidence: confidenceSkuOnly}
			}
		}
	}

	if product, ok := m.byName[name]; ok {
		return &Match{Sku: product.Sku, Type: MatchExact, Confidence: confidenceExact}
	}

	var bestSimilarity float64
	var bestSku int64
	for candidate, product := range m.byName {
		similarity := matchr.JaroWinkler(name, candidate, false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			bestSku = product.Sku
		}
	}
	if bestSimilarity >= fuzzyThreshold {
		return &Match{Sku: bestSku, Type: MatchFuzzy, Confidence: bestSimilarity}
	}
	return nil
}
