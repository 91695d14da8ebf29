package orders

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vitasana-backend/services/catalog/db"
)

func testMatcher() *Matcher {
	return NewMatcher([]db.Product{
		{Sku: 100, Name: "Doliprane 1000mg Comprimes"},
		{Sku: 200, Name: "Panadol Extra 500mg"},
		{Sku: 300, Name: "Smecta 30 Sachets"},
	})
}

func TestMatchBySkuVerified(t *testing.T) {
	match := testMatcher().MatchItem("100", "Doliprane 1000mg comprimes")
	require.NotNil(t, match)
	require.Equal(t, int64(100), match.Sku)
	require.Equal(t, MatchSku, match.Type)
	require.Equal(t, 1.0, match.Confidence)
}

func TestMatchBySkuWithDisagreeingName(t *testing.T) {
	// the shop reused sku 100 for a totally different product, keep
	// the match but flag it
	match := testMatcher().MatchItem("100", "zzzyyxxww")
	require.NotNil(t, match)
	require.Equal(t, int64(100), match.Sku)
	require.Equal(t, MatchSkuOnly, match.Type)
	require.Equal(t, 0.9, match.Confidence)
}

func TestMatchByExactName(t *testing.T) {
	// sku unknown to the catalog, but the normalized name is an
	// exact hit
	match := testMatcher().MatchItem("999", "  PANADOL   extra 500MG ")
	require.NotNil(t, match)
	require.Equal(t, int64(200), match.Sku)
	require.Equal(t, MatchExact, match.Type)
}

func TestMatchFuzzy(t *testing.T) {
	match := testMatcher().MatchItem("", "Smecta 30 Sachet")
	require.NotNil(t, match)
	require.Equal(t, int64(300), match.Sku)
	require.Equal(t, MatchFuzzy, match.Type)
	require.GreaterOrEqual(t, match.Confidence, 0.85)
}

func TestMatchNothing(t *testing.T) {
	require.Nil(t, testMatcher().MatchItem("", "Chaise de jardin"))
}

func TestFulfillability(t *testing.T) {
	require.Equal(t, FulfillReady, fulfillability([]string{StockReady, StockReady}))
	require.Equal(t, FulfillPartial, fulfillability([]string{StockReady, StockOut}))
	require.Equal(t, FulfillPartial, fulfillability([]string{StockPartial}))
	require.Equal(t, FulfillUnknown, fulfillability([]string{StockOut, StockUnknown}))
	require.Equal(t, FulfillUnknown, fulfillability([]string{StockUnmatched}))
	require.Equal(t, FulfillOut, fulfillability([]string{StockOut, StockOut}))
	require.Equal(t, FulfillUnknown, fulfillability(nil))
}
