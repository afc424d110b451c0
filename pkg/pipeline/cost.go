package pipeline

import "github.com/shopspring/decimal"

// Pricing heuristics for the dry-run estimate, dollars per million
// tokens.
var (
	inputPricePerMTok  = decimal.NewFromInt(3)
	outputPricePerMTok = decimal.NewFromInt(15)
	million            = decimal.NewFromInt(1_000_000)
)

// estimateCost projects API spend before any call is made. Facet
// extraction runs about 4K input and 1K output tokens per uncached
// session, chunk summarization 2K/500 per long session, and the report
// phase 8 calls at 8K/4K each.
func estimateCost(uncachedSessions, longSessions int) (cost decimal.Decimal, inputTokens, outputTokens int64) {
	inputTokens = int64(uncachedSessions)*4000 + int64(longSessions)*2000 + 8*8000
	outputTokens = int64(uncachedSessions)*1000 + int64(longSessions)*500 + 8*4000

	inCost := decimal.NewFromInt(inputTokens).Div(million).Mul(inputPricePerMTok)
	outCost := decimal.NewFromInt(outputTokens).Div(million).Mul(outputPricePerMTok)
	return inCost.Add(outCost), inputTokens, outputTokens
}
