package ai

// ModelPricing holds USD prices per million tokens.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

var pricingTable = map[string]ModelPricing{
	"claude-3-5-sonnet-20241022": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-3-haiku-20240307":    {InputPerMTok: 0.25, OutputPerMTok: 1.25},
	"gpt-4o":                     {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini":                {InputPerMTok: 0.15, OutputPerMTok: 0.60},
}

// Unknown models are billed at the most expensive known rate so the ledger
// over-counts rather than under-counts.
var defaultPricing = ModelPricing{InputPerMTok: 3.00, OutputPerMTok: 15.00}

// CostUSD computes the dollar cost of a call from its token usage.
func CostUSD(model string, tokensIn, tokensOut int) float64 {
	p, ok := pricingTable[model]
	if !ok {
		p = defaultPricing
	}
	return float64(tokensIn)*p.InputPerMTok/1e6 + float64(tokensOut)*p.OutputPerMTok/1e6
}
