package llm

// Prices are USD per million tokens. Models missing from the table
// cost zero so estimates stay conservative rather than wrong.
type modelPrice struct {
	input  float64
	output float64
}

var modelPrices = map[string]modelPrice{
	"claude-sonnet-4-20250514":   {3.00, 15.00},
	"claude-3-5-sonnet-20241022": {3.00, 15.00},
	"claude-3-haiku-20240307":    {0.25, 1.25},
	"gpt-4o":                     {2.50, 10.00},
	"gpt-4o-mini":                {0.150, 0.600},
	"text-embedding-3-small":     {0.02, 0},
}

// Cost estimates the dollar cost of usage under the named model.
func Cost(model string, u Usage) float64 {
	p, ok := modelPrices[model]
	if !ok {
		return 0
	}
	return float64(u.InputTokens)/1e6*p.input + float64(u.OutputTokens)/1e6*p.output
}
