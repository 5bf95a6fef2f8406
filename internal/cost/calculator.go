// Package cost prices vision model calls.
package cost

import "sort"

// Rates holds per-model vision pricing.
type Rates struct {
	Vision map[string]ModelRate `yaml:"vision" mapstructure:"vision"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes costs for vision usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Vision computes the cost of one vision call:
// (input × input price + output × output price) / 1,000,000.
// Unknown models cost 0.
func (c *Calculator) Vision(model string, input, output int) float64 {
	rate, ok := c.rates.Vision[model]
	if !ok {
		return 0
	}
	return (float64(input)*rate.Input + float64(output)*rate.Output) / 1e6
}

// Known reports whether the calculator has a rate for the model.
func (c *Calculator) Known(model string) bool {
	_, ok := c.rates.Vision[model]
	return ok
}

// Models returns the priced model names, sorted.
func (c *Calculator) Models() []string {
	out := make([]string, 0, len(c.rates.Vision))
	for m := range c.rates.Vision {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Merge returns rates with overrides applied on top of r.
func (r Rates) Merge(overrides map[string]ModelRate) Rates {
	merged := Rates{Vision: make(map[string]ModelRate, len(r.Vision)+len(overrides))}
	for k, v := range r.Vision {
		merged.Vision[k] = v
	}
	for k, v := range overrides {
		merged.Vision[k] = v
	}
	return merged
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Vision: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
			"gpt-4o":                     {Input: 2.50, Output: 10.00},
		},
	}
}
