package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		Vision: map[string]ModelRate{
			"haiku":  {Input: 0.80, Output: 4.00},
			"gpt-4o": {Input: 2.50, Output: 10.00},
		},
	}
}

func TestVision(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name   string
		model  string
		input  int
		output int
		want   float64
	}{
		{name: "haiku one million in", model: "haiku", input: 1000000, output: 100000, want: 0.80 + 0.40},
		{name: "gpt-4o typical image", model: "gpt-4o", input: 1200, output: 350, want: (1200*2.50 + 350*10.00) / 1e6},
		{name: "zero tokens", model: "gpt-4o", input: 0, output: 0, want: 0},
		{name: "output only", model: "gpt-4o", input: 0, output: 1000, want: 0.01},
		{name: "unknown model", model: "nope", input: 1000, output: 1000, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.Vision(tt.model, tt.input, tt.output)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestVision_ExactFormula(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	for _, in := range []int{0, 1, 17, 1234, 999999, 5000000} {
		for _, out := range []int{0, 3, 512, 4096} {
			want := (float64(in)*2.50 + float64(out)*10.00) / 1e6
			assert.InDelta(t, want, calc.Vision("gpt-4o", in, out), 1e-12, "in=%d out=%d", in, out)
		}
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()
	base := testRates()
	merged := base.Merge(map[string]ModelRate{
		"gpt-4o":  {Input: 5, Output: 15},
		"pixtral": {Input: 2, Output: 6},
	})

	assert.Equal(t, ModelRate{Input: 5, Output: 15}, merged.Vision["gpt-4o"])
	assert.Equal(t, ModelRate{Input: 2, Output: 6}, merged.Vision["pixtral"])
	assert.Equal(t, ModelRate{Input: 0.80, Output: 4.00}, merged.Vision["haiku"])
	// base is untouched
	assert.Equal(t, ModelRate{Input: 2.50, Output: 10.00}, base.Vision["gpt-4o"])
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(DefaultRates())

	assert.True(t, calc.Known("gpt-4o"))
	assert.True(t, calc.Known("claude-sonnet-4-5-20250929"))
	assert.False(t, calc.Known("gpt-3"))
	assert.Contains(t, calc.Models(), "claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.0025, calc.Vision("gpt-4o", 1000, 0), 1e-12)
}
