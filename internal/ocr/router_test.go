package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/evdata-cli/internal/cost"
	"github.com/sells-group/evdata-cli/internal/model"
	"github.com/sells-group/evdata-cli/pkg/anthropic"
)

type mockVision struct {
	mock.Mock
}

func (m *mockVision) Extract(ctx context.Context, imageURL, prompt string) (*anthropic.VisionReply, error) {
	args := m.Called(ctx, imageURL, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.VisionReply), args.Error(1)
}

func (m *mockVision) Model() string { return "claude-sonnet-4-5-20250929" }

func newRouter(v Vision) *Router {
	return NewRouter(v, cost.NewCalculator(cost.DefaultRates()))
}

func TestRouterRun_Rankings(t *testing.T) {
	v := &mockVision{}
	v.On("Extract", mock.Anything, "https://img/rank.png", rankingsPrompt).Return(&anthropic.VisionReply{
		Text:         `{"rankings":[{"rank":1,"brand":"BYD","value":300538},{"rank":2,"brand":"Geely","value":150000}]}`,
		Model:        "claude-sonnet-4-5-20250929",
		InputTokens:  1000,
		OutputTokens: 200,
	}, nil)

	res := newRouter(v).Run(context.Background(), "https://img/rank.png", model.PromptRankings)
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "BYD", res.Rows[0]["brand"])
	assert.Equal(t, 1000, res.InputTokens)
	assert.Equal(t, 200, res.OutputTokens)
	assert.InDelta(t, (1000*3.0+200*15.0)/1e6, res.Cost, 1e-12)
	assert.Equal(t, "claude-sonnet-4-5-20250929", res.Model)
	assert.GreaterOrEqual(t, res.DurationMs, int64(0))
	v.AssertExpectations(t)
}

func TestRouterRun_MalformedJSONKeepsUsage(t *testing.T) {
	v := &mockVision{}
	v.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return(&anthropic.VisionReply{
		Text:         "Sorry, the image is too blurry.",
		InputTokens:  800,
		OutputTokens: 12,
	}, nil)

	res := newRouter(v).Run(context.Background(), "https://img/x.png", model.PromptMetrics)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.Rows)
	assert.Equal(t, 800, res.InputTokens)
	assert.Equal(t, 12, res.OutputTokens)
	assert.Greater(t, res.Cost, 0.0)
	assert.Equal(t, "claude-sonnet-4-5-20250929", res.Model)
}

func TestRouterRun_VisionError(t *testing.T) {
	v := &mockVision{}
	v.On("Extract", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	res := newRouter(v).Run(context.Background(), "https://img/x.png", model.PromptTrend)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "rate limited")
	assert.Zero(t, res.InputTokens)
	assert.Zero(t, res.Cost)
}

func TestRouterRun_ChartRefused(t *testing.T) {
	v := &mockVision{}
	res := newRouter(v).Run(context.Background(), "https://img/x.png", model.PromptChart)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "chart")
	v.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
}

func TestRouterRun_NoImage(t *testing.T) {
	v := &mockVision{}
	res := newRouter(v).Run(context.Background(), "", model.PromptRankings)
	assert.False(t, res.Success)
	v.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything)
}

func TestRouterRun_UnknownKindUsesGeneral(t *testing.T) {
	v := &mockVision{}
	v.On("Extract", mock.Anything, mock.Anything, generalPrompt).Return(&anthropic.VisionReply{Text: `[]`}, nil)

	res := newRouter(v).Run(context.Background(), "https://img/x.png", model.PromptKind("heatmap"))
	assert.True(t, res.Success)
	assert.Empty(t, res.Rows)
	v.AssertExpectations(t)
}

func TestRouterRun_SpecsSingleRow(t *testing.T) {
	v := &mockVision{}
	v.On("Extract", mock.Anything, mock.Anything, specsPrompt).Return(&anthropic.VisionReply{
		Text: "```json\n{\"brand\":\"Xiaomi\",\"model\":\"YU7\",\"range_km\":835}\n```",
	}, nil)

	res := newRouter(v).Run(context.Background(), "https://img/spec.png", model.PromptSpecs)
	require.True(t, res.Success)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "YU7", res.Rows[0]["model"])
}

func TestPromptFor(t *testing.T) {
	for _, kind := range []model.PromptKind{model.PromptRankings, model.PromptTrend, model.PromptSpecs, model.PromptMetrics, model.PromptGeneral} {
		p, ok := PromptFor(kind)
		assert.True(t, ok)
		assert.Contains(t, p, "JSON", kind)
	}
	_, ok := PromptFor(model.PromptChart)
	assert.False(t, ok)
	p, ok := PromptFor(model.PromptNone)
	assert.True(t, ok)
	assert.Equal(t, generalPrompt, p)
}
