package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/evdata-cli/internal/model"
)

func TestClassifyCommand(t *testing.T) {
	out, err := execute(t, "classify", "CPCA top-selling automakers Jan 2025")
	require.NoError(t, err)

	var c model.Classification
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, model.ArticleTypeAutomakerRankings, c.ArticleType)
	assert.Equal(t, model.TableAutomakerRankings, c.Table)
	assert.True(t, c.NeedsOCR)
}

func TestClassifyCommand_RequiresTitle(t *testing.T) {
	_, err := execute(t, "classify")
	assert.Error(t, err)
}

func TestExtractCommand(t *testing.T) {
	extractPublished, extractSummary = "", ""
	out, err := execute(t, "extract", "China EV battery installations hit 45.2 GWh in Jan 2025", "--published", "2025-02-01")
	require.NoError(t, err)

	var got extractOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, model.TableChinaBatteryInstallation, got.Classification.Table)
	require.NotNil(t, got.Extraction)
	assert.True(t, got.Extraction.Success)
	assert.InDelta(t, 45.2, got.Extraction.Data["installation"], 1e-9)
	assert.EqualValues(t, 2025, got.Extraction.Data["year"])
	assert.EqualValues(t, 1, got.Extraction.Data["month"])
}

func TestExtractCommand_Skip(t *testing.T) {
	extractPublished, extractSummary = "", ""
	out, err := execute(t, "extract", "Random news about weather patterns this week")
	require.NoError(t, err)

	var got extractOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Classification.IsSkip())
	assert.Nil(t, got.Extraction)
}

func TestExtractCommand_BadDate(t *testing.T) {
	_, err := execute(t, "extract", "CPCA top-selling automakers Jan 2025", "--published", "Feb 1")
	extractPublished = ""
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--published")
}

func TestOCRCommand_RequiresKey(t *testing.T) {
	t.Setenv("EVDATA_ANTHROPIC_KEY", "")
	_, err := execute(t, "ocr", "https://cnevdata.com/img/a.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}
