package backfill

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/evdata-cli/internal/checkpoint"
)

func TestLedger_ClaimOnce(t *testing.T) {
	l := newLedger(nil)
	assert.True(t, l.claim("a"))
	assert.False(t, l.claim("a"))
	assert.True(t, l.claim("b"))
}

func TestLedger_ResumedURLsAreClaimed(t *testing.T) {
	l := newLedger(&checkpoint.Checkpoint{LastPage: 3, ProcessedURLs: []string{"a", "b"}})
	assert.False(t, l.claim("a"))
	assert.True(t, l.claim("c"))
	assert.Equal(t, []string{"a", "b"}, l.recent())
}

func TestLedger_Release(t *testing.T) {
	l := newLedger(nil)
	require.True(t, l.claim("a"))
	l.release("a")
	assert.True(t, l.claim("a"))
	assert.Empty(t, l.recent())
}

func TestLedger_RecentIsBounded(t *testing.T) {
	l := newLedger(nil)
	total := 2*checkpoint.MaxURLs + 10
	for i := 0; i < total; i++ {
		l.complete(fmt.Sprintf("u%d", i))
	}

	got := l.recent()
	require.Len(t, got, checkpoint.MaxURLs)
	assert.Equal(t, fmt.Sprintf("u%d", total-checkpoint.MaxURLs), got[0])
	assert.Equal(t, fmt.Sprintf("u%d", total-1), got[len(got)-1])
	assert.LessOrEqual(t, len(l.done), 2*checkpoint.MaxURLs)
}
