package backfill

import (
	"sync"

	"github.com/sells-group/evdata-cli/internal/checkpoint"
)

// ledger tracks URLs for one run: claimed URLs are never handed out twice,
// and completed URLs feed the checkpoint.
type ledger struct {
	mu      sync.Mutex
	claimed map[string]struct{}
	done    []string
}

// newLedger seeds the ledger from a resumed checkpoint, which may be nil.
func newLedger(cp *checkpoint.Checkpoint) *ledger {
	if cp == nil {
		return &ledger{claimed: make(map[string]struct{})}
	}
	return &ledger{
		claimed: cp.URLSet(),
		done:    append([]string(nil), cp.ProcessedURLs...),
	}
}

// claim reports whether url is new to this run and marks it taken.
func (l *ledger) claim(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.claimed[url]; ok {
		return false
	}
	l.claimed[url] = struct{}{}
	return true
}

// release returns an abandoned URL so a resumed run picks it up.
func (l *ledger) release(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.claimed, url)
}

func (l *ledger) complete(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done = append(l.done, url)
	if len(l.done) > 2*checkpoint.MaxURLs {
		l.done = append([]string(nil), l.done[len(l.done)-checkpoint.MaxURLs:]...)
	}
}

// recent returns the most recently completed URLs, oldest first.
func (l *ledger) recent() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.done)
	if n > checkpoint.MaxURLs {
		return append([]string(nil), l.done[n-checkpoint.MaxURLs:]...)
	}
	return append([]string(nil), l.done...)
}
