package export

import "sync"

// tracker counts progress for one form's export run.
type tracker struct {
	mu       sync.Mutex
	total    int
	exported int
	skipped  int
}

func newTracker(total int) *tracker {
	return &tracker{total: total}
}

func (t *tracker) incExported() (exported, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exported++
	return t.exported, t.total
}

func (t *tracker) incSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skipped++
}

func (t *tracker) snapshot() (total, exported, skipped int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total, t.exported, t.skipped
}
