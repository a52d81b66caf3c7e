package attendance

import (
	"context"

	"smartattend/internal/store"
)

// Summary describes the last confirmed session across every class.
type Summary struct {
	ClassID     string `json:"classId"`
	AbsentCount int    `json:"absentCount"`
	Time        string `json:"time"`
}

// SummaryCache holds the single most recent Summary.
type SummaryCache struct {
	store store.Store
}

// NewSummaryCache creates a cache over s.
func NewSummaryCache(s store.Store) *SummaryCache {
	return &SummaryCache{store: s}
}

// Save overwrites the cached summary.
func (c *SummaryCache) Save(ctx context.Context, s Summary) error {
	return store.SetJSON(ctx, c.store, store.KeyLastSummary, s)
}

// Last returns the cached summary, if any.
func (c *SummaryCache) Last(ctx context.Context) (Summary, bool) {
	var s Summary
	ok := store.GetJSON(ctx, c.store, store.KeyLastSummary, &s)
	return s, ok
}
