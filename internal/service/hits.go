// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/olegiv/ocms-redirects/internal/store"
	"github.com/olegiv/ocms-redirects/internal/util"
)

type hitTally struct {
	count int64
	last  time.Time
}

// HitCounter buffers served-redirect counts in memory until Flush writes
// them to the database.
type HitCounter struct {
	queries *store.Queries
	mu      sync.Mutex
	pending map[int64]hitTally
}

// NewHitCounter creates a new HitCounter.
func NewHitCounter(db *sql.DB) *HitCounter {
	return &HitCounter{
		queries: store.New(db),
		pending: make(map[int64]hitTally),
	}
}

// Record counts one hit for redirectID. Safe on a nil receiver.
func (h *HitCounter) Record(redirectID int64) {
	if h == nil || redirectID == 0 {
		return
	}
	h.mu.Lock()
	t := h.pending[redirectID]
	t.count++
	t.last = time.Now().UTC()
	h.pending[redirectID] = t
	h.mu.Unlock()
}

// Pending returns the number of buffered hits.
func (h *HitCounter) Pending() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var n int64
	for _, t := range h.pending {
		n += t.count
	}
	return n
}

// Flush writes the buffered hits and returns how many were written. Hits
// that fail to write are put back for the next flush.
func (h *HitCounter) Flush(ctx context.Context) (int64, error) {
	h.mu.Lock()
	batch := h.pending
	h.pending = make(map[int64]hitTally)
	h.mu.Unlock()

	var written int64
	var firstErr error
	for id, t := range batch {
		err := h.queries.AddRedirectHits(ctx, store.AddRedirectHitsParams{
			Hits:      t.count,
			LastHitAt: util.NullTimeFrom(t.last),
			ID:        id,
		})
		if err != nil {
			h.restore(id, t)
			if firstErr == nil {
				firstErr = fmt.Errorf("flushing hits for redirect %d: %w", id, err)
			}
			continue
		}
		written += t.count
	}
	return written, firstErr
}

func (h *HitCounter) restore(id int64, t hitTally) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur := h.pending[id]
	cur.count += t.count
	if t.last.After(cur.last) {
		cur.last = t.last
	}
	h.pending[id] = cur
}
