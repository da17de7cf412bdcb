// Package timers schedules delayed continuations keyed by owner so that a
// logout can render every pending task of that owner inert.
package timers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// OwnerTimers is safe for concurrent use.
type OwnerTimers struct {
	mu      sync.Mutex
	gens    map[int64]uint64
	pending map[int64]map[*time.Timer]struct{}
}

func New() *OwnerTimers {
	return &OwnerTimers{
		gens:    make(map[int64]uint64),
		pending: make(map[int64]map[*time.Timer]struct{}),
	}
}

// Schedule runs fn after d unless Cancel(ownerID) is called first. A task
// whose timer already fired but lost the race with Cancel is skipped.
func (t *OwnerTimers) Schedule(ownerID int64, name string, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	gen := t.gens[ownerID]
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		delete(t.pending[ownerID], timer)
		live := t.gens[ownerID] == gen
		t.mu.Unlock()
		if !live {
			zap.L().Debug("timers: skipping cancelled task",
				zap.Int64("owner_id", ownerID), zap.String("task", name))
			return
		}
		defer func() {
			if err := recover(); err != nil {
				zap.S().Errorf("timers: task %s for owner %d panicked: %v", name, ownerID, err)
			}
		}()
		fn()
	})
	if t.pending[ownerID] == nil {
		t.pending[ownerID] = make(map[*time.Timer]struct{})
	}
	t.pending[ownerID][timer] = struct{}{}
}

// Cancel stops all pending tasks of the owner.
func (t *OwnerTimers) Cancel(ownerID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gens[ownerID]++
	for timer := range t.pending[ownerID] {
		timer.Stop()
	}
	delete(t.pending, ownerID)
}

// Pending returns the number of scheduled tasks of the owner.
func (t *OwnerTimers) Pending(ownerID int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending[ownerID])
}

// Stop cancels every pending task of every owner.
func (t *OwnerTimers) Stop() {
	t.mu.Lock()
	owners := make([]int64, 0, len(t.pending))
	for id := range t.pending {
		owners = append(owners, id)
	}
	t.mu.Unlock()
	for _, id := range owners {
		t.Cancel(id)
	}
}
