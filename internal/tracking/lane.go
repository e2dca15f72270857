package tracking

import "sync"

// LaneLock serializes work per job id: checks of the same job run one at a
// time while checks of different jobs proceed in parallel. A global mutex
// guards the lane map and is held only to find or create a lane.
type LaneLock struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// lane counts holders and waiters in refs. A stale lane is deleted once
// refs reaches zero.
type lane struct {
	mu    sync.Mutex
	refs  int
	stale bool
}

// NewLaneLock creates a ready-to-use LaneLock.
func NewLaneLock() *LaneLock {
	return &LaneLock{
		lanes: make(map[string]*lane),
	}
}

// Acquire locks the lane for id, creating it if needed. The caller must
// call Release with the same id.
func (l *LaneLock) Acquire(id string) {
	l.mu.Lock()
	ln, ok := l.lanes[id]
	if !ok {
		ln = &lane{}
		l.lanes[id] = ln
	}
	ln.refs++
	ln.stale = false
	l.mu.Unlock()

	ln.mu.Lock()
}

// TryAcquire locks the lane for id only if no other holder has it.
func (l *LaneLock) TryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	ln, ok := l.lanes[id]
	if !ok {
		ln = &lane{}
		l.lanes[id] = ln
	}
	if !ln.mu.TryLock() {
		return false
	}
	ln.refs++
	ln.stale = false
	return true
}

// Release unlocks the lane for id.
func (l *LaneLock) Release(id string) {
	l.mu.Lock()
	ln, ok := l.lanes[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	ln.refs--
	if ln.refs == 0 && ln.stale {
		delete(l.lanes, id)
	}
	l.mu.Unlock()

	ln.mu.Unlock()
}

// Cleanup drops lanes for ids not in active. Lanes still held are marked
// stale and removed on their last Release.
func (l *LaneLock) Cleanup(active map[string]struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, ln := range l.lanes {
		if _, ok := active[id]; !ok {
			ln.stale = true
			if ln.refs == 0 {
				delete(l.lanes, id)
			}
			continue
		}
		ln.stale = false
	}
}

// Len returns the number of lanes currently tracked.
func (l *LaneLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
