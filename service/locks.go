package service

import "sync"

// StrategyLocks serializes read-modify-write cycles on one strategy record. Services
// that rewrite the same records must share one instance.
type StrategyLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func NewStrategyLocks() *StrategyLocks {
	return &StrategyLocks{m: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for id and returns its release.
func (l *StrategyLocks) Lock(id string) (unlock func()) {
	l.mu.Lock()
	mu, ok := l.m[id]
	if !ok {
		mu = &sync.Mutex{}
		l.m[id] = mu
	}
	l.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}
