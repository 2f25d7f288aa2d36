package cache

import (
	"context"
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"pinbin/pkg/domain"
)

// LRU holds recently read pastes keyed by public url id. Paste content is
// immutable, so entries only need eviction when a paste is pinned, unpinned
// or deleted.
type LRU struct {
	c  *lru.Cache[string, *domain.Paste]
	mu sync.Mutex
}

func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	if size > 100000 {
		return nil, errors.New("cache size too large")
	}
	c, err := lru.New[string, *domain.Paste](size)
	if err != nil {
		return nil, err
	}
	return &LRU{c: c}, nil
}

func (l *LRU) Get(ctx context.Context, urlID string) *domain.Paste {
	select {
	case <-ctx.Done():
		return nil
	default:
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.c.Get(urlID)
	if !ok {
		return nil
	}
	return p
}

func (l *LRU) Set(p *domain.Paste) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.Add(p.URLID, p)
}

func (l *LRU) Delete(urlID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.Remove(urlID)
}

func (l *LRU) Purge() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.Purge()
}
