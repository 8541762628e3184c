// Package index remembers where the transcript of a source message was posted,
// so repeated manual requests can be answered with a link instead of new work.
package index

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store maps a source message id to the link of its transcript. A later Put
// for the same id replaces the earlier link.
type Store interface {
	Get(messageID string) (string, bool)
	Put(messageID, link string)
	Len() int
}

// New returns an unbounded store when maxEntries is 0, otherwise an LRU store
// holding at most maxEntries links.
func New(maxEntries int) Store {
	if maxEntries <= 0 {
		return NewMemory()
	}
	return NewLRU(maxEntries)
}

// Memory is an unbounded in-process store. Entries live until the process exits.
type Memory struct {
	mu    sync.RWMutex
	links map[string]string
}

func NewMemory() *Memory {
	return &Memory{links: make(map[string]string)}
}

func (m *Memory) Get(messageID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	link, ok := m.links[messageID]
	return link, ok
}

func (m *Memory) Put(messageID, link string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[messageID] = link
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}

// LRU evicts the least recently used link once full.
type LRU struct {
	cache *lru.Cache[string, string]
}

func NewLRU(size int) *LRU {
	// lru.New only fails for a non-positive size
	c, err := lru.New[string, string](size)
	if err != nil {
		panic(err)
	}
	return &LRU{cache: c}
}

func (l *LRU) Get(messageID string) (string, bool) {
	return l.cache.Get(messageID)
}

func (l *LRU) Put(messageID, link string) {
	l.cache.Add(messageID, link)
}

func (l *LRU) Len() int {
	return l.cache.Len()
}
