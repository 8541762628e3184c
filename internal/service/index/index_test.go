package index

import (
	"fmt"
	"sync"
	"testing"
)

func TestStores_PutGetOverwrite(t *testing.T) {
	stores := map[string]Store{
		"memory": New(0),
		"lru":    New(10),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			if _, ok := s.Get("m1"); ok {
				t.Fatal("expected empty store")
			}

			s.Put("m1", "https://discord.com/channels/1/2/3")
			got, ok := s.Get("m1")
			if !ok || got != "https://discord.com/channels/1/2/3" {
				t.Errorf("unexpected entry %q %v", got, ok)
			}

			s.Put("m1", "https://discord.com/channels/1/2/4")
			got, _ = s.Get("m1")
			if got != "https://discord.com/channels/1/2/4" {
				t.Errorf("expected later write to win, got %q", got)
			}
			if s.Len() != 1 {
				t.Errorf("expected one entry per id, got %d", s.Len())
			}
		})
	}
}

func TestLRU_EvictsOldest(t *testing.T) {
	s := NewLRU(2)
	s.Put("a", "1")
	s.Put("b", "2")
	s.Get("a") // a is now most recent
	s.Put("c", "3")

	if _, ok := s.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := s.Get("a"); !ok {
		t.Error("expected a to survive")
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", s.Len())
	}
}

func TestMemory_ConcurrentPuts(t *testing.T) {
	s := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Put(fmt.Sprintf("m%d", i), "link")
			s.Get("m0")
		}(i)
	}
	wg.Wait()

	if s.Len() != 50 {
		t.Errorf("expected 50 entries, got %d", s.Len())
	}
}
