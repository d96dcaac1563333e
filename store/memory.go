package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. Contents are lost on exit.
type Memory struct {
	mu    sync.RWMutex
	kv    map[string][]byte
	zsets map[string]map[string]float64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		kv:    make(map[string][]byte),
		zsets: make(map[string]map[string]float64),
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.kv[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.kv {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *Memory) ZAdd(ctx context.Context, index, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zsets[index]
	if !ok {
		z = make(map[string]float64)
		m.zsets[index] = z
	}
	z[member] = score
	return nil
}

// sorted returns the members of index ordered by score, then member, like redis.
func (m *Memory) sorted(index string) []ScoredMember {
	z := m.zsets[index]
	out := make([]ScoredMember, 0, len(z))
	for member, score := range z {
		out = append(out, ScoredMember{Member: member, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out
}

func (m *Memory) ZRangeLast(ctx context.Context, index string, n int) ([]ScoredMember, error) {
	if n <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.sorted(index)
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func (m *Memory) ZRangeAfter(ctx context.Context, index string, score float64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, sm := range m.sorted(index) {
		if sm.Score > score {
			out = append(out, sm.Member)
		}
	}
	return out, nil
}

func (m *Memory) FlushAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv = make(map[string][]byte)
	m.zsets = make(map[string]map[string]float64)
	return nil
}

func (m *Memory) Close() error { return nil }
