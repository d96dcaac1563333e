// Package store provides the key/value + sorted-set cache the sync engine
// persists into. Values are opaque bytes; callers own serialization.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable wraps every backend failure.
var ErrUnavailable = errors.New("cache store unavailable")

// ScoredMember is a sorted-set member with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// Store is a key/value store with secondary score-ordered indexes.
// Implementations must be safe for concurrent use on distinct keys.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// KeysWithPrefix returns every key starting with prefix, in no particular order.
	KeysWithPrefix(ctx context.Context, prefix string) ([]string, error)

	// ZAdd inserts or re-scores member in index.
	ZAdd(ctx context.Context, index, member string, score float64) error
	// ZRangeLast returns the n highest-scored members in ascending score order.
	ZRangeLast(ctx context.Context, index string, n int) ([]ScoredMember, error)
	// ZRangeAfter returns members whose score is strictly greater than score, ascending.
	ZRangeAfter(ctx context.Context, index string, score float64) ([]string, error)

	// FlushAll removes every key and index.
	FlushAll(ctx context.Context) error
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
