package gs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/roessland/gearsync/store"
)

func TestGearResolver_Resolve_FetchesThenCaches(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := NewMockStravaClient()
	client.GearByID["g1"] = shoe("g1", "Pegasus 40", 160934)
	mem := store.NewMemory()
	resolver := NewGearResolver(client, mem, &MockLogger{})

	// Act
	first, firstSource, err := resolver.Resolve(ctx, "g1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	second, secondSource, err := resolver.Resolve(ctx, "g1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Assert
	if firstSource != SourceRemote || secondSource != SourceCache {
		t.Errorf("Expected remote then cache, got %v then %v", firstSource, secondSource)
	}
	if first.Name != "Pegasus 40" || second.Name != "Pegasus 40" || second.Distance != 160934 {
		t.Errorf("Unexpected gear: %+v / %+v", first, second)
	}
	if client.gearCallCount("g1") != 1 {
		t.Errorf("Expected exactly 1 remote fetch, got %d", client.gearCallCount("g1"))
	}
	if _, ok, err := mem.Get(ctx, "gear:g1"); err != nil || !ok {
		t.Errorf("Expected gear:g1 in the store (ok=%v, err=%v)", ok, err)
	}
	count, err := resolver.Count(ctx)
	if err != nil || count != 1 {
		t.Errorf("Expected 1 cached gear, got %d (err=%v)", count, err)
	}
}

func TestGearResolver_Resolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		remote  error
		wantErr error
	}{
		{"not found", notFound(), ErrGearNotFound},
		{"unauthorized", unauthorized(), ErrUnauthorized},
		{"server error", serverError(), ErrRemoteUnavailable},
		{"transport", errors.New("connection reset by peer"), ErrRemoteUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			ctx := context.Background()
			client := NewMockStravaClient()
			client.GearError["g1"] = tt.remote
			mem := store.NewMemory()
			resolver := NewGearResolver(client, mem, &MockLogger{})

			// Act
			_, _, err := resolver.Resolve(ctx, "g1")

			// Assert
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got: %v", tt.wantErr, err)
			}
			if _, ok, _ := mem.Get(ctx, "gear:g1"); ok {
				t.Error("Expected nothing to be cached after a failure")
			}
		})
	}
}

func TestGearResolver_Resolve_CacheFailureIsFatal(t *testing.T) {
	// Arrange
	client := NewMockStravaClient()
	client.GearByID["g1"] = shoe("g1", "Pegasus 40", 1000)
	resolver := NewGearResolver(client, brokenStore{}, &MockLogger{})

	// Act
	_, _, err := resolver.Resolve(context.Background(), "g1")

	// Assert
	if !errors.Is(err, ErrCacheUnavailable) {
		t.Fatalf("Expected ErrCacheUnavailable, got: %v", err)
	}
	if client.totalGearCalls() != 0 {
		t.Error("Expected no remote call when the cache cannot be read")
	}
}

func TestGearResolver_Resolve_CorruptEntryIsRefetched(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := NewMockStravaClient()
	client.GearByID["g1"] = shoe("g1", "Pegasus 40", 1000)
	mem := store.NewMemory()
	_ = mem.Set(ctx, "gear:g1", []byte("{not json"))
	logger := &MockLogger{}
	resolver := NewGearResolver(client, mem, logger)

	// Act
	g, source, err := resolver.Resolve(ctx, "g1")

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if source != SourceRemote || g.Name != "Pegasus 40" {
		t.Errorf("Expected a remote fetch, got %v %+v", source, g)
	}
	if len(logger.WarnCalls) == 0 {
		t.Error("Expected the corrupt entry to be logged")
	}
}

func TestGearResolver_Resolve_ConcurrentCallsShareOneFetch(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := NewMockStravaClient()
	client.GearByID["g1"] = shoe("g1", "Pegasus 40", 1000)
	client.GearDelay = 50 * time.Millisecond
	resolver := NewGearResolver(client, store.NewMemory(), &MockLogger{})

	// Act
	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = resolver.Resolve(ctx, "g1")
		}()
	}
	wg.Wait()

	// Assert
	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: unexpected error: %v", i, err)
		}
	}
	if n := client.gearCallCount("g1"); n != 1 {
		t.Errorf("Expected concurrent callers to share 1 fetch, got %d", n)
	}
}
