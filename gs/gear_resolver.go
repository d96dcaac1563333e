package gs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/roessland/gearsync/store"
	"github.com/roessland/gearsync/strava"
)

// Source tells where a resolved gear record came from.
type Source int

const (
	SourceRemote Source = iota
	SourceCache
)

func (s Source) String() string {
	if s == SourceCache {
		return "cache"
	}
	return "remote"
}

// GearClient is the slice of the Strava client the resolver needs.
type GearClient interface {
	Gear(ctx context.Context, id string) (*strava.Gear, error)
}

// GearResolver owns the gear namespace. Cached gear is served indefinitely;
// there is no TTL.
type GearResolver struct {
	client GearClient
	store  store.Store
	logger Logger
	group  singleflight.Group
}

// NewGearResolver creates a new gear resolver
func NewGearResolver(client GearClient, s store.Store, logger Logger) *GearResolver {
	return &GearResolver{
		client: client,
		store:  s,
		logger: logger,
	}
}

type resolved struct {
	gear   strava.Gear
	source Source
}

// Resolve returns the gear record, fetching and caching it on a miss.
// Concurrent calls for the same id share a single remote fetch.
func (r *GearResolver) Resolve(ctx context.Context, id string) (strava.Gear, Source, error) {
	g, ok, err := r.lookup(ctx, id)
	if err != nil {
		return strava.Gear{}, 0, err
	}
	if ok {
		return g, SourceCache, nil
	}

	v, err, shared := r.group.Do(id, func() (any, error) {
		// A caller that finished between our lookup and Do may have filled the cache.
		if g, ok, err := r.lookup(ctx, id); err != nil {
			return nil, err
		} else if ok {
			return resolved{gear: g, source: SourceCache}, nil
		}
		g, err := r.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		return resolved{gear: g, source: SourceRemote}, nil
	})
	if shared {
		r.logger.Debug("gear fetch coalesced", "gear_id", id)
	}
	if err != nil {
		return strava.Gear{}, 0, err
	}
	res := v.(resolved)
	return res.gear, res.source, nil
}

// Count returns the number of cached gear records.
func (r *GearResolver) Count(ctx context.Context) (int, error) {
	keys, err := r.store.KeysWithPrefix(ctx, gearKeyPrefix)
	if err != nil {
		return 0, cacheErr(err)
	}
	return len(keys), nil
}

func (r *GearResolver) lookup(ctx context.Context, id string) (strava.Gear, bool, error) {
	data, ok, err := r.store.Get(ctx, gearKeyPrefix+id)
	if err != nil {
		return strava.Gear{}, false, cacheErr(err)
	}
	if !ok {
		return strava.Gear{}, false, nil
	}
	g, err := decodeGear(data)
	if err != nil {
		// An undecodable entry is treated as a miss and overwritten by the fetch.
		r.logger.Warn("discarding corrupt gear cache entry", "gear_id", id, "error", err)
		return strava.Gear{}, false, nil
	}
	if g.ID == "" {
		g.ID = id
	}
	return g, true, nil
}

func (r *GearResolver) fetch(ctx context.Context, id string) (strava.Gear, error) {
	r.logger.Debug("fetching gear", "gear_id", id)

	g, err := r.client.Gear(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, strava.ErrNotFound):
			return strava.Gear{}, fmt.Errorf("%w: %s", ErrGearNotFound, id)
		case errors.Is(err, strava.ErrUnauthorized):
			return strava.Gear{}, fmt.Errorf("%w: gear %s: %w", ErrUnauthorized, id, err)
		default:
			return strava.Gear{}, fmt.Errorf("%w: gear %s: %w", ErrRemoteUnavailable, id, err)
		}
	}
	if g.ID == "" {
		g.ID = id
	}

	data, err := encodeGear(*g)
	if err != nil {
		return strava.Gear{}, fmt.Errorf("encode gear %s: %w", id, err)
	}
	if err := r.store.Set(ctx, gearKeyPrefix+id, data); err != nil {
		return strava.Gear{}, cacheErr(err)
	}
	return *g, nil
}

func encodeGear(g strava.Gear) ([]byte, error) {
	return json.Marshal(g)
}

func decodeGear(data []byte) (strava.Gear, error) {
	var g strava.Gear
	err := json.Unmarshal(data, &g)
	return g, err
}
