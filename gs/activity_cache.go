package gs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roessland/gearsync/store"
	"github.com/roessland/gearsync/strava"
)

const (
	activityKeyPrefix = "activity:"
	gearKeyPrefix     = "gear:"
	updatedAtIndex    = "activities:updated_at"
)

func activityKey(id int64) string {
	return activityKeyPrefix + strconv.FormatInt(id, 10)
}

func encodeActivity(a strava.Activity) ([]byte, error) {
	return json.Marshal(a)
}

func decodeActivity(data []byte) (strava.Activity, error) {
	var a strava.Activity
	err := json.Unmarshal(data, &a)
	return a, err
}

// ActivityCache owns the activity namespace and the updated_at index.
//
// Activities are treated as immutable once created remotely: a cached record is
// never re-fetched or overwritten by a sync cycle. If the remote side ever lets
// a past activity change its gear, the cache keeps serving the old assignment
// until it is cleared.
type ActivityCache struct {
	store store.Store
}

// NewActivityCache creates an activity cache over s
func NewActivityCache(s store.Store) *ActivityCache {
	return &ActivityCache{store: s}
}

func cacheErr(err error) error {
	return fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
}

// Contains reports whether the activity is cached.
func (c *ActivityCache) Contains(ctx context.Context, id int64) (bool, error) {
	_, ok, err := c.store.Get(ctx, activityKey(id))
	if err != nil {
		return false, cacheErr(err)
	}
	return ok, nil
}

// Get returns the cached activity, or nil when it is not cached.
func (c *ActivityCache) Get(ctx context.Context, id int64) (*strava.Activity, error) {
	data, ok, err := c.store.Get(ctx, activityKey(id))
	if err != nil {
		return nil, cacheErr(err)
	}
	if !ok {
		return nil, nil
	}
	a, err := decodeActivity(data)
	if err != nil {
		return nil, cacheErr(fmt.Errorf("decode activity %d: %w", id, err))
	}
	return &a, nil
}

// Put writes the activity and indexes it by updated_at when known.
func (c *ActivityCache) Put(ctx context.Context, a strava.Activity) error {
	data, err := encodeActivity(a)
	if err != nil {
		return fmt.Errorf("encode activity %d: %w", a.ID, err)
	}
	if err := c.store.Set(ctx, activityKey(a.ID), data); err != nil {
		return cacheErr(err)
	}
	if a.UpdatedAt.IsZero() {
		return nil
	}
	if err := c.store.ZAdd(ctx, updatedAtIndex, strconv.FormatInt(a.ID, 10), float64(a.UpdatedAt.Unix())); err != nil {
		return cacheErr(err)
	}
	return nil
}

// AllIDs returns the identity set of cached activities.
func (c *ActivityCache) AllIDs(ctx context.Context) (map[int64]struct{}, error) {
	keys, err := c.store.KeysWithPrefix(ctx, activityKeyPrefix)
	if err != nil {
		return nil, cacheErr(err)
	}
	ids := make(map[int64]struct{}, len(keys))
	for _, key := range keys {
		id, err := strconv.ParseInt(strings.TrimPrefix(key, activityKeyPrefix), 10, 64)
		if err != nil {
			continue
		}
		ids[id] = struct{}{}
	}
	return ids, nil
}

// Count returns the number of cached activities.
func (c *ActivityCache) Count(ctx context.Context) (int, error) {
	ids, err := c.AllIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// LatestUpdateTime returns the highest updated_at in the index. It is reported
// for observability only; the listing offers no reliable modified-since filter.
func (c *ActivityCache) LatestUpdateTime(ctx context.Context) (time.Time, bool, error) {
	last, err := c.store.ZRangeLast(ctx, updatedAtIndex, 1)
	if err != nil {
		return time.Time{}, false, cacheErr(err)
	}
	if len(last) == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(int64(last[0].Score), 0).UTC(), true, nil
}

// UpdatedAfter returns cached activities whose updated_at is strictly after t, oldest first.
func (c *ActivityCache) UpdatedAfter(ctx context.Context, t time.Time) ([]strava.Activity, error) {
	members, err := c.store.ZRangeAfter(ctx, updatedAtIndex, float64(t.Unix()))
	if err != nil {
		return nil, cacheErr(err)
	}
	var out []strava.Activity
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		a, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

// GearIDsReferenced scans every cached activity for a gear assignment.
func (c *ActivityCache) GearIDsReferenced(ctx context.Context) (map[string]struct{}, error) {
	ids, err := c.AllIDs(ctx)
	if err != nil {
		return nil, err
	}
	gearIDs := make(map[string]struct{})
	for id := range ids {
		a, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if a != nil && a.GearID != "" {
			gearIDs[a.GearID] = struct{}{}
		}
	}
	return gearIDs, nil
}
