package gs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roessland/gearsync/strava"
)

const (
	DefaultPageSize        = strava.MaxPerPage
	DefaultGearConcurrency = 4
)

// ActivityLister is the slice of the Strava client the syncer pages through.
type ActivityLister interface {
	ListActivities(ctx context.Context, page, perPage int) ([]strava.Activity, error)
}

// SyncOptions tunes a Syncer. Zero values select the defaults.
type SyncOptions struct {
	PageSize        int
	GearConcurrency int
	// OnPage is called after each listing page has been classified.
	OnPage func(page, items, newItems int)
	// OnGearStart is called once with the number of gear identifiers to resolve.
	OnGearStart func(total int)
	// OnGear is called after each gear identifier has been resolved or has failed.
	OnGear func(id string, summary *GearSummary, source Source, err error)
}

// Syncer runs a complete sync and aggregation cycle.
type Syncer struct {
	creds      *CredentialManager
	client     ActivityLister
	activities *ActivityCache
	gear       *GearResolver
	logger     Logger
	opts       SyncOptions
}

// NewSyncer creates a new syncer
func NewSyncer(creds *CredentialManager, client ActivityLister, activities *ActivityCache, gear *GearResolver, logger Logger, opts SyncOptions) *Syncer {
	if opts.PageSize <= 0 || opts.PageSize > strava.MaxPerPage {
		opts.PageSize = DefaultPageSize
	}
	if opts.GearConcurrency <= 0 {
		opts.GearConcurrency = DefaultGearConcurrency
	}
	return &Syncer{
		creds:      creds,
		client:     client,
		activities: activities,
		gear:       gear,
		logger:     logger,
		opts:       opts,
	}
}

// Run validates the credential, pulls new activities into the cache, resolves
// every referenced gear and returns one summary per resolved gear, ordered by id.
//
// A listing failure aborts the cycle; activities cached before the failing page
// stay cached. Per-gear failures are reported in SyncResult.Failures.
func (s *Syncer) Run(ctx context.Context, cred Credential) (*SyncResult, error) {
	cred, err := s.creds.EnsureValid(ctx, cred)
	if err != nil {
		return nil, err
	}
	result := &SyncResult{Credential: cred}

	gearIDs, err := s.activities.GearIDsReferenced(ctx)
	if err != nil {
		return nil, err
	}
	known, err := s.activities.AllIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(known) > 0 {
		s.logger.Info("performing incremental update", "cached_activities", len(known), "cached_gear_ids", len(gearIDs))
	} else {
		s.logger.Info("fetching all activities")
	}

	if err := s.syncActivities(ctx, known, gearIDs, result); err != nil {
		return nil, err
	}

	if err := s.resolveGear(ctx, gearIDs, result); err != nil {
		return nil, err
	}

	latest, ok, err := s.activities.LatestUpdateTime(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		result.LatestUpdate = latest
	}
	recordRunCompleted(time.Now(), result.LatestUpdate)

	s.logger.Info("sync completed",
		"pages", result.PagesFetched,
		"new_activities", result.NewActivities,
		"gear", len(result.Summaries),
		"gear_failures", len(result.Failures),
		"stopped_early", result.StoppedEarly)
	return result, nil
}

// syncActivities pages through the listing newest-first. Pages must be handled
// strictly in order: a page made only of cached activities proves every older
// page is cached too, which ends pagination.
func (s *Syncer) syncActivities(ctx context.Context, known map[int64]struct{}, gearIDs map[string]struct{}, result *SyncResult) error {
	cacheWasEmpty := len(known) == 0

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		items, err := s.client.ListActivities(ctx, page, s.opts.PageSize)
		result.PagesFetched++
		recordPageFetched()
		if err != nil {
			if errors.Is(err, strava.ErrUnauthorized) {
				return fmt.Errorf("%w: activity page %d: %w", ErrUnauthorized, page, err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: activity page %d: %w", ErrRemoteUnavailable, page, err)
		}
		if len(items) == 0 {
			break
		}

		newOnPage, err := s.classifyPage(ctx, items, known, gearIDs)
		if err != nil {
			return err
		}
		result.NewActivities += newOnPage
		recordActivitiesCached(newOnPage)

		s.logger.Debug("processed activity page",
			"page", page,
			"activities", len(items),
			"new", newOnPage,
			"gear_ids", len(gearIDs))
		if s.opts.OnPage != nil {
			s.opts.OnPage(page, len(items), newOnPage)
		}

		if !cacheWasEmpty && newOnPage == 0 {
			s.logger.Info("all activities on page already cached, stopping", "page", page)
			result.StoppedEarly = true
			break
		}
		if len(items) < s.opts.PageSize {
			break
		}
	}
	return nil
}

// classifyPage caches every activity on the page that is not yet known and
// collects gear identifiers from all of them. Known activities are never rewritten.
func (s *Syncer) classifyPage(ctx context.Context, items []strava.Activity, known map[int64]struct{}, gearIDs map[string]struct{}) (int, error) {
	newCount := 0
	for _, a := range items {
		if a.ID == 0 {
			continue
		}
		if _, ok := known[a.ID]; !ok {
			if err := s.activities.Put(ctx, a); err != nil {
				return newCount, err
			}
			known[a.ID] = struct{}{}
			newCount++
		}
		if a.GearID != "" {
			gearIDs[a.GearID] = struct{}{}
		}
	}
	return newCount, nil
}

// resolveGear resolves every identifier with bounded parallelism. Only cache
// failures and cancellation abort; everything else is recorded per gear.
func (s *Syncer) resolveGear(ctx context.Context, gearIDs map[string]struct{}, result *SyncResult) error {
	ids := make([]string, 0, len(gearIDs))
	for id := range gearIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	s.logger.Info("resolving gear", "count", len(ids))
	if s.opts.OnGearStart != nil {
		s.opts.OnGearStart(len(ids))
	}

	summaries := make([]*GearSummary, len(ids))
	failures := make([]error, len(ids))
	var mu sync.Mutex
	cached := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.GearConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gear, source, err := s.gear.Resolve(gctx, id)
			recordGearResolution(source, err)
			if err != nil {
				if errors.Is(err, ErrCacheUnavailable) {
					return err
				}
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.Warn("failed to resolve gear", "gear_id", id, "error", err)
				failures[i] = err
				if s.opts.OnGear != nil {
					s.opts.OnGear(id, nil, source, err)
				}
				return nil
			}

			summary := NewGearSummary(gear)
			summaries[i] = &summary
			if source == SourceCache {
				mu.Lock()
				cached++
				mu.Unlock()
			}
			if s.opts.OnGear != nil {
				s.opts.OnGear(id, &summary, source, nil)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, id := range ids {
		switch {
		case summaries[i] != nil:
			result.Summaries = append(result.Summaries, *summaries[i])
		case failures[i] != nil:
			result.Failures = append(result.Failures, GearFailure{GearID: id, Err: failures[i]})
		}
	}
	result.CachedGear = cached
	return nil
}
