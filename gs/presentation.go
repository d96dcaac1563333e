package gs

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/roessland/gearsync/pkg/output"
)

// PresentationService handles all presentation logic
type PresentationService struct {
	ol        *output.OutputLogger
	gearTotal atomic.Int64
	gearSeen  atomic.Int64
}

// NewPresentationService creates a new presentation service
func NewPresentationService(ol *output.OutputLogger) *PresentationService {
	return &PresentationService{ol: ol}
}

// ShowProgress displays a progress message
func (ps *PresentationService) ShowProgress(msg string, args ...any) {
	ps.ol.Progress(msg, args...)
}

// ShowStatus displays a status message
func (ps *PresentationService) ShowStatus(msg string, args ...any) {
	ps.ol.Status(msg, args...)
}

// ShowWarning displays a non-fatal problem
func (ps *PresentationService) ShowWarning(msg string, args ...any) {
	ps.ol.Warning(msg, args...)
}

// ShowError logs and displays an error
func (ps *PresentationService) ShowError(err error, msg string, args ...any) {
	ps.ol.LogAndShowError(err, msg, args...)
}

// ShowPage reports one processed activity listing page
func (ps *PresentationService) ShowPage(page, items, newItems int) {
	ps.ol.PageLine(page, items, newItems)
}

// StartGear resets the gear counter before resolution starts
func (ps *PresentationService) StartGear(total int) {
	ps.gearTotal.Store(int64(total))
	ps.gearSeen.Store(0)
	if total > 0 {
		ps.ol.Section(fmt.Sprintf("Resolving %d gear items", total))
	}
}

// ShowGearResult reports the outcome for one gear identifier. Safe for concurrent use.
func (ps *PresentationService) ShowGearResult(id string, summary *GearSummary, source Source, err error) {
	info := output.GearLineInfo{
		Index: int(ps.gearSeen.Add(1)),
		Total: int(ps.gearTotal.Load()),
		ID:    id,
	}
	switch {
	case err != nil:
		info.State = output.GearFailed
		info.ErrorMsg = err.Error()
	case source == SourceCache:
		info.State = output.GearCached
	default:
		info.State = output.GearFetched
	}
	if summary != nil {
		info.Name = summary.Name
		info.Km = round2(summary.DistanceKm)
		info.Miles = round2(summary.DistanceMiles)
	}
	ps.ol.GearLine(info)
}

// ShowSummary prints the gear table, highest distance first, and the totals.
func (ps *PresentationService) ShowSummary(summaries []GearSummary) error {
	if len(summaries) == 0 {
		ps.ol.Warning("No shoes/gear found.")
		return nil
	}

	ps.ol.Section("All shoes/gear summary")
	rows := [][]string{{"#", "Name", "ID", "Miles", "Km", "Brand", "Model", "Status"}}
	for i, s := range summaries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			s.Name,
			s.ID,
			fmt.Sprintf("%.2f", s.DistanceMiles),
			fmt.Sprintf("%.2f", s.DistanceKm),
			s.BrandName,
			s.ModelName,
			gearStatus(s),
		})
	}
	if err := ps.ol.Table(rows); err != nil {
		return err
	}

	total := TotalDistance(summaries)
	ps.ol.Result("Total distance across all shoes: %.2f miles (%.2f km)", metersToMiles(total), metersToKm(total))
	return nil
}

func gearStatus(s GearSummary) string {
	switch {
	case !s.IsShoe():
		return "bike"
	case s.Retired:
		return "retired"
	default:
		return "active"
	}
}

// ShowFinalResults displays the sync counters
func (ps *PresentationService) ShowFinalResults(result *SyncResult) {
	active, retired, bikes := Counts(result.Summaries)
	ps.ol.Result("Sync complete: %d new activities over %d pages, %d gear (%d active shoes, %d retired, %d bikes), %d failed",
		result.NewActivities, result.PagesFetched, len(result.Summaries), active, retired, bikes, len(result.Failures))
}

// ShowJSONResults outputs structured JSON results
func (ps *PresentationService) ShowJSONResults(result *SyncResult, shown []GearSummary) error {
	gear := make([]map[string]any, 0, len(shown))
	for _, s := range shown {
		gear = append(gear, map[string]any{
			"id":             s.ID,
			"name":           s.Name,
			"distance_m":     s.DistanceMeters,
			"distance_km":    round2(s.DistanceKm),
			"distance_miles": round2(s.DistanceMiles),
			"brand_name":     s.BrandName,
			"model_name":     s.ModelName,
			"retired":        s.Retired,
			"shoe":           s.IsShoe(),
		})
	}
	failures := make([]map[string]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		failures = append(failures, map[string]string{"gear_id": f.GearID, "error": f.Err.Error()})
	}
	doc := map[string]any{
		"summary": map[string]any{
			"pages_fetched":  result.PagesFetched,
			"new_activities": result.NewActivities,
			"cached_gear":    result.CachedGear,
			"stopped_early":  result.StoppedEarly,
		},
		"gear":     gear,
		"failures": failures,
	}
	if !result.LatestUpdate.IsZero() {
		doc["latest_activity_update"] = result.LatestUpdate.Format(time.RFC3339)
	}
	return ps.ol.JSON(doc)
}

// ShowStats prints cache statistics
func (ps *PresentationService) ShowStats(stats *CacheStats) error {
	if ps.ol.JSONMode() {
		doc := map[string]any{
			"backend":        stats.Backend,
			"activity_count": stats.ActivityCount,
			"gear_count":     stats.GearCount,
		}
		if !stats.LatestUpdate.IsZero() {
			doc["latest_activity_update"] = stats.LatestUpdate.Format(time.RFC3339)
		}
		return ps.ol.JSON(doc)
	}

	ps.ol.Section("Cache statistics")
	latest := "-"
	if !stats.LatestUpdate.IsZero() {
		latest = stats.LatestUpdate.Format(time.RFC3339)
	}
	return ps.ol.Table([][]string{
		{"Backend", "Cached activities", "Cached gear", "Latest activity update"},
		{stats.Backend, fmt.Sprintf("%d", stats.ActivityCount), fmt.Sprintf("%d", stats.GearCount), latest},
	})
}
