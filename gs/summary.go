package gs

import (
	"math"
	"sort"

	"github.com/roessland/gearsync/strava"
)

const (
	metersPerKm = 1000
	// metersPerMile is 1609.34, not the exact 1609.344.
	metersPerMile = 1609.34
)

// GearSummary is the per-gear aggregate reported at the end of a sync.
type GearSummary struct {
	ID             string
	Name           string
	DistanceMeters float64
	DistanceKm     float64
	DistanceMiles  float64
	BrandName      string
	ModelName      string
	FrameType      *int
	ResourceState  int
	Retired        bool
	Gear           strava.Gear
}

// NewGearSummary converts a gear record into a summary.
func NewGearSummary(g strava.Gear) GearSummary {
	name := g.Name
	if name == "" {
		name = "Unknown"
	}
	return GearSummary{
		ID:             g.ID,
		Name:           name,
		DistanceMeters: g.Distance,
		DistanceKm:     metersToKm(g.Distance),
		DistanceMiles:  metersToMiles(g.Distance),
		BrandName:      g.BrandName,
		ModelName:      g.ModelName,
		FrameType:      g.FrameType,
		ResourceState:  g.ResourceState,
		Retired:        g.Retired,
		Gear:           g,
	}
}

// IsShoe reports whether the summary describes shoes rather than a bike.
func (s GearSummary) IsShoe() bool {
	return s.FrameType == nil
}

// SortByDistance orders summaries by distance, highest first. Ties keep id order.
func SortByDistance(summaries []GearSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].DistanceMeters != summaries[j].DistanceMeters {
			return summaries[i].DistanceMeters > summaries[j].DistanceMeters
		}
		return summaries[i].ID < summaries[j].ID
	})
}

// ActiveShoes keeps shoes that are not retired.
func ActiveShoes(summaries []GearSummary) []GearSummary {
	var out []GearSummary
	for _, s := range summaries {
		if s.IsShoe() && !s.Retired {
			out = append(out, s)
		}
	}
	return out
}

// TotalDistance sums distance in meters.
func TotalDistance(summaries []GearSummary) float64 {
	var total float64
	for _, s := range summaries {
		total += s.DistanceMeters
	}
	return total
}

// Counts breaks summaries down the way the summary header reports them.
func Counts(summaries []GearSummary) (active, retired, bikes int) {
	for _, s := range summaries {
		switch {
		case !s.IsShoe():
			bikes++
		case s.Retired:
			retired++
		default:
			active++
		}
	}
	return active, retired, bikes
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func metersToKm(m float64) float64 {
	return m / metersPerKm
}

func metersToMiles(m float64) float64 {
	return m / metersPerMile
}
