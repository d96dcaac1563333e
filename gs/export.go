package gs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ExportedGear is one entry of the JSON export. TotalDistance is in kilometers.
type ExportedGear struct {
	DisplayName   string  `json:"display_name"`
	TotalDistance float64 `json:"total_distance"`
}

// SaveJSON writes the summaries as an indented array of display name and km.
func SaveJSON(path string, summaries []GearSummary) error {
	export := make([]ExportedGear, 0, len(summaries))
	for _, s := range summaries {
		export = append(export, ExportedGear{
			DisplayName:   s.Name,
			TotalDistance: round2(s.DistanceKm),
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
