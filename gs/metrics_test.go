package gs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/roessland/gearsync/store"
	"github.com/roessland/gearsync/strava"
)

func TestMetrics_RecordedBySync(t *testing.T) {
	// Arrange
	client := NewMockStravaClient()
	client.Pages = [][]strava.Activity{{activity(2, "g1"), activity(1, "missing")}}
	withThreeShoes(client)
	syncer, _, _ := newTestSyncer(client, store.NewMemory(), nil, SyncOptions{})

	pagesBefore := testutil.ToFloat64(pagesFetchedCounter)
	cachedBefore := testutil.ToFloat64(activitiesCachedCounter)
	okBefore := testutil.ToFloat64(gearResolutionsCounter.WithLabelValues("remote", "ok"))
	errBefore := testutil.ToFloat64(gearResolutionsCounter.WithLabelValues("remote", "error"))

	// Act
	_, err := syncer.Run(context.Background(), fullCredential())

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if d := testutil.ToFloat64(pagesFetchedCounter) - pagesBefore; d != 1 {
		t.Errorf("Expected 1 page counted, got %v", d)
	}
	if d := testutil.ToFloat64(activitiesCachedCounter) - cachedBefore; d != 2 {
		t.Errorf("Expected 2 activities counted, got %v", d)
	}
	if d := testutil.ToFloat64(gearResolutionsCounter.WithLabelValues("remote", "ok")) - okBefore; d != 1 {
		t.Errorf("Expected 1 successful remote resolution, got %v", d)
	}
	if d := testutil.ToFloat64(gearResolutionsCounter.WithLabelValues("remote", "error")) - errBefore; d != 1 {
		t.Errorf("Expected 1 failed remote resolution, got %v", d)
	}
	if got := testutil.ToFloat64(latestActivityGauge); got != 1700000002 {
		t.Errorf("Expected latest activity gauge 1700000002, got %v", got)
	}
}

func TestWriteMetricsTextfile(t *testing.T) {
	// Arrange
	recordGearResolution(SourceCache, nil)
	recordGearResolution(SourceRemote, errors.New("boom"))
	path := filepath.Join(t.TempDir(), "gearsync.prom")

	// Act
	err := WriteMetricsTextfile(path)

	// Assert
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}
	if !strings.Contains(string(data), `gearsync_sync_gear_resolutions_total{outcome="ok",source="cache"}`) {
		t.Errorf("Expected gear resolution series in textfile, got:\n%s", data)
	}
}
