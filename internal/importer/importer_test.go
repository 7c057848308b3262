package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/claude/fitbridge/internal/models"
)

type fakeStore struct {
	samples []models.RawSample
	userID  int
	err     error
}

func (f *fakeStore) InsertSamples(_ context.Context, userID int, samples []models.RawSample) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.userID = userID
	f.samples = append(f.samples, samples...)
	// Pretend the first sample of each batch was already stored.
	return int64(len(samples) - 1), nil
}

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// writeAutoSync lays out an AutoSync tree with plain JSON .hae files.
func writeAutoSync(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, "HealthMetrics", rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newTestImporter(store *fakeStore, dryRun bool) *Importer {
	return New(store, 4, testLog, dryRun)
}

// TestImport verifies metric directories map to kinds, unknown directories
// are rejected, and duplicates are counted.
func TestImport(t *testing.T) {
	root := writeAutoSync(t, map[string]string{
		"step_count/20251223.hae": `{"metric":"Step Count","date":788223600,"data":[
			{"qty":120,"start":788223754,"end":788223814,"unit":"count","sources":[{"name":"iPhone"}]},
			{"qty":80,"start":788223814,"end":788223874,"unit":"count"}
		]}`,
		"sleep_analysis/20251223.hae": `{"metric":"Sleep Analysis","date":788223600,"data":[
			{"core":0.5,"start":788223754,"end":788225554,"unit":"hr"},
			{"deep":0.25,"start":788225554,"end":788226454,"unit":"hr"}
		]}`,
		"resting_heart_rate/20251223.hae": `{"metric":"Resting Heart Rate","data":[{"qty":55,"start":788223754,"end":788223754}]}`,
	})
	store := &fakeStore{}

	stats, err := newTestImporter(store, false).Import(context.Background(), root)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.FilesProcessed != 2 {
		t.Errorf("files processed = %d, want 2", stats.FilesProcessed)
	}
	if stats.SamplesRead != 4 || stats.SamplesInserted != 2 || stats.SamplesDuplicated != 2 {
		t.Errorf("read/inserted/duplicated = %d/%d/%d, want 4/2/2",
			stats.SamplesRead, stats.SamplesInserted, stats.SamplesDuplicated)
	}
	if len(stats.RejectedMetrics) != 1 || stats.RejectedMetrics[0] != "resting_heart_rate" {
		t.Errorf("rejected = %v, want [resting_heart_rate]", stats.RejectedMetrics)
	}
	if store.userID != 4 {
		t.Errorf("user = %d, want 4", store.userID)
	}

	var light, deep bool
	for _, s := range store.samples {
		if s.Kind != models.MetricSleepSegment {
			continue
		}
		switch models.SleepStageFromCode(s.StageCode()) {
		case models.SleepStageLight:
			light = true
		case models.SleepStageDeep:
			deep = true
		}
	}
	if !light || !deep {
		t.Errorf("sleep stages light=%v deep=%v, want both", light, deep)
	}
}

// TestImportActiveEnergyKcalOnly verifies kJ duplicates are dropped.
func TestImportActiveEnergyKcalOnly(t *testing.T) {
	root := writeAutoSync(t, map[string]string{
		"active_energy/a.hae": `{"metric":"Active Energy","data":[
			{"unit":"kJ","qty":0.012,"start":788742341,"end":788742342},
			{"unit":"kcal","qty":0.002,"start":788742341,"end":788742342},
			{"unit":"kJ","qty":0.023,"start":788742342,"end":788742343},
			{"unit":"kcal","qty":0.005,"start":788742342,"end":788742343}
		]}`,
	})
	store := &fakeStore{}

	if _, err := newTestImporter(store, false).Import(context.Background(), root); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(store.samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(store.samples))
	}
	for _, s := range store.samples {
		if s.Value > 0.01 {
			t.Errorf("value %v looks like kJ", s.Value)
		}
	}
}

// TestImportDryRun verifies nothing is written in dry-run mode.
func TestImportDryRun(t *testing.T) {
	root := writeAutoSync(t, map[string]string{
		"heart_rate/a.hae": `{"data":[{"avg":61,"min":58,"max":64,"start":788223754,"end":788223755}]}`,
	})
	store := &fakeStore{}

	stats, err := newTestImporter(store, true).Import(context.Background(), root)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.SamplesRead != 1 || stats.SamplesInserted != 0 {
		t.Errorf("read/inserted = %d/%d, want 1/0", stats.SamplesRead, stats.SamplesInserted)
	}
	if len(store.samples) != 0 {
		t.Errorf("dry run stored %d samples", len(store.samples))
	}
}

// TestImportBadFiles verifies unreadable and malformed files are counted
// without aborting the import.
func TestImportBadFiles(t *testing.T) {
	root := writeAutoSync(t, map[string]string{
		"step_count/bad.hae":   `{not json`,
		"step_count/empty.hae": `{"data":[]}`,
		"step_count/neg.hae":   `{"data":[{"qty":-5,"start":788223754,"end":788223814}]}`,
	})
	store := &fakeStore{}

	stats, err := newTestImporter(store, false).Import(context.Background(), root)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.FilesErrored != 1 || stats.FilesSkipped != 2 || stats.SamplesMalformed != 1 {
		t.Errorf("errored/skipped/malformed = %d/%d/%d, want 1/2/1",
			stats.FilesErrored, stats.FilesSkipped, stats.SamplesMalformed)
	}
}

// TestImportStoreError verifies a store failure aborts the import.
func TestImportStoreError(t *testing.T) {
	root := writeAutoSync(t, map[string]string{
		"height/a.hae": `{"data":[{"qty":1.8,"start":788223754,"end":788223754}]}`,
	})
	store := &fakeStore{err: errors.New("db down")}

	if _, err := newTestImporter(store, false).Import(context.Background(), root); err == nil {
		t.Error("expected error")
	}
}

// TestReadHAEFilePlainJSON verifies uncompressed files skip the decoder.
func TestReadHAEFilePlainJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.hae")
	if err := os.WriteFile(path, []byte("  {\"data\":[]}"), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := ReadHAEFile(path)
	if err != nil {
		t.Fatalf("ReadHAEFile: %v", err)
	}
	if string(data) != `  {"data":[]}` {
		t.Errorf("data = %q", data)
	}
}

// TestImportMissingDir verifies a missing HealthMetrics directory is an error.
func TestImportMissingDir(t *testing.T) {
	if _, err := newTestImporter(&fakeStore{}, false).Import(context.Background(), t.TempDir()); err == nil {
		t.Error("expected error")
	}
}
