package artifact

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestIndexRecordAndList(t *testing.T) {
	ix, err := OpenIndex(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer ix.Close()

	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		err := ix.Record(ctx, Run{
			ID:        id,
			Dir:       "artifacts/" + id,
			Model:     "logit",
			Task:      "classification",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Metrics:   map[string]float64{"auc": 0.6},
		})
		if err != nil {
			t.Fatalf("Record %s: %v", id, err)
		}
	}

	runs, err := ix.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	// newest first
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("order = %s, %s; want run-c, run-b", runs[0].ID, runs[1].ID)
	}
	if runs[0].Metrics["auc"] != 0.6 {
		t.Errorf("metrics lost: %+v", runs[0].Metrics)
	}
}

func TestIndexRejectsDuplicateID(t *testing.T) {
	ix, err := OpenIndex(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()

	ctx := context.Background()
	run := Run{ID: "dup", Dir: "d", Model: "m", Task: "t", CreatedAt: time.Now()}
	if err := ix.Record(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := ix.Record(ctx, run); err == nil {
		t.Fatal("duplicate run ID must be rejected")
	}
}
