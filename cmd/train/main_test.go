package main

import (
	"path/filepath"
	"testing"

	"github.com/openlidar/bevtrain/internal/checkpoint"
	"github.com/openlidar/bevtrain/internal/fsutil"
)

func TestRunIndexPath(t *testing.T) {
	tests := []struct {
		saveDir string
		want    string
	}{
		{"/exp/save", "/exp/save.runindex.db"},
		{"experiments", "experiments.runindex.db"},
		{"experiments/", "experiments.runindex.db"},
	}
	for _, tt := range tests {
		if got := runIndexPath(tt.saveDir); got != tt.want {
			t.Errorf("runIndexPath(%q) = %q, want %q", tt.saveDir, got, tt.want)
		}
	}
}

// A save root after one full training lifecycle holds only run folders;
// the run index (and any sqlite journal siblings) lives beside the
// root, so auto-resume still resolves the latest checkpoint.
func TestAutoResumeResolvesAfterLifecycle(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	saveDir := "/save"
	runName := "2023_05_10_09:00MinkUNet34_BS4"

	ckpt := filepath.Join(saveDir, runName, checkpoint.CheckpointsDir, "epoch=03-step=30.ckpt")
	if err := fsys.WriteFile(ckpt, []byte("state"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, sibling := range []string{"", "-journal", "-wal"} {
		if err := fsys.WriteFile(runIndexPath(saveDir)+sibling, []byte("db"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	res, err := checkpoint.FindLatest(fsys, saveDir)
	if err != nil {
		t.Fatalf("FindLatest failed: %v", err)
	}
	if res == nil {
		t.Fatal("FindLatest returned nil, want resolved checkpoint")
	}
	if res.RunName != runName {
		t.Errorf("resolved run %q, want %q", res.RunName, runName)
	}
	if res.Path != ckpt {
		t.Errorf("resolved path %q, want %q", res.Path, ckpt)
	}
}
