package runs

import (
	"strings"
	"testing"
	"time"

	"github.com/openlidar/bevtrain/internal/checkpoint"
	"github.com/openlidar/bevtrain/internal/config"
)

func nameConfig() *config.Config {
	cfg := config.Default()
	cfg.Model.Name = "MinkUNet34"
	cfg.Pipeline.Dataloader.BatchSize = 4
	cfg.Pipeline.Optimizer = config.OptimizerConfig{Name: "SGD", LR: 0.01}
	cfg.Pipeline.Scheduler.Name = "CosineAnnealingLR"
	cfg.Pipeline.Losses.SemCriterion = "SoftDICELoss"
	cfg.Pipeline.Losses.SemBEVCriterion = "CELoss"
	cfg.SourceDataset.Name = []string{"SemanticKITTI"}
	cfg.TargetDataset.Name = []string{"nuScenes"}
	return cfg
}

func TestNameFormat(t *testing.T) {
	cfg := nameConfig()
	cfg.Pipeline.RunName = "baseline"
	cfg.SourceDataset.AugmentationList = []string{"rotate", "flip"}

	now := time.Date(2023, 5, 10, 9, 0, 0, 0, time.UTC)
	got := Name(cfg, now)
	want := "2023_05_10_09:00MinkUNet34SemanticKITTI-TO-nuScenes_baseline_BS4_SGD_0.01_CosineAnnealingLR_SoftDICELoss_CELoss_AUG"
	if got != want {
		t.Errorf("Name = %q, want %q", got, want)
	}
}

func TestNameWithoutRunName(t *testing.T) {
	cfg := nameConfig()

	now := time.Date(2023, 5, 10, 9, 0, 0, 0, time.UTC)
	got := Name(cfg, now)
	if !strings.HasPrefix(got, "2023_05_10_09:00MinkUNet34_BS4_") {
		t.Errorf("Name = %q, want the short prefix without domains", got)
	}
	if !strings.HasSuffix(got, "NO_AUG") {
		t.Errorf("Name = %q, want NO_AUG suffix when augmentation is off", got)
	}
}

func TestNameUsesUTC(t *testing.T) {
	cfg := nameConfig()
	loc := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2023, 5, 10, 14, 0, 0, 0, loc)

	got := Name(cfg, local)
	if !strings.HasPrefix(got, "2023_05_10_09:00") {
		t.Errorf("Name = %q, want a UTC timestamp prefix", got)
	}
}

// The 16-character prefix is the contract between run naming and
// checkpoint resolution; the resolver must parse every generated name.
func TestNameResolvableByCheckpointKey(t *testing.T) {
	cfg := nameConfig()
	name := Name(cfg, time.Date(2024, 11, 3, 23, 59, 0, 0, time.UTC))
	if _, err := checkpoint.TimestampKey(name); err != nil {
		t.Errorf("TimestampKey rejected generated name %q: %v", name, err)
	}
}
