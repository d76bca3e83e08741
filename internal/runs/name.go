// Package runs owns the run lifecycle around training: run folder
// naming and the sqlite run index that records runs and their
// per-epoch metrics.
package runs

import (
	"strconv"
	"strings"
	"time"

	"github.com/openlidar/bevtrain/internal/config"
)

// TimestampFormat is the 16-character run-name prefix the checkpoint
// resolver parses back.
const TimestampFormat = "2006_01_02_15:04"

// Name builds a fresh run folder name: UTC timestamp prefix, model
// name, source/target domains, then the hyperparameters that most
// often distinguish runs.
func Name(cfg *config.Config, now time.Time) string {
	var b strings.Builder
	b.WriteString(now.UTC().Format(TimestampFormat))
	b.WriteString(cfg.Model.Name)

	sources := strings.Join(cfg.SourceDataset.Name, "")
	targets := strings.Join(cfg.TargetDataset.Name, "")
	if cfg.Pipeline.RunName != "" {
		b.WriteString(sources + "-TO-" + targets + "_" + cfg.Pipeline.RunName + "_")
	} else {
		b.WriteString("_")
	}

	b.WriteString("BS" + strconv.Itoa(cfg.Pipeline.Dataloader.BatchSize) + "_")
	b.WriteString(cfg.Pipeline.Optimizer.Name + "_")
	b.WriteString(strconv.FormatFloat(cfg.Pipeline.Optimizer.LR, 'g', -1, 64) + "_")
	b.WriteString(cfg.Pipeline.Scheduler.Name + "_")
	b.WriteString(cfg.Pipeline.Losses.SemCriterion + "_")
	b.WriteString(cfg.Pipeline.Losses.SemBEVCriterion + "_")
	if len(cfg.SourceDataset.AugmentationList) > 0 {
		b.WriteString("AUG")
	} else {
		b.WriteString("NO_AUG")
	}
	return b.String()
}
