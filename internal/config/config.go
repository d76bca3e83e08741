// Package config loads and validates the YAML pipeline configuration.
// Every optional knob carries an explicit default applied at load
// time, so downstream code never probes for field presence.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root of a pipeline configuration file.
type Config struct {
	Model         ModelConfig    `yaml:"model"`
	Pipeline      PipelineConfig `yaml:"pipeline"`
	SourceDataset DatasetConfig  `yaml:"source_dataset"`
	TargetDataset TargetConfig   `yaml:"target_dataset"`
}

// ModelConfig describes the segmentation model and its BEV decoder
// levels. The architecture itself is an external collaborator; only
// the shape information the pipeline needs lives here.
type ModelConfig struct {
	Name            string    `yaml:"name"`
	InChannels      int       `yaml:"in_channels"`
	OutChannels     int       `yaml:"out_channels"`
	Dimension       int       `yaml:"dimension"`
	Conv1KernelSize int       `yaml:"conv1_kernel_size"`
	Decoder2DLevels []string  `yaml:"decoder_2d_levels"`
	BEVFeatSizes    []int     `yaml:"bev_feats_sizes"`
	BEVImgSizes     []int     `yaml:"bev_img_sizes"`
	ScalingFactors  []float64 `yaml:"scaling_factors"`
	BinarySegLayer  bool      `yaml:"binary_segmentation_layer"`
}

// PipelineConfig holds training-loop and data-loading settings.
type PipelineConfig struct {
	Seed                int64            `yaml:"seed"`
	Epochs              int              `yaml:"epochs"`
	WarmupEpochs        int              `yaml:"warmup_epochs"`
	Precision           int              `yaml:"precision"`
	SaveDir             string           `yaml:"save_dir"`
	Bound2D             float64          `yaml:"bound_2d"`
	ScaleBEV            bool             `yaml:"scale_bev"`
	RunName             string           `yaml:"run_name"`
	Dataloader          DataloaderConfig `yaml:"dataloader"`
	Optimizer           OptimizerConfig  `yaml:"optimizer"`
	Scheduler           SchedulerConfig  `yaml:"scheduler"`
	Losses              LossConfig       `yaml:"losses"`
	Resume              ResumeConfig     `yaml:"resume"`
	CheckValEveryNEpoch int              `yaml:"check_val_every_n_epoch"`
}

// DataloaderConfig controls batching and prefetching.
type DataloaderConfig struct {
	BatchSize  int `yaml:"batch_size"`
	NumWorkers int `yaml:"num_workers"`
}

// OptimizerConfig names the optimizer the trainer collaborator uses.
type OptimizerConfig struct {
	Name string  `yaml:"name"`
	LR   float64 `yaml:"lr"`
}

// SchedulerConfig names the learning-rate schedule.
type SchedulerConfig struct {
	Name string `yaml:"name"`
}

// LossConfig names the criteria and their weights.
type LossConfig struct {
	SemCriterion    string    `yaml:"sem_criterion"`
	SemBEVCriterion string    `yaml:"sem_bev_criterion"`
	AuxCriterion    string    `yaml:"aux_criterion"`
	SourceWeights   []float64 `yaml:"source_weights"`
	AuxWeights      []float64 `yaml:"aux_weights"`
}

// ResumeConfig points at an explicit checkpoint to resume from when
// auto-resume is off.
type ResumeConfig struct {
	Checkpoint string `yaml:"checkpoint"`
}

// DatasetConfig describes the source domains feeding training.
type DatasetConfig struct {
	Name             []string `yaml:"name"`
	DataRoot         string   `yaml:"data_root"`
	VoxelSize        float64  `yaml:"voxel_size"`
	SubP             float64  `yaml:"sub_p"`
	IgnoreLabel      int32    `yaml:"ignore_label"`
	UseCache         bool     `yaml:"use_cache"`
	ValFraction      float64  `yaml:"val_fraction"`
	AugmentationList []string `yaml:"augmentation_list"`
}

// TargetConfig names the target domains of the adaptation, used only
// for run naming and bookkeeping at this layer.
type TargetConfig struct {
	Name []string `yaml:"name"`
}

// Default returns a Config with every optional knob at its default.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Dimension:       3,
			Conv1KernelSize: 5,
		},
		Pipeline: PipelineConfig{
			Seed:                1234,
			Epochs:              100,
			Precision:           32,
			Bound2D:             50,
			Dataloader:          DataloaderConfig{BatchSize: 4, NumWorkers: 0},
			Optimizer:           OptimizerConfig{Name: "SGD", LR: 0.01},
			Scheduler:           SchedulerConfig{Name: "none"},
			CheckValEveryNEpoch: 1,
		},
		SourceDataset: DatasetConfig{
			VoxelSize:   0.05,
			SubP:        1.0,
			IgnoreLabel: -1,
			ValFraction: 0.1,
		},
	}
}

const maxConfigSize = 1 * 1024 * 1024 // 1MB

// Load reads a YAML config file, applies defaults for omitted fields
// and validates the result.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal over a defaults-initialized struct so omitted fields
	// keep their default values and partial configs are safe.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Model.OutChannels <= 0 {
		return fmt.Errorf("model.out_channels must be positive, got %d", c.Model.OutChannels)
	}
	if len(c.Model.Decoder2DLevels) == 0 {
		return fmt.Errorf("model.decoder_2d_levels must name at least one level")
	}
	if len(c.Model.BEVImgSizes) != len(c.Model.Decoder2DLevels) {
		return fmt.Errorf("model.bev_img_sizes has %d entries for %d levels",
			len(c.Model.BEVImgSizes), len(c.Model.Decoder2DLevels))
	}
	if n := len(c.Model.ScalingFactors); n != 0 && n != len(c.Model.Decoder2DLevels) {
		return fmt.Errorf("model.scaling_factors has %d entries for %d levels",
			n, len(c.Model.Decoder2DLevels))
	}
	if c.Pipeline.Epochs <= 0 {
		return fmt.Errorf("pipeline.epochs must be positive, got %d", c.Pipeline.Epochs)
	}
	if c.Pipeline.WarmupEpochs < 0 {
		return fmt.Errorf("pipeline.warmup_epochs must be non-negative, got %d", c.Pipeline.WarmupEpochs)
	}
	if c.Pipeline.Bound2D <= 0 {
		return fmt.Errorf("pipeline.bound_2d must be positive, got %f", c.Pipeline.Bound2D)
	}
	if c.Pipeline.Dataloader.BatchSize <= 0 {
		return fmt.Errorf("pipeline.dataloader.batch_size must be positive, got %d", c.Pipeline.Dataloader.BatchSize)
	}
	if c.Pipeline.Dataloader.NumWorkers < 0 {
		return fmt.Errorf("pipeline.dataloader.num_workers must be non-negative, got %d", c.Pipeline.Dataloader.NumWorkers)
	}
	if c.Pipeline.Optimizer.LR <= 0 {
		return fmt.Errorf("pipeline.optimizer.lr must be positive, got %f", c.Pipeline.Optimizer.LR)
	}
	if c.Pipeline.SaveDir == "" {
		return fmt.Errorf("pipeline.save_dir is required")
	}
	if len(c.SourceDataset.Name) == 0 {
		return fmt.Errorf("source_dataset.name must list at least one domain")
	}
	if c.SourceDataset.DataRoot == "" {
		return fmt.Errorf("source_dataset.data_root is required")
	}
	if c.SourceDataset.VoxelSize <= 0 {
		return fmt.Errorf("source_dataset.voxel_size must be positive, got %f", c.SourceDataset.VoxelSize)
	}
	if c.SourceDataset.SubP <= 0 || c.SourceDataset.SubP > 1 {
		return fmt.Errorf("source_dataset.sub_p must be in (0, 1], got %f", c.SourceDataset.SubP)
	}
	if c.SourceDataset.ValFraction < 0 || c.SourceDataset.ValFraction >= 1 {
		return fmt.Errorf("source_dataset.val_fraction must be in [0, 1), got %f", c.SourceDataset.ValFraction)
	}
	return nil
}
