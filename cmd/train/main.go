// Command train runs the multi-source BEV segmentation training
// pipeline: it builds the source domains, selects the collation
// policy, resolves the checkpoint to resume from, and hands the epoch
// loop to the trainer harness.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/openlidar/bevtrain/internal/augment"
	"github.com/openlidar/bevtrain/internal/bev"
	"github.com/openlidar/bevtrain/internal/checkpoint"
	"github.com/openlidar/bevtrain/internal/collate"
	"github.com/openlidar/bevtrain/internal/config"
	"github.com/openlidar/bevtrain/internal/dataset"
	"github.com/openlidar/bevtrain/internal/fsutil"
	"github.com/openlidar/bevtrain/internal/loader"
	"github.com/openlidar/bevtrain/internal/runs"
	"github.com/openlidar/bevtrain/internal/trainer"
	"github.com/openlidar/bevtrain/internal/version"
)

var (
	configFile  = flag.String("config", "configs/source/semantickitti.yaml", "Path to config file")
	autoResume  = flag.Bool("auto", false, "Automatically resume training from last checkpoint")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		log.SetFlags(0)
		log.Println("train " + version.String())
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	levels, err := bev.Levels(cfg.Model.Decoder2DLevels, cfg.Model.BEVImgSizes, cfg.Model.ScalingFactors)
	if err != nil {
		log.Fatalf("invalid decoder levels: %v", err)
	}
	aug, err := augment.FromNames(cfg.SourceDataset.AugmentationList)
	if err != nil {
		log.Fatalf("invalid augmentation list: %v", err)
	}

	trainSets, valSets, err := openSourceDomains(cfg, levels, aug)
	if err != nil {
		log.Fatalf("failed to open source domains: %v", err)
	}

	// The collation policy and the joint training source are fixed
	// once, by source-domain count. Two joint sources is the cap.
	var policy collate.Policy
	var trainSrc dataset.Source
	switch len(trainSets) {
	case 1:
		policy = collate.SingleDomain{}
		trainSrc = dataset.SingleSource{Provider: trainSets[0]}
	case trainer.MaxSourceDomains:
		policy = collate.MultiDomain{}
		multi, err := dataset.NewMultiSource(trainSets)
		if err != nil {
			log.Fatalf("failed to build multi-source dataset: %v", err)
		}
		trainSrc = multi
	default:
		log.Fatalf("source dataset count %d is not valid (max %d)", len(trainSets), trainer.MaxSourceDomains)
	}
	log.Printf("--> Using %s with %s collation", cfg.Model.Name, policy.Name())

	dl := cfg.Pipeline.Dataloader
	trainLoader, err := loader.New(trainSrc, policy, loader.Options{
		BatchSize: dl.BatchSize,
		Shuffle:   true,
		Seed:      cfg.Pipeline.Seed,
		Workers:   dl.NumWorkers,
	})
	if err != nil {
		log.Fatalf("failed to build training loader: %v", err)
	}

	// Validation always runs single-source, one domain at a time.
	valLoaders := make([]*loader.Loader, 0, len(valSets))
	for _, vs := range valSets {
		vl, err := loader.New(dataset.SingleSource{Provider: vs}, collate.SingleDomain{}, loader.Options{
			BatchSize: dl.BatchSize,
			Workers:   dl.NumWorkers,
		})
		if err != nil {
			log.Fatalf("failed to build validation loader for %s: %v", vs.Name(), err)
		}
		valLoaders = append(valLoaders, vl)
	}

	fsys := fsutil.OSFileSystem{}
	resumePath, runName := resolveResume(cfg, fsys)
	saveDir := filepath.Join(cfg.Pipeline.SaveDir, runName)
	if err := fsys.MkdirAll(saveDir, 0755); err != nil {
		log.Fatalf("failed to create run folder: %v", err)
	}

	store, err := runs.OpenStore(runIndexPath(cfg.Pipeline.SaveDir))
	if err != nil {
		log.Fatalf("failed to open run index: %v", err)
	}
	defer store.Close()

	rec, err := store.InsertRun(runs.Record{
		RunName:       runName,
		SaveDir:       saveDir,
		SourceDomains: cfg.SourceDataset.Name,
		TargetDomains: cfg.TargetDataset.Name,
		Policy:        policy.Name(),
		BatchSize:     dl.BatchSize,
		Optimizer:     cfg.Pipeline.Optimizer.Name,
		LR:            cfg.Pipeline.Optimizer.LR,
		Scheduler:     cfg.Pipeline.Scheduler.Name,
		ResumedFrom:   resumePath,
	})
	if err != nil {
		log.Fatalf("failed to record run: %v", err)
	}

	model, err := buildModel(cfg)
	if err != nil {
		log.Fatalf("failed to build model: %v", err)
	}

	harness, err := trainer.New(model, trainLoader, valLoaders, fsys, saveDir, store, rec.RunID, trainer.Options{
		Epochs:              cfg.Pipeline.Epochs,
		WarmupEpochs:        cfg.Pipeline.WarmupEpochs,
		CheckValEveryNEpoch: cfg.Pipeline.CheckValEveryNEpoch,
		ResumePath:          resumePath,
	})
	if err != nil {
		log.Fatalf("failed to build trainer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	last, err := harness.Fit(ctx)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}
	log.Printf("training complete; last checkpoint %s", last)
}

// openSourceDomains builds the train/val provider pair for every
// configured source domain.
func openSourceDomains(cfg *config.Config, levels []bev.Level, aug augment.Compose) (trainSets, valSets []dataset.Provider, err error) {
	src := cfg.SourceDataset
	for _, name := range src.Name {
		ds, err := dataset.Open(name, filepath.Join(src.DataRoot, name), dataset.LoadOptions{
			VoxelSize: src.VoxelSize,
			SubP:      src.SubP,
			Ignore:    src.IgnoreLabel,
			Bound:     cfg.Pipeline.Bound2D,
			Levels:    levels,
			Aug:       aug,
			UseCache:  src.UseCache,
			Seed:      cfg.Pipeline.Seed,
		})
		if err != nil {
			return nil, nil, err
		}
		train, val, err := dataset.Split(ds, src.ValFraction, cfg.Pipeline.Seed)
		if err != nil {
			return nil, nil, err
		}
		trainSets = append(trainSets, train)
		valSets = append(valSets, val)
	}
	return trainSets, valSets, nil
}

// runIndexPath places the run index database beside the save root, not
// inside it. The resolver scans every entry of the save root and fails
// fast on names without a timestamp prefix, so the database file (and
// the -journal/-wal siblings sqlite creates next to it) must never land
// in the scanned directory.
func runIndexPath(saveDir string) string {
	return filepath.Clean(saveDir) + ".runindex.db"
}

// resolveResume implements the auto-resume routine: take the latest
// checkpoint and continue into a successor-named run folder, or fall
// back to the configured explicit checkpoint and a fresh run name.
func resolveResume(cfg *config.Config, fsys fsutil.FileSystem) (resumePath, runName string) {
	if *autoResume {
		res, err := checkpoint.FindLatest(fsys, cfg.Pipeline.SaveDir)
		if err != nil {
			log.Fatalf("failed to resolve last checkpoint: %v", err)
		}
		if res != nil {
			log.Printf("resuming run %s from %s", res.RunName, res.Path)
			return res.Path, checkpoint.SuccessorRunName(res.RunName)
		}
	}
	return cfg.Pipeline.Resume.Checkpoint, runs.Name(cfg, time.Now())
}

// buildModel instantiates the configured model by name.
func buildModel(cfg *config.Config) (trainer.Model, error) {
	switch cfg.Model.Name {
	case "ClassPrior":
		return trainer.NewPriorModel(cfg.Model.OutChannels, cfg.SourceDataset.IgnoreLabel)
	default:
		return nil, errUnknownModel(cfg.Model.Name)
	}
}

type errUnknownModel string

func (e errUnknownModel) Error() string { return "model " + string(e) + " is not implemented" }
