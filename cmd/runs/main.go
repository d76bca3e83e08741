// Command runs inspects training output: it lists indexed runs,
// resolves the latest resumable checkpoint, renders training-curve
// reports, and exports BEV label-grid heatmaps.
//
// Usage:
//
//	runs list    -db <runindex.db>
//	runs latest  -save-dir <dir>
//	runs report  -db <runindex.db> [-run <id>] -out curves.html
//	runs heatmap -sample <file.bvs> [-size N] [-bound M] -out grid.png
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/openlidar/bevtrain/internal/bev"
	"github.com/openlidar/bevtrain/internal/checkpoint"
	"github.com/openlidar/bevtrain/internal/dataset"
	"github.com/openlidar/bevtrain/internal/fsutil"
	"github.com/openlidar/bevtrain/internal/report"
	"github.com/openlidar/bevtrain/internal/runs"
	"github.com/openlidar/bevtrain/internal/version"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = cmdList(os.Args[2:])
	case "latest":
		err = cmdLatest(os.Args[2:])
	case "report":
		err = cmdReport(os.Args[2:])
	case "heatmap":
		err = cmdHeatmap(os.Args[2:])
	case "version":
		fmt.Println("runs " + version.String())
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: runs <list|latest|report|heatmap|version> [flags]")
	os.Exit(2)
}

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := fs.String("db", "runindex.db", "Run index database")
	fs.Parse(args)

	store, err := runs.OpenStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.ListRuns()
	if err != nil {
		return err
	}
	for _, r := range recs {
		status := "running"
		if r.CompletedAt != nil {
			status = "completed " + r.CompletedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%s  %s  [%s]  %s\n", r.RunID, r.RunName, r.Policy, status)
	}
	return nil
}

func cmdLatest(args []string) error {
	fs := flag.NewFlagSet("latest", flag.ExitOnError)
	saveDir := fs.String("save-dir", "", "Save root holding run folders")
	fs.Parse(args)

	if *saveDir == "" {
		return fmt.Errorf("-save-dir is required")
	}
	res, err := checkpoint.FindLatest(fsutil.OSFileSystem{}, *saveDir)
	if err != nil {
		return err
	}
	if res == nil {
		fmt.Println("no runs found")
		return nil
	}
	fmt.Printf("run:        %s\ncheckpoint: %s\n", res.RunName, res.Path)
	return nil
}

func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dbPath := fs.String("db", "runindex.db", "Run index database")
	runID := fs.String("run", "", "Run ID (defaults to the latest run)")
	out := fs.String("out", "curves.html", "Output HTML file")
	fs.Parse(args)

	store, err := runs.OpenStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	id := *runID
	if id == "" {
		rec, err := store.LatestRun()
		if err != nil {
			return fmt.Errorf("no run id given and no runs indexed: %w", err)
		}
		id = rec.RunID
	}

	var buf bytes.Buffer
	if err := report.TrainingCurves(store, id, &buf); err != nil {
		return err
	}
	if err := os.WriteFile(*out, buf.Bytes(), 0644); err != nil {
		return err
	}
	log.Printf("wrote %s", *out)
	return nil
}

func cmdHeatmap(args []string) error {
	fs := flag.NewFlagSet("heatmap", flag.ExitOnError)
	samplePath := fs.String("sample", "", "Encoded sample blob (.bvs)")
	size := fs.Int("size", 256, "Grid side length in cells")
	bound := fs.Float64("bound", 50, "World bound in meters")
	ignore := fs.Int("ignore", -1, "Ignore label")
	out := fs.String("out", "grid.png", "Output PNG file")
	fs.Parse(args)

	if *samplePath == "" {
		return fmt.Errorf("-sample is required")
	}
	blob, err := os.ReadFile(*samplePath)
	if err != nil {
		return err
	}
	raw, err := dataset.DecodeSample(blob)
	if err != nil {
		return err
	}

	xs := make([]float64, len(raw.Points))
	ys := make([]float64, len(raw.Points))
	for i, p := range raw.Points {
		xs[i], ys[i] = p[0], p[1]
	}
	g, err := bev.Project(xs, ys, raw.Labels, bev.Level{Name: "full", Size: *size, Scale: 1}, *bound, int32(*ignore))
	if err != nil {
		return err
	}
	if err := report.GridHeatmap(g, *samplePath, *out); err != nil {
		return err
	}
	log.Printf("wrote %s", *out)
	return nil
}
