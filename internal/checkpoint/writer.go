package checkpoint

import (
	"fmt"
	"path/filepath"

	"github.com/openlidar/bevtrain/internal/fsutil"
)

// Writer persists per-epoch trainer state under a run folder, using
// the same naming scheme FindLatest parses back.
type Writer struct {
	fsys fsutil.FileSystem
	dir  string
}

// NewWriter prepares the checkpoints directory for a run folder.
func NewWriter(fsys fsutil.FileSystem, runDir string) (*Writer, error) {
	dir := filepath.Join(runDir, CheckpointsDir)
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating checkpoints dir %s: %w", dir, err)
	}
	return &Writer{fsys: fsys, dir: dir}, nil
}

// Dir returns the checkpoints directory the writer targets.
func (w *Writer) Dir() string { return w.dir }

// Write stores one epoch's state and returns the checkpoint path.
// Epochs are zero-padded to two digits so the fixed-offset epoch
// parse keeps working for epochs 0..99.
func (w *Writer) Write(epoch int, step int64, state []byte) (string, error) {
	name := fmt.Sprintf("epoch=%02d-step=%d.ckpt", epoch, step)
	path := filepath.Join(w.dir, name)
	if err := w.fsys.WriteFile(path, state, 0644); err != nil {
		return "", fmt.Errorf("writing checkpoint %s: %w", path, err)
	}
	return path, nil
}
