package checkpoint

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/openlidar/bevtrain/internal/fsutil"
)

// CheckpointsDir is the per-run subdirectory holding checkpoint files.
const CheckpointsDir = "checkpoints"

// ErrNoCheckpoints reports a run folder whose checkpoints directory
// exists but holds no files, so there is nothing to resume from.
var ErrNoCheckpoints = errors.New("checkpoint: run has no checkpoint files")

// Resolved is the outcome of a successful latest-checkpoint lookup.
type Resolved struct {
	// Path is the checkpoint file to resume from.
	Path string
	// RunName is the run folder the checkpoint belongs to, so the
	// caller can decide how to name the successor run.
	RunName string
}

// timestampLen is the fixed run-name prefix: YYYY_MM_DD_HH:MM.
const timestampLen = 16

// TimestampKey converts a run folder name's 16-character timestamp
// prefix into a comparable integer key.
//
// The key is y*365*24*60 + mo*30*24*60 + d*24*60 + h*60 + m. Every
// month counts as 30 days, so ordering across month and year
// boundaries is approximate, not calendar-accurate. The formula is
// kept as-is: run histories recorded under it must keep resolving the
// same way. Within a same-month comparison it is strictly monotonic.
func TimestampKey(name string) (int64, error) {
	if len(name) < timestampLen {
		return 0, fmt.Errorf("run name %q shorter than %d-char timestamp prefix", name, timestampLen)
	}
	fields := [5]struct {
		lo, hi int
		what   string
	}{
		{0, 4, "year"},
		{5, 7, "month"},
		{8, 10, "day"},
		{11, 13, "hour"},
		{14, 16, "minute"},
	}
	var vals [5]int64
	for i, f := range fields {
		v, err := strconv.Atoi(name[f.lo:f.hi])
		if err != nil {
			return 0, fmt.Errorf("run name %q: bad %s field: %w", name, f.what, err)
		}
		vals[i] = int64(v)
	}
	year, month, day, hour, minute := vals[0], vals[1], vals[2], vals[3], vals[4]
	return year*365*24*60 + month*30*24*60 + day*24*60 + hour*60 + minute, nil
}

// epochOffset is where the epoch digits start in a checkpoint file
// name ("epoch=NN-..." puts them at bytes 6 and 7).
const epochOffset = 6

// ParseEpoch extracts the epoch number from a checkpoint file name.
// Epochs are written as two digits, but single-digit names occur in
// the wild ("epoch=7-step=..."); then the byte after the digit is the
// '-' separator and only the leading digit is used. Anything else at
// the fixed offset is a parse error.
func ParseEpoch(filename string) (int, error) {
	if len(filename) < epochOffset+2 {
		return 0, fmt.Errorf("checkpoint name %q too short to carry an epoch number", filename)
	}
	field := filename[epochOffset : epochOffset+2]
	if field[1] == '-' {
		field = field[:1]
	}
	epoch, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("checkpoint name %q: bad epoch field %q: %w", filename, field, err)
	}
	return epoch, nil
}

// FindLatest scans saveRoot for the chronologically latest run folder
// (by TimestampKey, first index winning ties) and, inside its
// checkpoints directory, the file with the highest epoch number
// (again first index on ties).
//
// A missing or empty saveRoot is the normal fresh-start condition and
// returns (nil, nil). A malformed folder or file name is an error. A
// run whose checkpoints directory is empty returns ErrNoCheckpoints.
func FindLatest(fsys fsutil.FileSystem, saveRoot string) (*Resolved, error) {
	if !fsys.Exists(saveRoot) {
		return nil, nil
	}
	entries, err := fsys.ReadDir(saveRoot)
	if err != nil {
		return nil, fmt.Errorf("reading save root %s: %w", saveRoot, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	bestIdx := -1
	var bestKey int64
	for i, e := range entries {
		key, err := TimestampKey(e.Name())
		if err != nil {
			return nil, err
		}
		if bestIdx == -1 || key > bestKey {
			bestIdx, bestKey = i, key
		}
	}
	runName := entries[bestIdx].Name()

	ckptDir := filepath.Join(saveRoot, runName, CheckpointsDir)
	ckpts, err := fsys.ReadDir(ckptDir)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoints of run %s: %w", runName, err)
	}
	if len(ckpts) == 0 {
		return nil, fmt.Errorf("run %s: %w", runName, ErrNoCheckpoints)
	}

	bestIdx = -1
	bestEpoch := 0
	for i, e := range ckpts {
		epoch, err := ParseEpoch(e.Name())
		if err != nil {
			return nil, err
		}
		if bestIdx == -1 || epoch > bestEpoch {
			bestIdx, bestEpoch = i, epoch
		}
	}

	return &Resolved{
		Path:    filepath.Join(ckptDir, ckpts[bestIdx].Name()),
		RunName: runName,
	}, nil
}

// SuccessorRunName names the follow-up run when resuming: a trailing
// digit is incremented, anything else gets a "-PT2" marker appended.
func SuccessorRunName(name string) string {
	if name == "" {
		return name
	}
	last := name[len(name)-1]
	if last >= '0' && last <= '9' {
		return name[:len(name)-1] + strconv.Itoa(int(last-'0')+1)
	}
	return name + "-PT2"
}
