package collate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyBatch reports a collation call with zero samples. This is a
// malformed-dataset condition for the caller, never a retry.
var ErrEmptyBatch = errors.New("collate: empty batch")

// LevelMismatchError reports samples within one collation call that
// disagree on the set of BEV level names.
type LevelMismatchError struct {
	SampleIndex int
	Want        []string
	Got         []string
}

func (e *LevelMismatchError) Error() string {
	return fmt.Sprintf("collate: sample %d carries BEV levels [%s], batch expects [%s]",
		e.SampleIndex, strings.Join(e.Got, " "), strings.Join(e.Want, " "))
}

// ShapeMismatchError reports a level whose grid shape differs between
// samples of the same batch.
type ShapeMismatchError struct {
	Level       string
	SampleIndex int
	WantRows    int
	WantCols    int
	GotRows     int
	GotCols     int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("collate: sample %d level %q grid is %dx%d, batch expects %dx%d",
		e.SampleIndex, e.Level, e.GotRows, e.GotCols, e.WantRows, e.WantCols)
}
