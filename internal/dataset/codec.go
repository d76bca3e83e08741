package dataset

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RawSample is an on-disk sample before voxelization: metric XYZ
// points with aligned per-point features and semantic labels.
type RawSample struct {
	Points [][3]float64
	Feats  [][]float32
	Labels []int32
}

// Blob format: little-endian header (point count uint32, feature dim
// uint32), then a coordinates block (3 float32 per point), a features
// block (featDim float32 per point) and a labels block (int32 per
// point).
const (
	blobHeaderSize = 8
	coordSize      = 12 // 3 * float32

	// maxBlobPoints caps decoding of untrusted input; at roughly 40
	// bytes per decoded point, a million points is ~40MB.
	maxBlobPoints = 1 << 20
	maxFeatDim    = 256
)

// EncodeSample packs a raw sample into its binary blob form.
func EncodeSample(s RawSample) ([]byte, error) {
	n := len(s.Points)
	if n == 0 {
		return nil, fmt.Errorf("dataset: cannot encode empty sample")
	}
	if len(s.Feats) != n || len(s.Labels) != n {
		return nil, fmt.Errorf("dataset: sample misaligned: %d points, %d feats, %d labels",
			n, len(s.Feats), len(s.Labels))
	}
	featDim := len(s.Feats[0])
	for i, f := range s.Feats {
		if len(f) != featDim {
			return nil, fmt.Errorf("dataset: point %d has %d features, want %d", i, len(f), featDim)
		}
	}

	blob := make([]byte, blobHeaderSize+n*(coordSize+featDim*4+4))
	binary.LittleEndian.PutUint32(blob, uint32(n))
	binary.LittleEndian.PutUint32(blob[4:], uint32(featDim))

	off := blobHeaderSize
	for _, p := range s.Points {
		for _, v := range p {
			binary.LittleEndian.PutUint32(blob[off:], math.Float32bits(float32(v)))
			off += 4
		}
	}
	for _, f := range s.Feats {
		for _, v := range f {
			binary.LittleEndian.PutUint32(blob[off:], math.Float32bits(v))
			off += 4
		}
	}
	for _, l := range s.Labels {
		binary.LittleEndian.PutUint32(blob[off:], uint32(l))
		off += 4
	}
	return blob, nil
}

// DecodeSample unpacks a binary blob. Input is treated as untrusted:
// counts are bounded and the declared size must match the payload.
func DecodeSample(blob []byte) (RawSample, error) {
	if len(blob) < blobHeaderSize {
		return RawSample{}, fmt.Errorf("dataset: blob too short: %d bytes", len(blob))
	}
	n := int(binary.LittleEndian.Uint32(blob))
	featDim := int(binary.LittleEndian.Uint32(blob[4:]))
	if n <= 0 || n > maxBlobPoints {
		return RawSample{}, fmt.Errorf("dataset: blob declares %d points (max %d)", n, maxBlobPoints)
	}
	if featDim < 0 || featDim > maxFeatDim {
		return RawSample{}, fmt.Errorf("dataset: blob declares feature dim %d (max %d)", featDim, maxFeatDim)
	}
	want := blobHeaderSize + n*(coordSize+featDim*4+4)
	if len(blob) != want {
		return RawSample{}, fmt.Errorf("dataset: blob is %d bytes, header implies %d", len(blob), want)
	}

	out := RawSample{
		Points: make([][3]float64, n),
		Feats:  make([][]float32, n),
		Labels: make([]int32, n),
	}
	off := blobHeaderSize
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			out.Points[i][j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(blob[off:])))
			off += 4
		}
	}
	for i := 0; i < n; i++ {
		f := make([]float32, featDim)
		for j := 0; j < featDim; j++ {
			f[j] = math.Float32frombits(binary.LittleEndian.Uint32(blob[off:]))
			off += 4
		}
		out.Feats[i] = f
	}
	for i := 0; i < n; i++ {
		out.Labels[i] = int32(binary.LittleEndian.Uint32(blob[off:]))
		off += 4
	}
	return out, nil
}
