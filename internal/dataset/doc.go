// Package dataset supplies point-cloud samples per source domain:
// decoding raw sample blobs, applying augmentation, voxelizing, and
// projecting per-level BEV label grids. It also provides train/val
// splitting, multi-source interleaving, and label statistics.
package dataset
