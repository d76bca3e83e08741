// Package collate merges variable-size point-cloud samples into
// sparse-tensor batch form: concatenated coordinates tagged with a
// per-sample batch index, aligned feature and label concatenations,
// and per-level BEV label grids stacked in sample order.
//
// Collation is pure: no shared state, safe to call from any number of
// data-loading workers concurrently.
package collate
