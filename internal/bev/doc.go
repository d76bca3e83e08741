// Package bev owns bird's-eye-view label grids: the dense 2D class
// rasters used as auxiliary supervision targets at each decoder level.
//
// Responsibilities: grid storage, level configuration, and top-down
// projection of labeled points into a level's grid.
//
// Dependency rule: bev has no dependencies on other bevtrain packages.
package bev
