// Package track owns the estimation core: single-target kinematic
// state estimation from a stream of Cartesian measurements.
//
// Responsibilities: scan grouping, track id allocation, the
// constant-velocity Kalman recursion (predict/gate/update), candidate
// association, and the per-scan tracking loop.
// Key types: Measurement, Scan, Filter, Loop.
//
// Coordinate conversion, file/serial ingest, persistence and plotting
// live in their own packages; no SQL/database code is allowed here.
package track
