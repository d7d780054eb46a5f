// Package core provides the leaf building blocks of a kernel build run.
//
// # Design Principles
//
// Everything in this package is free of run-level state:
//
//  1. Discovery only reads the filesystem and returns a fresh file list
//  2. Flag assembly is pure: profile and revision are explicit inputs
//  3. The toolchain wrapper owns every filesystem write of a stage
//
// # Core Types
//
// SourceFile: A single compilable unit found by Discover.
// FlagSet: The ordered, append-only compiler flag sequence for a stage.
// Toolchain: A native compiler + archiver pair producing one static archive per call.
// Artifact: The static archive produced for one stage.
//
// Errors returned by this package are *BuildError values whose Kind is one of
// ErrMissingDirectory, ErrUnreadableNode, ErrRevisionUnavailable or ErrToolchainFailure.
package core
