// Package dirtscan detects which files in a working tree differ from a
// previously recorded metadata snapshot, without reading file contents.
//
// It is built to run on every interactive prompt render: the snapshot is
// rebuilt into a directory tree once, the tree is cut into weight-balanced
// shards, and the shards are scanned in parallel using openat/fstatat and
// raw directory listings. The result is a sorted list of "dirty candidate"
// paths - tracked files whose cached metadata no longer matches the disk,
// tracked files that are gone, and untracked paths - which the caller can
// then classify or content-verify as it sees fit.
//
// # Basic usage
//
//	snap, err := dirtscan.OpenSnapshot(".dirt/snapshot.idx")
//	if err != nil { ... }
//	defer snap.Close()
//
//	idx := dirtscan.NewIndex(rootDir, snap, dirtscan.Options{})
//	candidates, err := idx.GetDirtyCandidates(true)
//
// Any parser of an on-disk index format can drive the scanner by implementing
// VersionedIndex; OpenSnapshot and SliceIndex are the two implementations
// shipped here.
//
// # Configuration
//
// Tuning knobs (worker count, shard fan-out factor, minimum shard weight)
// live in Options and in the .dirt/config ini file read by LoadConfig.
// Debug output is controlled with SetVerboseLevel and SetDebugFlags.
package dirtscan
