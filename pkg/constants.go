package dirtscan

// Tuning defaults for shard planning. Both are configurable through Options
// and the [scan] section of .dirt/config.
const (
	// DefaultShardFactor is the fan-out multiplier: the planner targets
	// shard_factor * workers shards so that stragglers even out.
	DefaultShardFactor = 16

	// DefaultMinShardWeight is the floor on per-shard weight; it stops small
	// trees from being cut into shards not worth a task dispatch.
	DefaultMinShardWeight = 512
)

// Snapshot file format constants
const (
	// SnapshotHeaderSize = signature(4) + pad(4) + byte_order(8) +
	// entry_count(4) + version(4) + written_sec(8) + written_nsec(8) +
	// checksum(20) + pad(4),
	// matching unsafe.Sizeof(snapshotHeader{}) so entries start 8-byte aligned
	SnapshotHeaderSize     = 64
	SnapshotChecksumSize   = 20 // SHA-1
	CurrentSnapshotVersion = 1
)

// Byte order magic for snapshot format validation
const ByteOrderMagic uint64 = 0x0102030405060708

// snapshotSignature identifies a dirtscan snapshot file
var snapshotSignature = [4]byte{'d', 'i', 'r', 't'}

// File constants for the .dirt repository directory
const (
	RepoDirName  = ".dirt"
	SnapshotFile = "snapshot.idx"
	ConfigFile   = "config"
)
