package dirtscan

import (
	"fmt"
	"sort"

	"golang.org/x/sys/unix"
)

// Options tunes index construction. Zero values select the defaults.
type Options struct {
	// Pool runs shard tasks; nil selects GlobalWorkerPool.
	Pool WorkerPool

	// ShardFactor multiplies the pool's worker count to get the target
	// shard count. Default DefaultShardFactor.
	ShardFactor int

	// MinShardWeight is the floor on per-shard weight. Default
	// DefaultMinShardWeight.
	MinShardWeight int
}

// Index is the scannable form of one recorded snapshot: the reconstructed
// directory tree, flattened and cut into weight-balanced shards, bound to a
// working tree root. Build it once per status computation;
// GetDirtyCandidates may then be invoked repeatedly, and each invocation
// warms the per-directory untracked cache for the next one.
//
// An Index must not outlive the VersionedIndex it was built from: directory
// nodes hold views into entry paths.
type Index struct {
	index   VersionedIndex
	rootDir string
	arena   *Arena
	dirs    []*indexDir
	splits  []int
	pool    WorkerPool
}

// NewIndex builds the directory tree and shard plan for scanning rootDir
// against the given snapshot.
func NewIndex(rootDir string, index VersionedIndex, opts Options) *Index {
	pool := opts.Pool
	if pool == nil {
		pool = GlobalWorkerPool()
	}
	shardFactor := opts.ShardFactor
	if shardFactor <= 0 {
		shardFactor = DefaultShardFactor
	}
	minShardWeight := opts.MinShardWeight
	if minShardWeight <= 0 {
		minShardWeight = DefaultMinShardWeight
	}

	arena := NewArena(64 << 10)
	dirs, totalWeight := buildDirs(index, arena)
	splits := initSplits(dirs, totalWeight, pool.NumWorkers(), shardFactor, minShardWeight)

	return &Index{
		index:   index,
		rootDir: rootDir,
		arena:   arena,
		dirs:    dirs,
		splits:  splits,
		pool:    pool,
	}
}

// shardResult carries one shard's candidates, or its failure, back to the
// orchestrator.
type shardResult struct {
	candidates []string
	err        error
}

// GetDirtyCandidates scans the working tree and returns the sorted list of
// dirty candidate paths: tracked entries whose metadata no longer matches or
// whose file is gone, racy entries, and untracked paths (trailing '/' for
// directories). untrackedCache enables the per-directory unchanged-directory
// fast path fed by earlier invocations on the same Index.
//
// An unopenable root is a caller error and fails the whole call, as does any
// internal shard failure; no partial result is ever returned. Per-directory
// open failures inside the tree are recovered locally and are not errors.
func (x *Index) GetDirtyCandidates(untrackedCache bool) ([]string, error) {
	rootFd, err := unix.Open(x.rootDir, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC|openNoATime, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot open working tree root %s: %w", x.rootDir, err)
	}
	defer unix.Close(rootFd)

	numShards := len(x.splits) - 1
	results := make(chan shardResult, numShards)

	runShard := func(from, to int) (r shardResult) {
		defer func() {
			if p := recover(); p != nil {
				r = shardResult{err: fmt.Errorf("shard [%d,%d) panicked: %v", from, to, p)}
			}
		}()
		r.candidates, r.err = scanDirs(rootFd, x.dirs[from:to], untrackedCache)
		return r
	}

	// Fan every shard but the last out to the pool; the last runs here so
	// the calling goroutine never idles while there is capacity.
	for i := 0; i < numShards; i++ {
		from, to := x.splits[i], x.splits[i+1]
		if i == numShards-1 {
			results <- runShard(from, to)
		} else {
			x.pool.Schedule(func() {
				results <- runShard(from, to)
			})
		}
	}

	var candidates []string
	var scanErr error
	for i := 0; i < numShards; i++ {
		r := <-results
		if r.err != nil && scanErr == nil {
			scanErr = r.err
		}
		if len(r.candidates) > 0 {
			candidates = append(candidates, r.candidates...)
		}
	}

	// All shards have joined; the root descriptor is no longer in use by
	// anyone once we return.
	if scanErr != nil {
		return nil, fmt.Errorf("scan failed: %w", scanErr)
	}

	sort.Strings(candidates)
	return candidates, nil
}

// NumShards returns how many shards the planner produced.
func (x *Index) NumShards() int {
	return len(x.splits) - 1
}
