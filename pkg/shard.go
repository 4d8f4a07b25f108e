package dirtscan

// initSplits partitions the flattened directory list into weight-balanced
// contiguous shards. It greedily accumulates node weights in order and cuts a
// boundary once the running sum reaches the per-shard target
// max(minShardWeight, totalWeight / (shardFactor * workers)).
//
// The result is strictly increasing, starts at 0, ends at len(dirs), and has
// at most shardFactor*workers + 1 boundaries.
func initSplits(dirs []*indexDir, totalWeight, workers, shardFactor, minShardWeight int) []int {
	numShards := shardFactor * workers
	if numShards < 1 {
		numShards = 1
	}
	shardWeight := totalWeight / numShards
	if shardWeight < minShardWeight {
		shardWeight = minShardWeight
	}

	splits := make([]int, 1, numShards+1)

	w := 0
	for i, dir := range dirs {
		w += weight(dir)
		if w >= shardWeight {
			w = 0
			splits = append(splits, i+1)
		}
	}

	if splits[len(splits)-1] != len(dirs) {
		splits = append(splits, len(dirs))
	}

	if IsDebugEnabled("tree") {
		VerboseLog(3, "initSplits: %d dirs, total weight %d, %d shards",
			len(dirs), totalWeight, len(splits)-1)
	}

	return splits
}
