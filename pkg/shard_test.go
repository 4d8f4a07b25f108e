package dirtscan

import (
	"fmt"
	"testing"
)

// makeDirs fabricates a flattened node list with the given per-node weights
// (weight n means 1 node cost + n-1 files).
func makeDirs(weights ...int) ([]*indexDir, int) {
	dirs := make([]*indexDir, len(weights))
	total := 0
	for i, w := range weights {
		d := &indexDir{}
		for j := 1; j < w; j++ {
			d.files = append(d.files, &IndexEntry{})
		}
		dirs[i] = d
		total += weight(d)
	}
	return dirs, total
}

func checkSplits(t *testing.T, splits []int, numDirs int) {
	t.Helper()
	if len(splits) < 2 {
		t.Fatalf("Expected at least 2 boundaries, got %v", splits)
	}
	if splits[0] != 0 {
		t.Errorf("First boundary should be 0, got %d", splits[0])
	}
	if splits[len(splits)-1] != numDirs {
		t.Errorf("Last boundary should be %d, got %d", numDirs, splits[len(splits)-1])
	}
	for i := 1; i < len(splits); i++ {
		if splits[i] <= splits[i-1] {
			t.Errorf("Boundaries not strictly increasing: %v", splits)
			break
		}
	}
}

func TestInitSplitsSmallTree(t *testing.T) {
	// Total weight far below the floor: everything lands in one shard.
	dirs, total := makeDirs(1, 2, 3)
	splits := initSplits(dirs, total, 8, DefaultShardFactor, DefaultMinShardWeight)

	checkSplits(t, splits, len(dirs))
	if len(splits) != 2 {
		t.Errorf("Expected a single shard for a tiny tree, got %d", len(splits)-1)
	}
}

func TestInitSplitsBalanced(t *testing.T) {
	// 64 nodes of weight 4 = total 256, floor 1, 4 workers x factor 4 =
	// 16 shards of target weight 16, i.e. 4 nodes each.
	weights := make([]int, 64)
	for i := range weights {
		weights[i] = 4
	}
	dirs, total := makeDirs(weights...)
	splits := initSplits(dirs, total, 4, 4, 1)

	checkSplits(t, splits, len(dirs))
	if got := len(splits) - 1; got != 16 {
		t.Errorf("Expected 16 shards, got %d", got)
	}
	for i := 1; i < len(splits); i++ {
		if n := splits[i] - splits[i-1]; n != 4 {
			t.Errorf("Shard %d has %d nodes, expected 4", i-1, n)
		}
	}
}

func TestInitSplitsShardCountBound(t *testing.T) {
	tests := []struct {
		workers     int
		shardFactor int
		floor       int
	}{
		{1, 16, 1},
		{4, 16, 1},
		{8, 2, 10},
		{16, 16, 512},
	}

	weights := make([]int, 200)
	for i := range weights {
		weights[i] = 1 + i%7
	}
	dirs, total := makeDirs(weights...)

	for _, tt := range tests {
		t.Run(fmt.Sprintf("w%d_f%d", tt.workers, tt.shardFactor), func(t *testing.T) {
			splits := initSplits(dirs, total, tt.workers, tt.shardFactor, tt.floor)
			checkSplits(t, splits, len(dirs))
			if got, max := len(splits)-1, tt.workers*tt.shardFactor+1; got > max {
				t.Errorf("Got %d shards, expected at most %d", got, max)
			}
		})
	}
}

func TestInitSplitsZeroWorkers(t *testing.T) {
	dirs, total := makeDirs(5, 5, 5)
	splits := initSplits(dirs, total, 0, DefaultShardFactor, 1)
	checkSplits(t, splits, len(dirs))
}

func TestInitSplitsUncuttableNode(t *testing.T) {
	// One node heavier than the whole target still forms a valid shard.
	dirs, total := makeDirs(1, 1000, 1)
	splits := initSplits(dirs, total, 4, 4, 1)
	checkSplits(t, splits, len(dirs))
}
