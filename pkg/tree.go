package dirtscan

import (
	"sort"
	"strings"
)

// indexDir is one directory level of the rebuilt tree.
//
// files and subdirs are sorted by basename and duplicate-free once the
// builder finalises the node. st, arena and untracked are scan-side state
// owned exclusively by whichever shard the node lands in.
type indexDir struct {
	path  string // slice of a full entry path; "" for the root, otherwise ends in '/'
	depth int    // number of path separators from the root

	files   []*IndexEntry // entries whose immediate parent is this directory
	subdirs []string      // basenames of direct child directories holding tracked entries

	st        dirStat  // last observed identity of the directory itself
	arena     Arena    // directory-local storage for untracked path bytes
	untracked []string // previously discovered untracked paths (views into arena)
}

// weight is the shard planner's cost proxy for scanning a directory.
func weight(d *indexDir) int { return 1 + len(d.subdirs) + len(d.files) }

// commonDir returns the length (including the trailing '/') and depth of the
// longest common directory prefix of a and b.
func commonDir(a, b string) (length, depth int) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n && a[i] == b[i]; i++ {
		if a[i] == '/' {
			length = i + 1
			depth++
		}
	}
	return length, depth
}

// buildDirs reconstructs the directory forest from the path-sorted index in
// one pass and returns the flattened node list plus the total node weight.
//
// A stack holds the open ancestor chain, rooted at a synthetic "" node. For
// each entry, nodes deeper than the common prefix with the previous path are
// finalised (subdirs sorted if needed, weight counted, node appended), new
// nodes are opened for each path segment down to the entry's parent, and the
// entry is attached to the deepest node. Finalisation order is reversed at
// the end so that a node is immediately followed by its own children whenever
// they were contiguous in the index - the scanner's relative-open fast path
// exploits that adjacency without requiring it globally.
func buildDirs(index VersionedIndex, arena *Arena) ([]*indexDir, int) {
	count := index.EntryCount()
	dirs := make([]*indexDir, 0, count/8+1)
	stack := []*indexDir{arena.NewDir()}

	totalWeight := 0
	popDir := func() {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !sort.StringsAreSorted(top.subdirs) {
			sort.Strings(top.subdirs)
		}
		totalWeight += weight(top)
		dirs = append(dirs, top)
	}

	for i := 0; i < count; i++ {
		entry := index.EntryAt(i)
		prev := stack[len(stack)-1]
		commonLen, commonDepth := commonDir(prev.path, entry.Path)

		for j := commonDepth; j < prev.depth; j++ {
			popDir()
		}

		for p := commonLen; ; {
			slash := strings.IndexByte(entry.Path[p:], '/')
			if slash < 0 {
				break
			}
			p += slash
			top := stack[len(stack)-1]
			top.subdirs = append(top.subdirs, entry.Path[len(top.path):p])
			dir := arena.NewDir()
			dir.path = entry.Path[:p+1]
			dir.depth = len(stack)
			stack = append(stack, dir)
			p++
		}

		top := stack[len(stack)-1]
		top.files = append(top.files, entry)
	}

	for len(stack) > 0 {
		popDir()
	}

	for i, j := 0, len(dirs)-1; i < j; i, j = i+1, j-1 {
		dirs[i], dirs[j] = dirs[j], dirs[i]
	}

	if IsDebugEnabled("tree") {
		for _, d := range dirs {
			VerboseLog(3, "buildDirs: dir %q depth=%d files=%d subdirs=%d",
				d.path, d.depth, len(d.files), len(d.subdirs))
		}
	}

	return dirs, totalWeight
}
