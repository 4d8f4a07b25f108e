package dirtscan

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// ============================================================================
// DIRECTORY LISTING
// ============================================================================

// listEntry is one name from a raw directory listing, tagged with whether it
// is a directory.
type listEntry struct {
	name string
	dir  bool
}

// shardScanner walks one contiguous run of directory nodes. All of its state
// is owned by a single shard task; nothing here is shared across shards.
//
// listDir, the raw listing step, is per-OS: dirent record layouts differ, so
// it lives in dirent_linux.go / dirent_other.go.
type shardScanner struct {
	rootFd         int
	untrackedCache bool

	buf     []byte      // getdents read buffer, reused across directories
	entries []listEntry // listing scratch, reused across directories
	res     []string    // dirty candidates accumulated for this shard
}

// ============================================================================
// PER-SHARD SCAN
// ============================================================================

// scanDirs scans a contiguous run of directory nodes against the live
// filesystem and returns the shard's dirty candidate paths: index entry paths
// for changed or deleted files, and arena-backed paths for untracked entries.
// The order of the result is unspecified.
func scanDirs(rootFd int, dirs []*indexDir, untrackedCache bool) (res []string, err error) {
	s := &shardScanner{rootFd: rootFd, untrackedCache: untrackedCache}

	dirFd := -1
	defer func() {
		if dirFd >= 0 {
			if cerr := unix.Close(dirFd); cerr != nil && err == nil {
				err = fmt.Errorf("close scan descriptor: %w", cerr)
			}
		}
	}()

	var prev *indexDir
	for _, dir := range dirs {
		dirFd, err = s.scanDir(dir, prev, dirFd)
		if err != nil {
			return nil, err
		}
		prev = dir
	}

	return s.res, nil
}

// markUnreadable records a failed open/stat/list: the cached directory state
// is dropped so a later pass relists from scratch, previously cached
// untracked entries are never re-emitted, and the directory's own path
// becomes the one candidate it contributes this round.
func (d *indexDir) markUnreadable() {
	d.st = dirStat{}
	d.arena.Reset()
	d.untracked = append(d.untracked[:0], d.path)
}

// addUntracked records a listing entry matched by neither files nor subdirs.
// Directories named ".git" or ".dirt" are never recorded and never descended
// into, mirroring the recorder.
func (d *indexDir) addUntracked(name string, isDir bool) {
	if isDir {
		if name == ".git" || name == RepoDirName {
			return
		}
		d.untracked = append(d.untracked, d.arena.AllocString(d.path, name, "/"))
	} else {
		d.untracked = append(d.untracked, d.arena.AllocString(d.path, name))
	}
}

// scanDir processes one directory node. prevFd is the descriptor left open
// for the previous node in the run (or -1); the returned descriptor is the
// one left open for this node (or -1 if it could not be opened) and is owned
// by the caller. The node's current untracked list - freshly computed or the
// preserved cache - is flushed to the shard result on every return path.
func (s *shardScanner) scanDir(dir, prev *indexDir, prevFd int) (fd int, err error) {
	defer func() {
		s.res = append(s.res, dir.untracked...)
	}()

	const openFlags = unix.O_RDONLY | unix.O_DIRECTORY | unix.O_CLOEXEC | openNoATime

	// Open the directory, relative to the previous node when it is this
	// node's parent (the builder's output adjacency makes that the common
	// case), otherwise by full path relative to the root descriptor.
	fd = -1
	if prevFd >= 0 && prev != nil && prev.depth+1 == dir.depth && strings.HasPrefix(dir.path, prev.path) {
		name := dir.path[len(prev.path) : len(dir.path)-1]
		newFd, openErr := unix.Openat(prevFd, name, openFlags, 0)
		if cerr := unix.Close(prevFd); cerr != nil {
			if openErr == nil {
				unix.Close(newFd)
			}
			return -1, fmt.Errorf("close scan descriptor: %w", cerr)
		}
		if openErr == nil {
			fd = newFd
		}
	} else {
		name := "."
		if dir.path != "" {
			name = dir.path[:len(dir.path)-1]
		}
		if prevFd >= 0 {
			if cerr := unix.Close(prevFd); cerr != nil {
				return -1, fmt.Errorf("close scan descriptor: %w", cerr)
			}
		}
		newFd, openErr := unix.Openat(s.rootFd, name, openFlags, 0)
		if openErr == nil {
			fd = newFd
		}
	}
	if fd < 0 {
		if IsDebugEnabled("scan") {
			VerboseLog(3, "scanDir: cannot open %q", dir.path)
		}
		dir.markUnreadable()
		return -1, nil
	}

	var st unix.Stat_t
	if unix.Fstat(fd, &st) != nil {
		dir.markUnreadable()
		return fd, nil
	}

	if s.untrackedCache && dir.st.equals(&st) {
		// Unchanged directory: the listing cannot have changed, so only the
		// tracked files themselves need a re-stat.
		if IsDebugEnabled("scan") {
			VerboseLog(3, "scanDir: %q unchanged, skipping listing", dir.path)
		}
		for _, file := range dir.files {
			if file.NewerThanIndex {
				s.res = append(s.res, file.Path) // racy
				continue
			}
			var fst unix.Stat_t
			if unix.Fstatat(fd, file.Path[len(dir.path):], &fst, unix.AT_SYMLINK_NOFOLLOW) != nil {
				fst = unix.Stat_t{}
			}
			if isModified(file, &fst) {
				s.res = append(s.res, file.Path) // modified
			}
		}
		return fd, nil
	}

	entries, ok := s.listDir(fd)
	if !ok {
		dir.markUnreadable()
		return fd, nil
	}
	dir.st = dirStatOf(&st)
	dir.arena.Reset()
	dir.untracked = dir.untracked[:0]

	// Three-way sorted merge of the listing against files and subdirs, all
	// byte-sorted by basename.
	files := dir.files
	subdirs := dir.subdirs
	for _, ent := range entries {
		matched := false

		for len(files) > 0 {
			cmp := strings.Compare(files[0].Path[len(dir.path):], ent.name)
			if cmp < 0 {
				s.res = append(s.res, files[0].Path) // deleted
				files = files[1:]
			} else if cmp == 0 {
				if files[0].NewerThanIndex {
					s.res = append(s.res, files[0].Path) // racy
				} else {
					var fst unix.Stat_t
					if unix.Fstatat(fd, ent.name, &fst, unix.AT_SYMLINK_NOFOLLOW) != nil {
						fst = unix.Stat_t{}
					}
					if isModified(files[0], &fst) {
						s.res = append(s.res, files[0].Path) // modified
					}
				}
				files = files[1:]
				matched = true
				break
			} else {
				break
			}
		}

		if matched {
			continue
		}

		for len(subdirs) > 0 {
			cmp := strings.Compare(subdirs[0], ent.name)
			if cmp > 0 {
				// Subdirectory missing from the filesystem; its absence is
				// reported when its own node fails to open.
				break
			}
			subdirs = subdirs[1:]
			if cmp == 0 {
				matched = true
				break
			}
		}

		if !matched {
			dir.addUntracked(ent.name, ent.dir) // new
		}
	}

	// Tracked files sorting after the entire listing are gone from disk.
	for _, file := range files {
		s.res = append(s.res, file.Path) // deleted
	}

	return fd, nil
}
