package dirtscan

import (
	"golang.org/x/sys/unix"
)

// IndexEntry is one tracked path in a recorded snapshot, carrying the cached
// filesystem metadata the scanner compares against the live tree.
type IndexEntry struct {
	Path      string // relative path, '/'-separated, unique sort key
	MtimeSec  int64
	MtimeNsec int64
	Ino       uint64
	Mode      uint32 // permission-normalised, see NormalizeMode
	Gid       uint32
	Size      int64

	// NewerThanIndex marks a racy entry: its recorded mtime is
	// indistinguishable from the snapshot's own write time, so a
	// metadata-only comparison cannot be trusted and the entry is treated
	// as unconditionally dirty.
	NewerThanIndex bool
}

// VersionedIndex is the capability the scanner needs from an index parser: a
// read-only sequence of entries with unique paths, sorted ascending by
// byte-wise path comparison, countable in O(1) and addressable by position.
type VersionedIndex interface {
	EntryCount() int
	EntryAt(i int) *IndexEntry
}

// SliceIndex adapts a path-sorted []IndexEntry to VersionedIndex. The caller
// is responsible for sort order and uniqueness.
type SliceIndex []IndexEntry

func (s SliceIndex) EntryCount() int { return len(s) }

func (s SliceIndex) EntryAt(i int) *IndexEntry { return &s[i] }

// NormalizeMode reduces a raw stat mode to the form stored in entries:
// regular files keep only an executable-or-not permission set (0755/0644),
// everything else keeps only its file type bits. Group/other permission bit
// churn on its own therefore never dirties a file.
func NormalizeMode(mode uint32) uint32 {
	if mode&unix.S_IFMT == unix.S_IFREG {
		if mode&0111 != 0 {
			return unix.S_IFREG | 0755
		}
		return unix.S_IFREG | 0644
	}
	return mode & unix.S_IFMT
}

// isModified compares an entry's cached metadata against a live stat. A
// failed stat is passed in as an all-zero Stat_t, which compares as modified
// for any real file.
func isModified(e *IndexEntry, st *unix.Stat_t) bool {
	return e.MtimeSec != st.Mtim.Sec || e.MtimeNsec != st.Mtim.Nsec ||
		e.Ino != st.Ino || e.Mode != NormalizeMode(st.Mode) ||
		e.Gid != st.Gid || e.Size != st.Size
}

// entryFromStat builds an IndexEntry for path from a live lstat, as the
// snapshot recorder stores it.
func entryFromStat(path string, st *unix.Stat_t) IndexEntry {
	return IndexEntry{
		Path:      path,
		MtimeSec:  st.Mtim.Sec,
		MtimeNsec: st.Mtim.Nsec,
		Ino:       st.Ino,
		Mode:      NormalizeMode(st.Mode),
		Gid:       st.Gid,
		Size:      st.Size,
	}
}

// dirStat is the cached identity of a directory for the untracked-cache fast
// path: if device, inode, mtime and size all match the live fstat, the
// directory's listing cannot have changed since the last scan.
type dirStat struct {
	dev       uint64
	ino       uint64
	mtimeSec  int64
	mtimeNsec int64
	size      int64
	set       bool
}

func dirStatOf(st *unix.Stat_t) dirStat {
	return dirStat{
		dev:       st.Dev,
		ino:       st.Ino,
		mtimeSec:  st.Mtim.Sec,
		mtimeNsec: st.Mtim.Nsec,
		size:      st.Size,
		set:       true,
	}
}

func (ds *dirStat) equals(st *unix.Stat_t) bool {
	return ds.set && ds.dev == st.Dev && ds.ino == st.Ino &&
		ds.mtimeSec == st.Mtim.Sec && ds.mtimeNsec == st.Mtim.Nsec &&
		ds.size == st.Size
}
