//go:build linux

package dirtscan

import (
	"sort"
	"unsafe"

	"golang.org/x/sys/unix"
)

// linux_dirent64 field offsets: ino(8) + off(8) + reclen(2) + type(1) + name
const (
	direntOffIno    = 0
	direntOffReclen = 16
	direntOffType   = 18
	direntOffName   = 19
)

// listDir reads every entry of the directory open on fd except "." and "..",
// resolving DT_UNKNOWN through fstatat, and returns the listing sorted
// byte-wise by name. Records with a zero inode mark deleted-but-not-yet-
// reclaimed entries on some filesystems and are skipped. ok is false if the
// listing could not be read.
func (s *shardScanner) listDir(fd int) (entries []listEntry, ok bool) {
	if s.buf == nil {
		s.buf = make([]byte, 32<<10)
	}
	entries = s.entries[:0]

	for {
		n, err := unix.ReadDirent(fd, s.buf)
		if err != nil {
			return entries, false
		}
		if n == 0 {
			break
		}
		for off := 0; off < n; {
			ino := *(*uint64)(unsafe.Pointer(&s.buf[off+direntOffIno]))
			reclen := int(*(*uint16)(unsafe.Pointer(&s.buf[off+direntOffReclen])))
			typ := s.buf[off+direntOffType]
			nameBytes := s.buf[off+direntOffName : off+reclen]
			end := 0
			for end < len(nameBytes) && nameBytes[end] != 0 {
				end++
			}
			name := string(nameBytes[:end])
			off += reclen

			if ino == 0 || name == "." || name == ".." {
				continue
			}

			isDir := typ == unix.DT_DIR
			if typ == unix.DT_UNKNOWN {
				// Filesystem without d_type support; one extra stat
				var st unix.Stat_t
				if unix.Fstatat(fd, name, &st, unix.AT_SYMLINK_NOFOLLOW) == nil {
					isDir = st.Mode&unix.S_IFMT == unix.S_IFDIR
				}
			}
			entries = append(entries, listEntry{name: name, dir: isDir})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	s.entries = entries
	return entries, true
}
