//go:build !linux

package dirtscan

import (
	"os"
	"sort"

	"golang.org/x/sys/unix"
)

// listDir reads every entry of the directory open on fd except "." and "..",
// and returns the listing sorted byte-wise by name. ok is false if the
// listing could not be read.
//
// Raw dirent record layouts are OS-specific off Linux, so the listing goes
// through the standard library on a duplicated descriptor; the File owns the
// dup and closing it leaves fd open for the scanner's relative opens.
func (s *shardScanner) listDir(fd int) (entries []listEntry, ok bool) {
	dupFd, err := unix.Dup(fd)
	if err != nil {
		return s.entries[:0], false
	}
	f := os.NewFile(uintptr(dupFd), ".")
	defer f.Close()

	list, err := f.ReadDir(-1)
	if err != nil {
		return s.entries[:0], false
	}

	entries = s.entries[:0]
	for _, ent := range list {
		entries = append(entries, listEntry{name: ent.Name(), dir: ent.IsDir()})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	s.entries = entries
	return entries, true
}
