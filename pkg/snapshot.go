package dirtscan

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	"unsafe"

	"github.com/google/vectorio"
	zcsl "github.com/mattkeenan/zerocopyskiplist"
	"golang.org/x/sys/unix"
)

// ============================================================================
// ON-DISK FORMAT
// ============================================================================

// snapshotHeader is the snapshot file header in host byte order, cast
// directly onto mmap'd memory. ByteOrder must be checked before trusting any
// other field.
type snapshotHeader struct {
	Signature   [4]byte
	_           [4]byte
	ByteOrder   uint64 // ByteOrderMagic as written by the recording host
	EntryCount  uint32
	Version     uint32
	WrittenSec  int64 // snapshot write timestamp, racy-entry cutoff
	WrittenNsec int64
	Checksum    [SnapshotChecksumSize]byte // SHA-1 of header-up-to-checksum + entries
	_           [4]byte
}

// binarySnapEntry is the fixed prefix of one entry in host byte order. The
// relative path follows immediately after, null-padded so the next entry
// starts 8-byte aligned. Size is the full entry length including the path
// and padding, and must stay the first field.
type binarySnapEntry struct {
	Size      uint32
	Flags     uint16
	_         uint16
	MtimeSec  int64
	MtimeNsec int64
	Ino       uint64
	Mode      uint32
	Gid       uint32
	FileSize  uint64
}

const binarySnapEntrySize = int(unsafe.Sizeof(binarySnapEntry{}))

// snapEntrySizeForPath returns the total on-disk entry size for a path
// length: fixed prefix + path + null terminator, padded to 8 bytes.
func snapEntrySizeForPath(pathLen int) int {
	total := binarySnapEntrySize + pathLen + 1
	return total + (8-total%8)%8
}

// encodeSnapEntry serialises one entry into a standalone buffer.
func encodeSnapEntry(e *IndexEntry) []byte {
	buf := make([]byte, snapEntrySizeForPath(len(e.Path)))
	be := (*binarySnapEntry)(unsafe.Pointer(&buf[0]))
	be.Size = uint32(len(buf))
	be.MtimeSec = e.MtimeSec
	be.MtimeNsec = e.MtimeNsec
	be.Ino = e.Ino
	be.Mode = e.Mode
	be.Gid = e.Gid
	be.FileSize = uint64(e.Size)
	copy(buf[binarySnapEntrySize:], e.Path)
	return buf
}

// ============================================================================
// READER
// ============================================================================

// Snapshot is a memory-mapped snapshot file decoded into a VersionedIndex.
// Entry paths are zero-copy views into the mapping: the Snapshot (and hence
// any Index built on it) must not be used after Close.
type Snapshot struct {
	data    []byte
	entries []IndexEntry
	written time.Time
}

// OpenSnapshot maps and validates a snapshot file. Racy entries - those
// whose recorded mtime is not older than the snapshot's own write time - get
// their NewerThanIndex flag set.
func OpenSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	if st.Size() < SnapshotHeaderSize {
		return nil, fmt.Errorf("snapshot %s too small: %d bytes", path, st.Size())
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap snapshot %s: %w", path, err)
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return snap, nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	header := (*snapshotHeader)(unsafe.Pointer(&data[0]))
	if header.Signature != snapshotSignature {
		return nil, fmt.Errorf("invalid signature %q", string(header.Signature[:]))
	}
	if header.ByteOrder != ByteOrderMagic {
		return nil, fmt.Errorf("byte order mismatch: file 0x%016x, host 0x%016x",
			header.ByteOrder, ByteOrderMagic)
	}
	if header.Version != CurrentSnapshotVersion {
		return nil, fmt.Errorf("unsupported version %d", header.Version)
	}

	hasher := sha1.New()
	hasher.Write(data[:unsafe.Offsetof(snapshotHeader{}.Checksum)])
	hasher.Write(data[SnapshotHeaderSize:])
	if sum := hasher.Sum(nil); !bytes.Equal(sum, header.Checksum[:]) {
		return nil, fmt.Errorf("checksum mismatch: expected %x, got %x", header.Checksum, sum)
	}

	written := time.Unix(header.WrittenSec, header.WrittenNsec)
	entries := make([]IndexEntry, 0, header.EntryCount)
	off := SnapshotHeaderSize
	for i := 0; i < int(header.EntryCount); i++ {
		if off+binarySnapEntrySize > len(data) {
			return nil, fmt.Errorf("truncated at entry %d", i)
		}
		be := (*binarySnapEntry)(unsafe.Pointer(&data[off]))
		size := int(be.Size)
		if size < binarySnapEntrySize+2 || size%8 != 0 || off+size > len(data) {
			return nil, fmt.Errorf("entry %d has invalid size %d", i, size)
		}

		pathEnd := off + size
		pathStart := off + binarySnapEntrySize
		for pathEnd > pathStart && data[pathEnd-1] == 0 {
			pathEnd--
		}
		if pathEnd == pathStart {
			return nil, fmt.Errorf("entry %d has empty path", i)
		}
		path := unsafe.String(&data[pathStart], pathEnd-pathStart)
		if i > 0 && entries[i-1].Path >= path {
			return nil, fmt.Errorf("entry %d out of order: %q after %q", i, path, entries[i-1].Path)
		}

		racy := be.MtimeSec > header.WrittenSec ||
			(be.MtimeSec == header.WrittenSec && be.MtimeNsec >= header.WrittenNsec)

		entries = append(entries, IndexEntry{
			Path:           path,
			MtimeSec:       be.MtimeSec,
			MtimeNsec:      be.MtimeNsec,
			Ino:            be.Ino,
			Mode:           be.Mode,
			Gid:            be.Gid,
			Size:           int64(be.FileSize),
			NewerThanIndex: racy,
		})
		off += size
	}
	if off != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after %d entries", len(data)-off, len(entries))
	}

	return &Snapshot{data: data, entries: entries, written: written}, nil
}

// EntryCount implements VersionedIndex.
func (s *Snapshot) EntryCount() int { return len(s.entries) }

// EntryAt implements VersionedIndex.
func (s *Snapshot) EntryAt(i int) *IndexEntry { return &s.entries[i] }

// WrittenAt returns when the snapshot was recorded.
func (s *Snapshot) WrittenAt() time.Time { return s.written }

// Close unmaps the snapshot. Entries and any Index built from them are
// invalid afterwards.
func (s *Snapshot) Close() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	s.entries = nil
	return err
}

// ============================================================================
// RECORDER
// ============================================================================

// recordedEntry pairs a relative path with its encoded on-disk form while a
// snapshot is being built.
type recordedEntry struct {
	path string
	data []byte
}

// newRecordSkiplist returns the sorted collection the recorder accumulates
// entries in. The walk delivers paths in per-directory lexical order, which
// is not byte order over full paths ("a.b" sorts between "a/x" and "a/y"
// there); the skiplist restores the byte order the scanner requires.
func newRecordSkiplist() *zcsl.ZeroCopySkiplist[recordedEntry, string, string] {
	return zcsl.MakeZeroCopySkiplist[recordedEntry, string, string](
		16,
		func(e *recordedEntry) string { return e.path },
		func(e *recordedEntry) int { return len(e.data) },
		strings.Compare,
	)
}

// RecordSnapshot walks rootDir, records metadata for every regular file and
// symlink (skipping .git and .dirt directories), and writes the snapshot to
// outPath. Unreadable subtrees are skipped silently. Returns the number of
// entries recorded.
func RecordSnapshot(rootDir, outPath string) (int, error) {
	written := time.Now()
	sl := newRecordSkiplist()
	count := 0

	err := filepath.WalkDir(rootDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == rootDir {
				return walkErr
			}
			return nil
		}
		if d.IsDir() {
			if p != rootDir && (d.Name() == ".git" || d.Name() == RepoDirName) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		rel, relErr := filepath.Rel(rootDir, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		var st unix.Stat_t
		if unix.Lstat(p, &st) != nil {
			return nil
		}

		entry := entryFromStat(rel, &st)
		if sl.Insert(&recordedEntry{path: rel, data: encodeSnapEntry(&entry)}, "record") {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk %s: %w", rootDir, err)
	}

	if err := writeSnapshot(outPath, sl, count, written); err != nil {
		return 0, err
	}
	VerboseLog(1, "recorded %d entries to %s", count, outPath)
	return count, nil
}

// writeSnapshot serialises the collected entries with a single header iovec
// plus one iovec per entry, chunked to stay under IOV_MAX.
func writeSnapshot(path string, sl *zcsl.ZeroCopySkiplist[recordedEntry, string, string], count int, written time.Time) error {
	header := snapshotHeader{
		Signature:   snapshotSignature,
		ByteOrder:   ByteOrderMagic,
		EntryCount:  uint32(count),
		Version:     CurrentSnapshotVersion,
		WrittenSec:  written.Unix(),
		WrittenNsec: int64(written.Nanosecond()),
	}

	entryIovecs := make([]syscall.Iovec, 0, count)
	totalEntryBytes := 0
	for node := sl.First(); node != nil; node = node.Next() {
		e := node.Item()
		entryIovecs = append(entryIovecs, syscall.Iovec{
			Base: &e.data[0],
			Len:  uint64(len(e.data)),
		})
		totalEntryBytes += len(e.data)
	}

	headerBytes := (*[SnapshotHeaderSize]byte)(unsafe.Pointer(&header))
	hasher := sha1.New()
	hasher.Write(headerBytes[:unsafe.Offsetof(header.Checksum)])
	for _, iov := range entryIovecs {
		hasher.Write(unsafe.Slice(iov.Base, iov.Len))
	}
	copy(header.Checksum[:], hasher.Sum(nil))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file %s: %w", path, err)
	}
	defer f.Close()

	headerIovec := syscall.Iovec{Base: &headerBytes[0], Len: SnapshotHeaderSize}
	if nw, err := vectorio.WritevRaw(f.Fd(), []syscall.Iovec{headerIovec}); err != nil {
		return fmt.Errorf("failed to write snapshot header: %w", err)
	} else if nw != SnapshotHeaderSize {
		return fmt.Errorf("snapshot header write incomplete: wrote %d bytes, expected %d", nw, SnapshotHeaderSize)
	}

	const maxIovecs = 1024 // stay under IOV_MAX
	entryBytes := 0
	for off := 0; off < len(entryIovecs); off += maxIovecs {
		end := off + maxIovecs
		if end > len(entryIovecs) {
			end = len(entryIovecs)
		}
		nw, err := vectorio.WritevRaw(f.Fd(), entryIovecs[off:end])
		if err != nil {
			return fmt.Errorf("failed to write snapshot entries: %w", err)
		}
		entryBytes += nw
	}
	if entryBytes != totalEntryBytes {
		return fmt.Errorf("snapshot entry write incomplete: wrote %d bytes, expected %d", entryBytes, totalEntryBytes)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync snapshot file: %w", err)
	}
	return nil
}
