package dirtscan

import "unsafe"

// Arena is a chunked bump allocator backing directory node records and path
// byte storage. There is no per-allocation free: Reset drops the arena's hold
// on its chunks in one go. Anything still referencing previously returned
// bytes keeps them alive through the garbage collector, so views handed out
// before a Reset stay valid for as long as the caller holds them.
type Arena struct {
	buf       []byte // current chunk; len = bytes used, cap = chunk size
	chunkSize int
	dirSlab   []indexDir // current node slab; len = nodes used
}

// NewArena creates an arena whose byte chunks are chunkSize bytes. Larger
// single allocations get a dedicated chunk.
func NewArena(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = 4 << 10
	}
	return &Arena{chunkSize: chunkSize}
}

// AllocBytes returns an uninitialised n-byte slice from the arena. The slice
// never moves.
func (a *Arena) AllocBytes(n int) []byte {
	if n == 0 {
		return nil
	}
	if cap(a.buf)-len(a.buf) < n {
		size := a.chunkSize
		if size <= 0 {
			size = 4 << 10 // zero-value arenas (per-directory storage)
		}
		if n > size {
			size = n
		}
		a.buf = make([]byte, 0, size)
	}
	used := len(a.buf)
	a.buf = a.buf[:used+n]
	return a.buf[used : used+n]
}

// AllocString concatenates parts into arena storage and returns a string view
// of it (zero-copy, the string aliases arena memory).
func (a *Arena) AllocString(parts ...string) string {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	if total == 0 {
		return ""
	}
	b := a.AllocBytes(total)
	off := 0
	for _, p := range parts {
		off += copy(b[off:], p)
	}
	return unsafe.String(&b[0], total)
}

// NewDir allocates a zeroed directory node record. Node records live until
// the arena itself is unreachable; Reset does not recycle them.
func (a *Arena) NewDir() *indexDir {
	if len(a.dirSlab) == cap(a.dirSlab) {
		a.dirSlab = make([]indexDir, 0, 64)
	}
	a.dirSlab = a.dirSlab[:len(a.dirSlab)+1]
	d := &a.dirSlab[len(a.dirSlab)-1]
	*d = indexDir{}
	return d
}

// Reset releases the arena's byte chunks. Previously returned views remain
// valid while referenced; new allocations start from a fresh chunk.
func (a *Arena) Reset() {
	a.buf = nil
}

// Used reports the bytes consumed in the current chunk, for tests and
// instrumentation.
func (a *Arena) Used() int {
	return len(a.buf)
}
