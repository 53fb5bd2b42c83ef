package procmem

import "io"

// Fake is a ProcMem backed by an in-memory byte slice, for tests that
// exercise the coredump transformer without a real target process.
// Reads past the end of the backing slice return io.EOF, and specific
// byte ranges can be marked unreadable to exercise the transformer's
// 0xEF fill-on-error path (spec §4.5).
type Fake struct {
	data       []byte
	unreadable []unreadableRange
	closed     bool
}

type unreadableRange struct {
	start, end int64
}

// NewFake constructs a fake backed by data, where offset 0 in data
// corresponds to virtual address 0 (a read at vaddr reads data[vaddr:]).
func NewFake(data []byte) *Fake {
	return &Fake{data: data}
}

// MarkUnreadable causes reads starting inside [start, end) to fail, modeling
// a VMA that is no longer mapped by the time the transformer reads it.
func (f *Fake) MarkUnreadable(start, end int64) {
	f.unreadable = append(f.unreadable, unreadableRange{start, end})
}

func (f *Fake) isUnreadable(off int64) bool {
	for _, r := range f.unreadable {
		if off >= r.start && off < r.end {
			return true
		}
	}
	return false
}

// ReadAt copies from the backing slice starting at off. It fails outright
// if off falls in a range marked unreadable, and returns io.EOF (with
// whatever bytes were available) if off+len(p) runs past the end of data.
func (f *Fake) ReadAt(p []byte, off int64) (int, error) {
	if f.isUnreadable(off) {
		return 0, io.ErrUnexpectedEOF
	}
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *Fake) Close() error {
	f.closed = true
	return nil
}
