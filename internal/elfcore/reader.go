package elfcore

import (
	"fmt"
	"io"
)

// state tracks the reader's position in its forward-only protocol
// (spec §4.1: "Init → ReadHeader → SkipToSegments? → PrepareSegments →
// ReadSegments → Done"). There are no back-edges.
type state int

const (
	stateInit state = iota
	stateReadHeader
	statePrepareSegments
	stateReadSegments
	stateDone
)

// Source is the reader's opaque byte source: a single read(buf) with
// POSIX read(2) semantics — short reads are legal, 0 means EOF. Readers
// that can return io.EOF on a partial read (like os.File) satisfy this
// directly.
type Source interface {
	Read(p []byte) (n int, err error)
}

// Handler receives the reader's callbacks. ReadSegmentData may only be
// called from within HandleSegments, and only at or after the reader's
// current stream position — it can't seek backward.
type Handler interface {
	HandleElfHeader(hdr Header)
	// HandleSegments is invoked once, with the full segment table. The
	// handler may call the passed reader's ReadSegmentData method to pull
	// segment bodies while still inside this call.
	HandleSegments(r *Reader, segments []Segment)
	HandleWarning(msg string)
	HandleDone()
}

// Reader implements the streaming ELF reader described in spec §4.1. It
// never buffers the whole file: only the header and the segment table are
// held in memory; segment bodies are streamed on demand.
type Reader struct {
	src       Source
	class     Class
	streamPos int64
	state     state
}

// NewReader constructs a reader for the given class (32 or 64 bit),
// chosen by the caller at construction rather than detected, matching
// spec §4.1's "target class (32 or 64 chosen at build)".
func NewReader(src Source, class Class) *Reader {
	return &Reader{src: src, class: class, state: stateInit}
}

// ReadAll runs the full protocol to completion. It is idempotent-fatal:
// calling it twice on the same Reader without constructing a new one
// returns an error.
func (r *Reader) ReadAll(h Handler) error {
	if r.state != stateInit {
		return fmt.Errorf("elfcore: ReadAll called twice on the same reader")
	}
	r.state = stateReadHeader

	ehdrSize := 64
	if r.class == Class32 {
		ehdrSize = 52
	}
	buf := make([]byte, ehdrSize)
	if err := r.readFull(buf); err != nil {
		h.HandleWarning(fmt.Sprintf("short read on ELF header: %v", err))
		r.state = stateDone
		h.HandleDone()
		return nil
	}

	hdr, phoff, phentsize, phnum, ok := r.parseHeader(buf, h)
	if !ok {
		r.state = stateDone
		h.HandleDone()
		return nil
	}

	h.HandleElfHeader(hdr)

	if phoff > r.streamPos {
		gap := phoff - r.streamPos
		h.HandleWarning("Ignoring data between header and segment table")
		if err := r.skip(gap); err != nil {
			r.state = stateDone
			h.HandleDone()
			return nil
		}
	} else if phoff < r.streamPos {
		return fmt.Errorf("elfcore: program header table offset precedes current stream position")
	}

	r.state = statePrepareSegments
	phdrBuf := make([]byte, int(phentsize)*int(phnum))
	if err := r.readFull(phdrBuf); err != nil {
		h.HandleWarning(fmt.Sprintf("short read on segment header table: %v", err))
		r.state = stateDone
		h.HandleDone()
		return nil
	}

	segments := make([]Segment, 0, phnum)
	for i := 0; i < int(phnum); i++ {
		entry := phdrBuf[i*int(phentsize) : (i+1)*int(phentsize)]
		segments = append(segments, r.decodeSegment(entry))
	}

	r.state = stateReadSegments
	h.HandleSegments(r, segments)

	r.state = stateDone
	h.HandleDone()
	return nil
}

func (r *Reader) parseHeader(buf []byte, h Handler) (hdr Header, phoff int64, phentsize, phnum uint16, ok bool) {
	if buf[0] != elfMagic0 || buf[1] != elfMagic1 || buf[2] != elfMagic2 || buf[3] != elfMagic3 {
		h.HandleWarning("bad ELF magic")
		return Header{}, 0, 0, 0, false
	}

	if r.class == Class64 {
		e := unmarshalEhdr64(buf)
		if !r.validateCommon(e.Version, e.Ehsize, 64, e.Phentsize, 56, e.Type, h) {
			return Header{}, 0, 0, 0, false
		}
		r.streamPos = 64
		return Header{Class: Class64, Machine: e.Machine, Flags: e.Flags, Type: e.Type, Phnum: int(e.Phnum)},
			int64(e.Phoff), e.Phentsize, e.Phnum, true
	}

	e := unmarshalEhdr32(buf)
	if !r.validateCommon(e.Version, e.Ehsize, 52, e.Phentsize, 32, e.Type, h) {
		return Header{}, 0, 0, 0, false
	}
	r.streamPos = 52
	return Header{Class: Class32, Machine: e.Machine, Flags: e.Flags, Type: e.Type, Phnum: int(e.Phnum)},
		int64(e.Phoff), e.Phentsize, e.Phnum, true
}

func (r *Reader) validateCommon(version uint32, ehsize, wantEhsize, phentsize, wantPhentsize, etype uint16, h Handler) bool {
	if version != evCurrent {
		h.HandleWarning("unexpected e_version")
		return false
	}
	if ehsize != wantEhsize {
		h.HandleWarning("e_ehsize does not match compile-time header size")
		return false
	}
	if phentsize != wantPhentsize {
		h.HandleWarning("e_phentsize does not match compile-time segment header size")
		return false
	}
	if etype != etCore {
		h.HandleWarning("e_type is not ET_CORE")
		return false
	}
	return true
}

func (r *Reader) decodeSegment(entry []byte) Segment {
	if r.class == Class64 {
		p := unmarshalPhdr64(entry)
		return Segment{Type: p.Type, Offset: p.Offset, Vaddr: p.Vaddr, Filesz: p.Filesz, Memsz: p.Memsz, Flags: p.Flags, Align: p.Align}
	}
	p := unmarshalPhdr32(entry)
	return Segment{Type: p.Type, Offset: uint64(p.Offset), Vaddr: uint64(p.Vaddr), Filesz: uint64(p.Filesz), Memsz: uint64(p.Memsz), Flags: p.Flags, Align: uint64(p.Align)}
}

// ReadSegmentData advances the stream forward to the requested position
// (never backward) and reads len(buf) bytes. A call at a stream position
// already passed returns 0 with no error, per spec §4.1 step 5.
func (r *Reader) ReadSegmentData(atStreamPos int64, buf []byte) (int, error) {
	if atStreamPos < r.streamPos {
		return 0, nil
	}
	if atStreamPos > r.streamPos {
		if err := r.skip(atStreamPos - r.streamPos); err != nil {
			return 0, err
		}
	}
	if err := r.readFull(buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (r *Reader) readFull(buf []byte) error {
	n, err := io.ReadFull(r.src, buf)
	r.streamPos += int64(n)
	return err
}

func (r *Reader) skip(n int64) error {
	if n <= 0 {
		return nil
	}
	buf := make([]byte, n)
	return r.readFull(buf)
}
