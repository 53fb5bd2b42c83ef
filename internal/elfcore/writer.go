package elfcore

import "fmt"

// Sink is the writer's opaque byte sink: write(buf) with POSIX write(2)
// semantics, plus a sync() that must be called after the last write
// (spec §4.2, §4.3). Sinks never need to support seeking.
type Sink interface {
	Write(p []byte) (n int, err error)
	Sync() error
}

// SegmentProducer is invoked once by the writer when it reaches a
// callback-attached segment's body. It must call push(buf) one or more
// times, writing exactly the segment's declared Filesz bytes in total.
type SegmentProducer func(push func(buf []byte) error) error

type pendingSegment struct {
	hdr      Segment
	buffer   []byte // set for buffer-attached segments
	producer SegmentProducer
}

// Writer implements the streaming ELF writer from spec §4.2: it never
// seeks, so all program-header offsets are computed up front in a single
// pass before anything is emitted.
type Writer struct {
	class    Class
	machine  uint16
	flags    uint32
	etype    uint16
	segments []pendingSegment
}

// NewWriter constructs a writer for the given class. machine/flags/etype
// mirror the fields the transformer copies from the source header
// (spec §4.5: "copy e_machine and e_flags to the writer").
func NewWriter(class Class, machine uint16, flags uint32, etype uint16) *Writer {
	return &Writer{class: class, machine: machine, flags: flags, etype: etype}
}

// AddSegmentWithBuffer attaches a segment whose body is a heap buffer the
// writer now owns. len(buf) becomes the segment's Filesz.
func (w *Writer) AddSegmentWithBuffer(hdr Segment, buf []byte) {
	hdr.Filesz = uint64(len(buf))
	w.segments = append(w.segments, pendingSegment{hdr: hdr, buffer: buf})
}

// AddSegmentWithProducer attaches a segment whose body is pulled from
// producer at emit time. hdr.Filesz must already be set to the exact
// number of bytes the producer will push.
func (w *Writer) AddSegmentWithProducer(hdr Segment, producer SegmentProducer) {
	w.segments = append(w.segments, pendingSegment{hdr: hdr, producer: producer})
}

func ehdrSize(class Class) int64 {
	if class == Class64 {
		return 64
	}
	return 52
}

func phdrSize(class Class) int64 {
	if class == Class64 {
		return 56
	}
	return 32
}

// Emit writes the header, segment-header table, and all segment bodies to
// sink in the order described in spec §4.2, then calls sink.Sync().
func (w *Writer) Emit(sink Sink) error {
	n := int64(len(w.segments))
	phoff := int64(0)
	if n > 0 {
		phoff = ehdrSize(w.class)
	}

	// Single-pass offset precomputation: the writer never seeks, so every
	// p_offset must be known before the first byte is emitted.
	offsets := make([]int64, n)
	pads := make([]int64, n)
	running := ehdrSize(w.class) + n*phdrSize(w.class)
	for i, seg := range w.segments {
		align := int64(seg.hdr.Align)
		pad := int64(0)
		if align > 1 {
			rem := running % align
			if rem != 0 {
				pad = align - rem
			}
		}
		pads[i] = pad
		running += pad
		offsets[i] = running
		running += int64(seg.hdr.Filesz)
	}

	if err := w.writeHeader(sink, phoff, n); err != nil {
		return err
	}
	if err := w.writeSegmentTable(sink, offsets); err != nil {
		return err
	}
	for i, seg := range w.segments {
		if err := writeZeroPad(sink, pads[i]); err != nil {
			return err
		}
		if err := w.writeSegmentBody(sink, seg); err != nil {
			return err
		}
	}

	if err := sink.Sync(); err != nil {
		return fmt.Errorf("elfcore: sync failed: %w", err)
	}
	return nil
}

func (w *Writer) writeHeader(sink Sink, phoff, phnum int64) error {
	buf := make([]byte, ehdrSize(w.class))
	if w.class == Class64 {
		marshalEhdr64(Ehdr64{
			Ident:     elfIdent(w.class),
			Type:      w.etype,
			Machine:   w.machine,
			Version:   evCurrent,
			Phoff:     uint64(phoff),
			Flags:     w.flags,
			Ehsize:    64,
			Phentsize: 56,
			Phnum:     uint16(phnum),
		}, buf)
	} else {
		marshalEhdr32(Ehdr32{
			Ident:     elfIdent(w.class),
			Type:      w.etype,
			Machine:   w.machine,
			Version:   evCurrent,
			Phoff:     uint32(phoff),
			Flags:     w.flags,
			Ehsize:    52,
			Phentsize: 32,
			Phnum:     uint16(phnum),
		}, buf)
	}
	return writeAll(sink, buf)
}

func elfIdent(class Class) [16]byte {
	var ident [16]byte
	ident[0], ident[1], ident[2], ident[3] = elfMagic0, elfMagic1, elfMagic2, elfMagic3
	ident[4] = byte(class)
	ident[5] = 1 // ELFDATA2LSB
	ident[6] = evCurrent
	return ident
}

func (w *Writer) writeSegmentTable(sink Sink, offsets []int64) error {
	for i, seg := range w.segments {
		buf := make([]byte, phdrSize(w.class))
		hdr := seg.hdr
		hdr.Offset = uint64(offsets[i])
		if w.class == Class64 {
			marshalPhdr64(Phdr64{
				Type: hdr.Type, Flags: hdr.Flags, Offset: hdr.Offset,
				Vaddr: hdr.Vaddr, Paddr: hdr.Vaddr, Filesz: hdr.Filesz,
				Memsz: hdr.Memsz, Align: hdr.Align,
			}, buf)
		} else {
			marshalPhdr32(Phdr32{
				Type: hdr.Type, Offset: uint32(hdr.Offset), Vaddr: uint32(hdr.Vaddr),
				Paddr: uint32(hdr.Vaddr), Filesz: uint32(hdr.Filesz), Memsz: uint32(hdr.Memsz),
				Flags: hdr.Flags, Align: uint32(hdr.Align),
			}, buf)
		}
		if err := writeAll(sink, buf); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeSegmentBody(sink Sink, seg pendingSegment) error {
	if seg.buffer != nil {
		return writeAll(sink, seg.buffer)
	}

	var written uint64
	err := seg.producer(func(buf []byte) error {
		written += uint64(len(buf))
		return writeAll(sink, buf)
	})
	if err != nil {
		return err
	}
	if written != seg.hdr.Filesz {
		return fmt.Errorf("elfcore: segment producer wrote %d bytes, declared filesz was %d", written, seg.hdr.Filesz)
	}
	return nil
}

func writeZeroPad(sink Sink, n int64) error {
	if n <= 0 {
		return nil
	}
	return writeAll(sink, make([]byte, n))
}

// writeAll retries short writes, the writer-side analog of the reader's
// readFull — any failure aborts with an error that propagates to the
// caller (spec §4.2 failure semantics).
func writeAll(sink Sink, buf []byte) error {
	for len(buf) > 0 {
		n, err := sink.Write(buf)
		if err != nil {
			return fmt.Errorf("elfcore: write failed: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("elfcore: write made no progress")
		}
		buf = buf[n:]
	}
	return nil
}
