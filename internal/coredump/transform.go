// Package coredump implements the transformer that rewrites a kernel
// coredump into ticosd's output format: original PT_NOTE/PT_LOAD segments
// copied through, followed by one appended metadata PT_NOTE (spec §4.5).
package coredump

import (
	"fmt"
	"io"
	"os"

	"github.com/ticos-device/ticosd/internal/coremeta"
	"github.com/ticos-device/ticosd/internal/elfcore"
	"github.com/ticos-device/ticosd/internal/procmem"
)

const (
	chunkSize      = 4096
	unreadableFill = 0xEF
	maxWarnings    = 16
)

// warningOverflowSink is where live warnings (and the overflow notice) are
// written, matching spec §4.5's "Warnings are emitted to stderr live".
var warningOverflowSink io.Writer = os.Stderr

// Result summarizes a completed transformation.
type Result struct {
	Warnings []string
	Dropped  int // warnings beyond maxWarnings, per spec §4.5 warning policy
}

// Transform reads a coredump from src, rewrites it with sink as the
// output, and returns once both the reader and writer have finished. The
// transformer's success is reader-success AND writer-success, per
// spec §4.5.
func Transform(src elfcore.Source, sink elfcore.Sink, mem procmem.ProcMem, pid int, meta coremeta.Metadata, class elfcore.Class) (Result, error) {
	t := &transformer{mem: mem, pid: pid, meta: meta, class: class, sink: sink}
	r := elfcore.NewReader(src, class)
	if err := r.ReadAll(t); err != nil {
		return Result{}, err
	}
	if t.writeErr != nil {
		return Result{Warnings: t.warnings, Dropped: t.dropped}, t.writeErr
	}
	return Result{Warnings: t.warnings, Dropped: t.dropped}, nil
}

type transformer struct {
	mem      procmem.ProcMem
	pid      int
	meta     coremeta.Metadata
	class    elfcore.Class
	writer   *elfcore.Writer
	sink     elfcore.Sink
	warnings []string
	dropped  int
	writeErr error
}

func (t *transformer) HandleElfHeader(hdr elfcore.Header) {
	t.writer = elfcore.NewWriter(t.class, hdr.Machine, hdr.Flags, hdr.Type)
}

func (t *transformer) HandleWarning(msg string) {
	if len(t.warnings) >= maxWarnings {
		t.dropped++
		fmt.Fprintf(warningOverflowSink, "ticosd: coredump warning dropped (overflow): %s\n", msg)
		return
	}
	t.warnings = append(t.warnings, msg)
	fmt.Fprintf(warningOverflowSink, "ticosd: %s\n", msg)
}

func (t *transformer) HandleSegments(r *elfcore.Reader, segments []elfcore.Segment) {
	for _, seg := range segments {
		switch seg.Type {
		case elfcore.PTNote:
			buf := make([]byte, seg.Filesz)
			if _, err := r.ReadSegmentData(int64(seg.Offset), buf); err != nil {
				t.HandleWarning(fmt.Sprintf("short read on PT_NOTE body: %v", err))
			}
			t.writer.AddSegmentWithBuffer(seg, buf)
		case elfcore.PTLoad:
			vaddr := seg.Vaddr
			filesz := seg.Filesz
			t.writer.AddSegmentWithProducer(seg, func(push func([]byte) error) error {
				return t.copyFromProcess(vaddr, filesz, push)
			})
		default:
			t.HandleWarning(fmt.Sprintf("skipping unsupported segment type %d", seg.Type))
		}
	}
}

// copyFromProcess streams filesz bytes from /proc/<pid>/mem starting at
// vaddr, 4 KiB at a time. Any read error or short read causes the rest of
// that chunk to be filled with the placeholder byte so the segment's
// length invariant (spec invariant 2) is preserved even over an unmapped
// VMA.
func (t *transformer) copyFromProcess(vaddr, filesz uint64, push func([]byte) error) error {
	var done uint64
	for done < filesz {
		n := uint64(chunkSize)
		if remaining := filesz - done; remaining < n {
			n = remaining
		}
		chunk := make([]byte, n)
		read, err := t.mem.ReadAt(chunk, int64(vaddr+done))
		if err != nil || uint64(read) < n {
			for i := read; i < int(n); i++ {
				chunk[i] = unreadableFill
			}
		}
		if err := push(chunk); err != nil {
			return err
		}
		done += n
	}
	return nil
}

func (t *transformer) HandleDone() {
	if t.writer == nil {
		// ReadHeader failed before HandleElfHeader ran; nothing to write.
		return
	}
	note := coremeta.BuildNote(t.meta)
	t.writer.AddSegmentWithBuffer(elfcore.Segment{Type: elfcore.PTNote}, note)
	t.writeErr = t.writer.Emit(t.sink)
}
