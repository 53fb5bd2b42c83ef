package coredump

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ticos-device/ticosd/internal/coremeta"
	"github.com/ticos-device/ticosd/internal/elfcore"
	"github.com/ticos-device/ticosd/internal/procmem"
)

type memSink struct {
	buf    bytes.Buffer
	synced bool
}

func (s *memSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *memSink) Sync() error                 { s.synced = true; return nil }

type bufSrc struct{ r *bytes.Reader }

func (b *bufSrc) Read(p []byte) (int, error) { return b.r.Read(p) }

func buildSourceCore(t *testing.T) []byte {
	t.Helper()
	w := elfcore.NewWriter(elfcore.Class64, 0x3e, 0, 4 /* ET_CORE */)
	w.AddSegmentWithBuffer(elfcore.Segment{Type: elfcore.PTNote}, []byte("orig-note"))
	w.AddSegmentWithBuffer(elfcore.Segment{Type: elfcore.PTLoad, Vaddr: 0x2000}, make([]byte, 64))
	sink := &memSink{}
	require.NoError(t, w.Emit(sink))
	return sink.buf.Bytes()
}

func testMeta() coremeta.Metadata {
	return coremeta.Metadata{
		SdkVersion:         "1.0.0",
		CapturedTimeEpochS: 1_700_000_000,
		DeviceSerial:       "D1",
		HardwareVersion:    "hw",
		SoftwareType:       "app",
		SoftwareVersion:    "1.0.0",
	}
}

func TestTransformAppendsMetadataNoteAfterOriginals(t *testing.T) {
	data := buildSourceCore(t)
	src := &bufSrc{r: bytes.NewReader(data)}
	out := &memSink{}
	mem := procmem.NewFake(make([]byte, 4096))

	result, err := Transform(src, out, mem, 1234, testMeta(), elfcore.Class64)
	require.NoError(t, err)
	require.Empty(t, result.Warnings)

	// Re-read the output and confirm: orig PT_NOTE, orig PT_LOAD, then a
	// trailing metadata PT_NOTE (invariant 1).
	r := elfcore.NewReader(&bufSrc{r: bytes.NewReader(out.buf.Bytes())}, elfcore.Class64)
	h := &captureHandler{}
	require.NoError(t, r.ReadAll(h))

	require.Len(t, h.segments, 3)
	require.Equal(t, uint32(elfcore.PTNote), h.segments[0].Type)
	require.Equal(t, uint32(elfcore.PTLoad), h.segments[1].Type)
	require.Equal(t, uint32(elfcore.PTNote), h.segments[2].Type)
	require.EqualValues(t, 64, h.segments[1].Filesz, "PT_LOAD filesz must be preserved (invariant 2)")
}

func TestTransformFillsUnreadableMemoryWithPlaceholder(t *testing.T) {
	data := buildSourceCore(t)
	src := &bufSrc{r: bytes.NewReader(data)}
	out := &memSink{}

	mem := procmem.NewFake(make([]byte, 4096))
	mem.MarkUnreadable(0x2000, 0x2000+64)

	_, err := Transform(src, out, mem, 1234, testMeta(), elfcore.Class64)
	require.NoError(t, err)

	r := elfcore.NewReader(&bufSrc{r: bytes.NewReader(out.buf.Bytes())}, elfcore.Class64)
	h := &captureHandler{}
	require.NoError(t, r.ReadAll(h))

	loadBody := h.bodies[1]
	for _, b := range loadBody {
		require.EqualValues(t, unreadableFill, b)
	}
}

type captureHandler struct {
	segments []elfcore.Segment
	bodies   [][]byte
}

func (h *captureHandler) HandleElfHeader(elfcore.Header) {}
func (h *captureHandler) HandleWarning(string)           {}
func (h *captureHandler) HandleDone()                    {}
func (h *captureHandler) HandleSegments(r *elfcore.Reader, segments []elfcore.Segment) {
	h.segments = segments
	pos := int64(64 + len(segments)*56)
	for _, seg := range segments {
		buf := make([]byte, seg.Filesz)
		r.ReadSegmentData(pos, buf)
		h.bodies = append(h.bodies, buf)
		pos += int64(seg.Filesz)
	}
}
