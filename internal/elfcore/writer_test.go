package elfcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterEmitOrderAndOffsets(t *testing.T) {
	w := NewWriter(Class64, 0x3e, 0, etCore)
	w.AddSegmentWithBuffer(Segment{Type: PTNote, Align: 4}, []byte("notebody"))
	w.AddSegmentWithBuffer(Segment{Type: PTLoad, Vaddr: 0x1000, Align: 0x1000}, make([]byte, 100))

	sink := &bufSink{}
	require.NoError(t, w.Emit(sink))
	require.True(t, sink.synced)

	out := sink.buf.Bytes()
	hdr := unmarshalEhdr64(out[:64])
	require.EqualValues(t, 2, hdr.Phnum)
	require.EqualValues(t, 64, hdr.Phoff)

	p0 := unmarshalPhdr64(out[64 : 64+56])
	p1 := unmarshalPhdr64(out[64+56 : 64+112])

	require.EqualValues(t, 8, p0.Filesz)
	require.GreaterOrEqual(t, p1.Offset, p0.Offset+p0.Filesz, "offsets must be monotone (invariant 3)")
	if p1.Align > 1 {
		require.Zero(t, p1.Offset%p1.Align)
	}
}

func TestWriterCallbackAttachedSegmentMustMatchFilesz(t *testing.T) {
	w := NewWriter(Class64, 0x3e, 0, etCore)
	seg := Segment{Type: PTLoad, Vaddr: 0, Filesz: 10}
	w.AddSegmentWithProducer(seg, func(push func([]byte) error) error {
		return push([]byte("short"))
	})

	sink := &bufSink{}
	err := w.Emit(sink)
	require.Error(t, err, "producer writing fewer bytes than declared filesz must fail")
}

func TestWriterCallbackAttachedSegmentMultiplePushes(t *testing.T) {
	w := NewWriter(Class64, 0x3e, 0, etCore)
	seg := Segment{Type: PTLoad, Vaddr: 0, Filesz: 8}
	w.AddSegmentWithProducer(seg, func(push func([]byte) error) error {
		if err := push([]byte("abcd")); err != nil {
			return err
		}
		return push([]byte("efgh"))
	})

	sink := &bufSink{}
	require.NoError(t, w.Emit(sink))

	body := sink.buf.Bytes()[64+56:]
	require.Equal(t, []byte("abcdefgh"), body)
}
