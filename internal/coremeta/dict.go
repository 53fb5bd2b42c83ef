// Package coremeta builds the metadata PT_NOTE segment embedded in every
// transformed coredump: a length-prefixed binary dictionary of device and
// software identity fields (spec §4.4), grounded on the original
// implementation's two-pass CBOR-style encoder (core_elf_metadata.c):
// compute the encoded size with a size-only pass, then encode for real
// into a buffer sized from that pass.
package coremeta

import "encoding/binary"

// Metadata key order is fixed (spec §3 CoredumpMetadata, keys 1..7).
const (
	KeySchemaVersion   = 1
	KeyLinuxSdkVersion = 2
	KeyCapturedTime    = 3
	KeyDeviceSerial    = 4
	KeyHardwareVersion = 5
	KeySoftwareType    = 6
	KeySoftwareVersion = 7
)

// SchemaVersion is the only value that has ever existed for this schema
// (spec §9 design note (c): "no v0 exists").
const SchemaVersion = 1

// Metadata mirrors spec §3's CoredumpMetadata.
type Metadata struct {
	SdkVersion         string
	CapturedTimeEpochS uint32
	DeviceSerial       string
	HardwareVersion    string
	SoftwareType       string
	SoftwareVersion    string
}

// dictEncoder accumulates the dictionary's wire bytes, or (in size-only
// mode) just counts them without writing anything — the same two-pass
// shape as the original's sTicosCborEncoder.
type dictEncoder struct {
	sizeOnly bool
	buf      []byte
	size     int
}

func newSizeOnlyEncoder() *dictEncoder {
	return &dictEncoder{sizeOnly: true}
}

func newEncoder(buf []byte) *dictEncoder {
	return &dictEncoder{buf: buf}
}

func (e *dictEncoder) encodeUnsignedInteger(v uint64) {
	if e.sizeOnly {
		e.size += 9 // 1 tag byte + 8 value bytes, fixed-width for simplicity
		return
	}
	e.buf[e.size] = tagUint
	binary.LittleEndian.PutUint64(e.buf[e.size+1:e.size+9], v)
	e.size += 9
}

func (e *dictEncoder) encodeString(s string) {
	if e.sizeOnly {
		e.size += 1 + 4 + len(s) // tag + u32 length + bytes
		return
	}
	e.buf[e.size] = tagString
	binary.LittleEndian.PutUint32(e.buf[e.size+1:e.size+5], uint32(len(s)))
	copy(e.buf[e.size+5:], s)
	e.size += 1 + 4 + len(s)
}

func (e *dictEncoder) encodeDictionaryBegin(n int) {
	if e.sizeOnly {
		e.size += 1 + 4 // tag + u32 entry count
		return
	}
	e.buf[e.size] = tagDictBegin
	binary.LittleEndian.PutUint32(e.buf[e.size+1:e.size+5], uint32(n))
	e.size += 1 + 4
}

// Wire tags for the length-prefixed binary dictionary encoding.
const (
	tagUint      = 0x01
	tagString    = 0x02
	tagDictBegin = 0x03
)

func writeDict(e *dictEncoder, m Metadata) {
	e.encodeDictionaryBegin(7)
	e.encodeUnsignedInteger(KeySchemaVersion)
	e.encodeUnsignedInteger(SchemaVersion)
	e.encodeUnsignedInteger(KeyLinuxSdkVersion)
	e.encodeString(m.SdkVersion)
	e.encodeUnsignedInteger(KeyCapturedTime)
	e.encodeUnsignedInteger(uint64(m.CapturedTimeEpochS))
	e.encodeUnsignedInteger(KeyDeviceSerial)
	e.encodeString(m.DeviceSerial)
	e.encodeUnsignedInteger(KeyHardwareVersion)
	e.encodeString(m.HardwareVersion)
	e.encodeUnsignedInteger(KeySoftwareType)
	e.encodeString(m.SoftwareType)
	e.encodeUnsignedInteger(KeySoftwareVersion)
	e.encodeString(m.SoftwareVersion)
}

// EncodedSize returns the number of bytes Encode will produce for m,
// without allocating or writing the dictionary body.
func EncodedSize(m Metadata) int {
	e := newSizeOnlyEncoder()
	writeDict(e, m)
	return e.size
}

// Encode writes m's dictionary encoding into a freshly allocated buffer
// sized by EncodedSize.
func Encode(m Metadata) []byte {
	buf := make([]byte, EncodedSize(m))
	e := newEncoder(buf)
	writeDict(e, m)
	return buf
}

// Entry is a single decoded key/value pair, used by Decode and by tests
// asserting the schema invariant (spec §8 invariant 9).
type Entry struct {
	Key   uint64
	UInt  uint64
	Str   string
	IsStr bool
}

// Decode parses a dictionary produced by Encode. It exists to let tests
// round-trip the encoding; ticosd itself only ever writes this format, it
// never needs to read it back.
func Decode(buf []byte) ([]Entry, error) {
	pos := 0
	readTag := func() byte {
		t := buf[pos]
		pos++
		return t
	}
	if readTag() != tagDictBegin {
		return nil, errNotADictionary
	}
	n := binary.LittleEndian.Uint32(buf[pos : pos+4])
	pos += 4

	entries := make([]Entry, 0, n)
	for i := uint32(0); i < n; i++ {
		if readTag() != tagUint {
			return nil, errMalformed
		}
		key := binary.LittleEndian.Uint64(buf[pos : pos+8])
		pos += 8

		tag := readTag()
		switch tag {
		case tagUint:
			v := binary.LittleEndian.Uint64(buf[pos : pos+8])
			pos += 8
			entries = append(entries, Entry{Key: key, UInt: v})
		case tagString:
			l := binary.LittleEndian.Uint32(buf[pos : pos+4])
			pos += 4
			s := string(buf[pos : pos+int(l)])
			pos += int(l)
			entries = append(entries, Entry{Key: key, Str: s, IsStr: true})
		default:
			return nil, errMalformed
		}
	}
	return entries, nil
}
