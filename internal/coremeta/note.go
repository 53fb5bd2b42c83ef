package coremeta

import "encoding/binary"

// NoteName is the ELF note "owner" string embedded in the metadata note.
const NoteName = "Ticos"

// NoteType is the custom ELF note type identifying a ticosd metadata note.
const NoteType = 0x4154454d

// align4 rounds n up to the next multiple of 4, the standard ELF note
// padding alignment.
func align4(n int) int {
	return (n + 3) &^ 3
}

// NoteFrameSize returns the total size of the PT_NOTE segment body
// BuildNote will produce for a dictionary of descSize bytes: the
// Elf_Nhdr (3 x u32), the padded name, and the padded description.
func NoteFrameSize(descSize int) int {
	return 12 + align4(len(NoteName)+1) + align4(descSize)
}

// BuildNote frames an ELF note: namesz/descsz/type header, the
// NUL-terminated owner name padded to 4 bytes, then the description
// (here, the encoded metadata dictionary) padded to 4 bytes.
func BuildNote(m Metadata) []byte {
	desc := Encode(m)
	frame := make([]byte, NoteFrameSize(len(desc)))

	nameWithNul := len(NoteName) + 1
	binary.LittleEndian.PutUint32(frame[0:4], uint32(nameWithNul))
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(desc)))
	binary.LittleEndian.PutUint32(frame[8:12], NoteType)

	copy(frame[12:12+len(NoteName)], NoteName)
	// frame[12+len(NoteName)] is left as the NUL terminator; Go's
	// zero-valued byte slice already holds 0x00 there and through the
	// rest of the name/description padding.

	descOff := 12 + align4(nameWithNul)
	copy(frame[descOff:descOff+len(desc)], desc)

	return frame
}
