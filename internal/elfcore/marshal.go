package elfcore

import "encoding/binary"

// marshalEhdr64 encodes hdr into buf (must be len(buf) >= 64) using
// explicit little-endian field writes, the same style as the teacher's
// uapi marshal helpers — no unsafe-pointer reinterpretation of the wire
// struct, so the encoding is endian-correct regardless of host arch.
func marshalEhdr64(hdr Ehdr64, buf []byte) {
	copy(buf[0:16], hdr.Ident[:])
	binary.LittleEndian.PutUint16(buf[16:18], hdr.Type)
	binary.LittleEndian.PutUint16(buf[18:20], hdr.Machine)
	binary.LittleEndian.PutUint32(buf[20:24], hdr.Version)
	binary.LittleEndian.PutUint64(buf[24:32], hdr.Entry)
	binary.LittleEndian.PutUint64(buf[32:40], hdr.Phoff)
	binary.LittleEndian.PutUint64(buf[40:48], hdr.Shoff)
	binary.LittleEndian.PutUint32(buf[48:52], hdr.Flags)
	binary.LittleEndian.PutUint16(buf[52:54], hdr.Ehsize)
	binary.LittleEndian.PutUint16(buf[54:56], hdr.Phentsize)
	binary.LittleEndian.PutUint16(buf[56:58], hdr.Phnum)
	binary.LittleEndian.PutUint16(buf[58:60], hdr.Shentsize)
	binary.LittleEndian.PutUint16(buf[60:62], hdr.Shnum)
	binary.LittleEndian.PutUint16(buf[62:64], hdr.Shstrndx)
}

func unmarshalEhdr64(buf []byte) Ehdr64 {
	var hdr Ehdr64
	copy(hdr.Ident[:], buf[0:16])
	hdr.Type = binary.LittleEndian.Uint16(buf[16:18])
	hdr.Machine = binary.LittleEndian.Uint16(buf[18:20])
	hdr.Version = binary.LittleEndian.Uint32(buf[20:24])
	hdr.Entry = binary.LittleEndian.Uint64(buf[24:32])
	hdr.Phoff = binary.LittleEndian.Uint64(buf[32:40])
	hdr.Shoff = binary.LittleEndian.Uint64(buf[40:48])
	hdr.Flags = binary.LittleEndian.Uint32(buf[48:52])
	hdr.Ehsize = binary.LittleEndian.Uint16(buf[52:54])
	hdr.Phentsize = binary.LittleEndian.Uint16(buf[54:56])
	hdr.Phnum = binary.LittleEndian.Uint16(buf[56:58])
	hdr.Shentsize = binary.LittleEndian.Uint16(buf[58:60])
	hdr.Shnum = binary.LittleEndian.Uint16(buf[60:62])
	hdr.Shstrndx = binary.LittleEndian.Uint16(buf[62:64])
	return hdr
}

func marshalPhdr64(p Phdr64, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], p.Type)
	binary.LittleEndian.PutUint32(buf[4:8], p.Flags)
	binary.LittleEndian.PutUint64(buf[8:16], p.Offset)
	binary.LittleEndian.PutUint64(buf[16:24], p.Vaddr)
	binary.LittleEndian.PutUint64(buf[24:32], p.Paddr)
	binary.LittleEndian.PutUint64(buf[32:40], p.Filesz)
	binary.LittleEndian.PutUint64(buf[40:48], p.Memsz)
	binary.LittleEndian.PutUint64(buf[48:56], p.Align)
}

func unmarshalPhdr64(buf []byte) Phdr64 {
	var p Phdr64
	p.Type = binary.LittleEndian.Uint32(buf[0:4])
	p.Flags = binary.LittleEndian.Uint32(buf[4:8])
	p.Offset = binary.LittleEndian.Uint64(buf[8:16])
	p.Vaddr = binary.LittleEndian.Uint64(buf[16:24])
	p.Paddr = binary.LittleEndian.Uint64(buf[24:32])
	p.Filesz = binary.LittleEndian.Uint64(buf[32:40])
	p.Memsz = binary.LittleEndian.Uint64(buf[40:48])
	p.Align = binary.LittleEndian.Uint64(buf[48:56])
	return p
}

func marshalEhdr32(hdr Ehdr32, buf []byte) {
	copy(buf[0:16], hdr.Ident[:])
	binary.LittleEndian.PutUint16(buf[16:18], hdr.Type)
	binary.LittleEndian.PutUint16(buf[18:20], hdr.Machine)
	binary.LittleEndian.PutUint32(buf[20:24], hdr.Version)
	binary.LittleEndian.PutUint32(buf[24:28], hdr.Entry)
	binary.LittleEndian.PutUint32(buf[28:32], hdr.Phoff)
	binary.LittleEndian.PutUint32(buf[32:36], hdr.Shoff)
	binary.LittleEndian.PutUint32(buf[36:40], hdr.Flags)
	binary.LittleEndian.PutUint16(buf[40:42], hdr.Ehsize)
	binary.LittleEndian.PutUint16(buf[42:44], hdr.Phentsize)
	binary.LittleEndian.PutUint16(buf[44:46], hdr.Phnum)
	binary.LittleEndian.PutUint16(buf[46:48], hdr.Shentsize)
	binary.LittleEndian.PutUint16(buf[48:50], hdr.Shnum)
	binary.LittleEndian.PutUint16(buf[50:52], hdr.Shstrndx)
}

func unmarshalEhdr32(buf []byte) Ehdr32 {
	var hdr Ehdr32
	copy(hdr.Ident[:], buf[0:16])
	hdr.Type = binary.LittleEndian.Uint16(buf[16:18])
	hdr.Machine = binary.LittleEndian.Uint16(buf[18:20])
	hdr.Version = binary.LittleEndian.Uint32(buf[20:24])
	hdr.Entry = binary.LittleEndian.Uint32(buf[24:28])
	hdr.Phoff = binary.LittleEndian.Uint32(buf[28:32])
	hdr.Shoff = binary.LittleEndian.Uint32(buf[32:36])
	hdr.Flags = binary.LittleEndian.Uint32(buf[36:40])
	hdr.Ehsize = binary.LittleEndian.Uint16(buf[40:42])
	hdr.Phentsize = binary.LittleEndian.Uint16(buf[42:44])
	hdr.Phnum = binary.LittleEndian.Uint16(buf[44:46])
	hdr.Shentsize = binary.LittleEndian.Uint16(buf[46:48])
	hdr.Shnum = binary.LittleEndian.Uint16(buf[48:50])
	hdr.Shstrndx = binary.LittleEndian.Uint16(buf[50:52])
	return hdr
}

func marshalPhdr32(p Phdr32, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], p.Type)
	binary.LittleEndian.PutUint32(buf[4:8], p.Offset)
	binary.LittleEndian.PutUint32(buf[8:12], p.Vaddr)
	binary.LittleEndian.PutUint32(buf[12:16], p.Paddr)
	binary.LittleEndian.PutUint32(buf[16:20], p.Filesz)
	binary.LittleEndian.PutUint32(buf[20:24], p.Memsz)
	binary.LittleEndian.PutUint32(buf[24:28], p.Flags)
	binary.LittleEndian.PutUint32(buf[28:32], p.Align)
}

func unmarshalPhdr32(buf []byte) Phdr32 {
	var p Phdr32
	p.Type = binary.LittleEndian.Uint32(buf[0:4])
	p.Offset = binary.LittleEndian.Uint32(buf[4:8])
	p.Vaddr = binary.LittleEndian.Uint32(buf[8:12])
	p.Paddr = binary.LittleEndian.Uint32(buf[12:16])
	p.Filesz = binary.LittleEndian.Uint32(buf[16:20])
	p.Memsz = binary.LittleEndian.Uint32(buf[20:24])
	p.Flags = binary.LittleEndian.Uint32(buf[24:28])
	p.Align = binary.LittleEndian.Uint32(buf[28:32])
	return p
}
