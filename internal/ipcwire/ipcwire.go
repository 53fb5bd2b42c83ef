// Package ipcwire implements the datagram framing for ticosd's control
// protocol (spec §6): a leading ASCII tag used to route the message to a
// plugin, and the attributes wire format carrying a timestamp and a JSON
// body.
package ipcwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Tags are the recognized IPC plugin prefixes. Each is matched against
// the leading bytes of a datagram, NUL-terminated in the wire encoding.
const (
	TagAttributes = "ATTRIBUTES"
	TagCollectd   = "COLLECTD"
	TagCore       = "CORE"
)

// MatchTag reports whether msg begins with tag followed by a NUL byte,
// and if so returns the remainder of the datagram after the tag+NUL.
func MatchTag(msg []byte, tag string) ([]byte, bool) {
	prefix := append([]byte(tag), 0)
	if len(msg) < len(prefix) || !bytes.Equal(msg[:len(prefix)], prefix) {
		return nil, false
	}
	return msg[len(prefix):], true
}

// EncodeAttributes builds the wire format for an attributes datagram:
// [tag(11)][timestamp:u64 LE][json bytes][\0] (spec §6).
func EncodeAttributes(timestampEpochS uint64, jsonBody []byte) []byte {
	tag := append([]byte(TagAttributes), 0)
	buf := make([]byte, 0, len(tag)+8+len(jsonBody)+1)
	buf = append(buf, tag...)
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], timestampEpochS)
	buf = append(buf, ts[:]...)
	buf = append(buf, jsonBody...)
	buf = append(buf, 0)
	return buf
}

// DecodeAttributes parses a datagram previously built by EncodeAttributes.
func DecodeAttributes(msg []byte) (timestampEpochS uint64, jsonBody []byte, err error) {
	rest, ok := MatchTag(msg, TagAttributes)
	if !ok {
		return 0, nil, fmt.Errorf("ipcwire: not an ATTRIBUTES datagram")
	}
	if len(rest) < 8+1 {
		return 0, nil, fmt.Errorf("ipcwire: attributes datagram too short")
	}
	ts := binary.LittleEndian.Uint64(rest[:8])
	body := rest[8:]
	if len(body) == 0 || body[len(body)-1] != 0 {
		return 0, nil, fmt.Errorf("ipcwire: attributes datagram missing trailing NUL")
	}
	return ts, body[:len(body)-1], nil
}

// EncodeSimple builds a bare tag+NUL datagram with an opaque payload, used
// by the COLLECTD prefix, which carries no fixed fields.
func EncodeSimple(tag string, payload []byte) []byte {
	buf := append([]byte(tag), 0)
	return append(buf, payload...)
}

// EncodeCore builds the wire format for a CORE datagram: [tag(5)][gzipped
// flag byte][path bytes][\0]. gzipped records whether the handler wrote
// the file with the gzip sink adapter, since a future build may skip
// compression for small cores (spec §7 "the message carries the gzipped
// flag").
func EncodeCore(path string, gzipped bool) []byte {
	tag := append([]byte(TagCore), 0)
	buf := make([]byte, 0, len(tag)+1+len(path)+1)
	buf = append(buf, tag...)
	if gzipped {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, path...)
	buf = append(buf, 0)
	return buf
}

// DecodeCore parses a datagram previously built by EncodeCore.
func DecodeCore(msg []byte) (path string, gzipped bool, err error) {
	rest, ok := MatchTag(msg, TagCore)
	if !ok {
		return "", false, fmt.Errorf("ipcwire: not a CORE datagram")
	}
	if len(rest) < 1+1 {
		return "", false, fmt.Errorf("ipcwire: CORE datagram too short")
	}
	gzipped = rest[0] != 0
	body := rest[1:]
	if len(body) == 0 || body[len(body)-1] != 0 {
		return "", false, fmt.Errorf("ipcwire: CORE datagram missing trailing NUL")
	}
	return string(body[:len(body)-1]), gzipped, nil
}
