// Package wire implements the Venus-protocol wire format: the 8-byte
// command frame header, the command-id registry, and the payload struct
// layouts for the command subset this core translates. All integers are
// little-endian, decoded explicitly rather than by punning a guest-owned
// byte slice through unsafe.Pointer, since the bytes are untrusted.
package wire

import "encoding/binary"

// HeaderSize is the fixed size of a command frame header in bytes.
const HeaderSize = 8

// MinFrameSize and MaxFrameSize bound a well-formed command_size field.
const (
	MinFrameSize = HeaderSize
	MaxFrameSize = 1 << 20 // 1 MiB
)

// Header is the 8-byte prefix of every command frame.
type Header struct {
	CommandID   uint32
	CommandSize uint32
}

// DecodeHeader reads a Header from the first HeaderSize bytes of buf.
// Callers must ensure len(buf) >= HeaderSize.
func DecodeHeader(buf []byte) Header {
	return Header{
		CommandID:   binary.LittleEndian.Uint32(buf[0:4]),
		CommandSize: binary.LittleEndian.Uint32(buf[4:8]),
	}
}

// EncodeHeader writes h into the first HeaderSize bytes of buf. Callers
// must ensure len(buf) >= HeaderSize.
func EncodeHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], h.CommandID)
	binary.LittleEndian.PutUint32(buf[4:8], h.CommandSize)
}

// PayloadSize returns the number of payload bytes a header declares,
// i.e. CommandSize minus the header itself. Callers must validate the
// header first; this does not re-check bounds.
func (h Header) PayloadSize() uint32 {
	return h.CommandSize - HeaderSize
}
