package tgam

import (
	"encoding/binary"
	"io"
)

// Header is the fixed record at the start of every TGAM file.
type Header struct {
	// ResizeMaskFlag is the first byte of the file. When it is 109 the
	// header is followed by a resize mask byte.
	ResizeMaskFlag uint8
	// Magic should always be "AGT". It is not checked by ReadHeader.
	Magic [3]byte
	// Width and Height are the dimensions before padding.
	Width, Height uint16
	// ColorDataSize and MaskDataSize are the lengths in bytes of the
	// color and mask payloads.
	ColorDataSize, MaskDataSize uint32
	// ResizeMask is only read when ResizeMaskFlag is 109, which is noted
	// by HasResizeMask. The encoder writes it whenever it isn't 1.
	ResizeMask    uint8
	HasResizeMask bool
}

// Size returns the number of bytes MarshalBinary produces for the header. For
// a header returned by ReadHeader use ReadSize instead.
func (h *Header) Size() int {
	if h.ResizeMask != 1 {
		return headerSize + 1
	}
	return headerSize
}

// ReadSize returns the number of bytes ReadHeader consumed for the header.
func (h *Header) ReadSize() int {
	if h.HasResizeMask {
		return headerSize + 1
	}
	return headerSize
}

// ReadHeader reads a Header from r. It consumes 17 bytes if the resize mask
// flag is 109, otherwise 16.
func ReadHeader(r io.Reader) (*Header, error) {
	var tmp [headerSize]byte
	if err := readFull(r, tmp[:]); err != nil {
		return nil, err
	}

	h := &Header{
		ResizeMaskFlag: tmp[0],
		Width:          binary.LittleEndian.Uint16(tmp[4:]),
		Height:         binary.LittleEndian.Uint16(tmp[6:]),
		ColorDataSize:  binary.LittleEndian.Uint32(tmp[8:]),
		MaskDataSize:   binary.LittleEndian.Uint32(tmp[12:]),
	}
	copy(h.Magic[:], tmp[1:4])

	if h.ResizeMaskFlag == resizeMaskFlag {
		if err := readFull(r, tmp[:1]); err != nil {
			return nil, err
		}
		h.ResizeMask = tmp[0]
		h.HasResizeMask = true
	}

	return h, nil
}

// MarshalBinary encodes the header. If ResizeMask isn't 1 the flag byte is
// forced to 109 and the resize mask byte is appended, otherwise the 16 byte
// form is written with ResizeMaskFlag as is. The decoder only looks at the
// flag so the two directions are not symmetric.
func (h *Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, headerSize, headerSize+1)
	b[0] = h.ResizeMaskFlag
	copy(b[1:4], h.Magic[:])
	binary.LittleEndian.PutUint16(b[4:], h.Width)
	binary.LittleEndian.PutUint16(b[6:], h.Height)
	binary.LittleEndian.PutUint32(b[8:], h.ColorDataSize)
	binary.LittleEndian.PutUint32(b[12:], h.MaskDataSize)

	if h.ResizeMask != 1 {
		b[0] = resizeMaskFlag
		b = append(b, h.ResizeMask)
	}

	return b, nil
}

func (h *Header) validMagic() bool {
	return h.Magic == magic
}
