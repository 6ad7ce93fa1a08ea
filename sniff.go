package tgam

import (
	"bytes"
	"io"
)

// Peeker is implemented by readers that can return upcoming bytes without
// advancing, such as *bufio.Reader.
type Peeker interface {
	Peek(n int) ([]byte, error)
}

// CanRead reports whether r looks like the start of a TGAM file. The read
// position of r is left where it was. r must implement Peeker or io.Seeker;
// for any other reader CanRead returns false without reading anything.
func CanRead(r io.Reader) bool {
	var tmp [4]byte

	switch rr := r.(type) {
	case Peeker:
		b, err := rr.Peek(len(tmp))
		if err != nil || len(b) < len(tmp) {
			return false
		}
		copy(tmp[:], b)
	case io.ReadSeeker:
		pos, err := rr.Seek(0, io.SeekCurrent)
		if err != nil {
			return false
		}
		n, err := io.ReadFull(rr, tmp[:])
		if _, serr := rr.Seek(pos, io.SeekStart); serr != nil || err != nil || n < len(tmp) {
			return false
		}
	default:
		return false
	}

	return bytes.Equal(tmp[1:4], magic[:])
}
