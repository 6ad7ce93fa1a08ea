package tgam

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
)

var (
	// ErrInsufficientData is returned when the stream ends before a header
	// or a row could be read in full.
	ErrInsufficientData = errors.New("tgam: insufficient data")
	// ErrFormat is returned when the magic bytes are not "AGT".
	ErrFormat = errors.New("tgam: not a TGAM image")
	// ErrInvalidDimension is returned for a zero width or height, or for
	// dimensions that don't fit the header.
	ErrInvalidDimension = errors.New("tgam: invalid dimension")
	// ErrWriteVerification is returned by Encode when the number of bytes
	// written for a payload doesn't match the size declared in the header.
	ErrWriteVerification = errors.New("tgam: payload size mismatch")
)

// IOError records a failure of the underlying stream.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return "tgam: " + e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	switch err {
	case nil:
		return nil
	case io.EOF, io.ErrUnexpectedEOF:
		return ErrInsufficientData
	default:
		return &IOError{Op: "read", Err: err}
	}
}

type decoder struct {
	r io.Reader

	start    int64
	seekable bool

	header *Header
	image  *image.NRGBA
}

// mark remembers the current position if r can seek so a rejected image can
// be rolled back.
func (d *decoder) mark() {
	if s, ok := d.r.(io.Seeker); ok {
		if pos, err := s.Seek(0, io.SeekCurrent); err == nil {
			d.start, d.seekable = pos, true
		}
	}
}

func (d *decoder) rewind(err error) error {
	if !d.seekable {
		return err
	}
	if _, serr := d.r.(io.Seeker).Seek(d.start, io.SeekStart); serr != nil {
		return fmt.Errorf("%w (%w)", err, &IOError{Op: "seek", Err: serr})
	}
	return err
}

func (d *decoder) readHeader() error {
	if d.header != nil {
		return nil
	}

	h, err := ReadHeader(d.r)
	if err != nil {
		return d.rewind(err)
	}
	if !h.validMagic() {
		return d.rewind(ErrFormat)
	}
	d.header = h

	return nil
}

func (d *decoder) decode(configOnly bool) error {
	if err := d.readHeader(); err != nil {
		return err
	}

	w, h, err := paddedExtent(int(d.header.Width), int(d.header.Height))
	if err != nil {
		return err
	}
	size := uint64(w) * uint64(h) * bytesPerPixel
	if size > math.MaxUint32 {
		return ErrInvalidDimension
	}
	// Refuse to allocate for a header that disagrees with itself
	if uint32(size) != d.header.ColorDataSize {
		return fmt.Errorf("%w: %dx%d needs %d color bytes, header declares %d", ErrInvalidDimension, w, h, size, d.header.ColorDataSize)
	}

	if configOnly {
		return nil
	}

	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	row := make([]byte, w*bytesPerPixel)

	for y := 0; y < h; y++ {
		if err := readFull(d.r, row); err != nil {
			return err
		}
		// BGRA on disk, RGBA in memory
		p := m.Pix[y*m.Stride : y*m.Stride+len(row)]
		for i := 0; i < len(row); i += bytesPerPixel {
			p[i+0] = row[i+2]
			p[i+1] = row[i+1]
			p[i+2] = row[i+0]
			p[i+3] = row[i+3]
		}
	}

	d.image = m

	return nil
}

func (d *decoder) config() image.Config {
	w, _ := CeilPow2(int(d.header.Width))
	h, _ := CeilPow2(int(d.header.Height))
	return image.Config{
		ColorModel: color.NRGBAModel,
		Width:      w,
		Height:     h,
	}
}

// DecodeNRGBA reads a TGAM image from r. The returned image always has the
// padded dimensions. Only the color payload is consumed; r is left
// positioned at the start of the mask payload.
//
// If r implements io.Seeker and the header is short or doesn't carry the
// magic bytes, r is returned to the position it had on entry.
func DecodeNRGBA(r io.Reader) (*image.NRGBA, error) {
	d := decoder{r: r}
	d.mark()
	if err := d.decode(false); err != nil {
		return nil, err
	}
	return d.image, nil
}

// Decode reads a TGAM image from r and returns it as an image.Image.
func Decode(r io.Reader) (image.Image, error) {
	m, err := DecodeNRGBA(r)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeConfig returns the color model and padded dimensions of a TGAM image
// without decoding the entire image.
func DecodeConfig(r io.Reader) (image.Config, error) {
	d := decoder{r: r}
	d.mark()
	if err := d.decode(true); err != nil {
		return image.Config{}, err
	}
	return d.config(), nil
}

// Reader decodes a single TGAM image from an underlying stream. The header is
// parsed at most once, so Header may be called before Decode without
// disturbing the stream, and repeated calls to Decode return the first
// result.
type Reader struct {
	d    decoder
	done bool
	err  error
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	tr := &Reader{d: decoder{r: r}}
	tr.d.mark()
	return tr
}

// Header returns the header of the image, reading it on first use.
func (r *Reader) Header() (*Header, error) {
	if err := r.d.readHeader(); err != nil {
		return nil, err
	}
	return r.d.header, nil
}

// Decode returns the decoded image.
func (r *Reader) Decode() (*image.NRGBA, error) {
	if !r.done {
		r.err = r.d.decode(false)
		r.done = true
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.d.image, nil
}
