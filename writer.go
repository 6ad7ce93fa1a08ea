package tgam

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
)

type encoder struct {
	w   io.Writer
	buf bytes.Buffer
}

// pad copies m into the top-left corner of a w by h non-premultiplied canvas.
// Without an alpha channel the extra area is opaque black, otherwise it is
// transparent.
func pad(m image.Image, w, h int, alpha bool) *image.NRGBA {
	c := image.NewNRGBA(image.Rect(0, 0, w, h))
	if !alpha {
		draw.Draw(c, c.Bounds(), image.NewUniform(color.NRGBA{0, 0, 0, 0xff}), image.Point{}, draw.Src)
	}

	b := m.Bounds()
	if src, ok := m.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(c.Pix[y*c.Stride:], src.Pix[i:i+b.Dx()*bytesPerPixel])
		}
		return c
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c.SetNRGBA(x-b.Min.X, y-b.Min.Y, color.NRGBAModel.Convert(m.At(x, y)).(color.NRGBA))
		}
	}

	return c
}

func (e *encoder) encode(m image.Image, alpha bool) error {
	b := m.Bounds()
	if b.Dx() > maxDimension || b.Dy() > maxDimension {
		return ErrInvalidDimension
	}
	w, h, err := paddedExtent(b.Dx(), b.Dy())
	if err != nil {
		return err
	}
	if uint64(w)*uint64(h)*bytesPerPixel > math.MaxUint32 {
		return ErrInvalidDimension
	}

	c := pad(m, w, h, alpha)
	mask := alphaMask(c, !alpha)

	header := Header{
		Magic:         magic,
		Width:         uint16(b.Dx()),
		Height:        uint16(b.Dy()),
		ColorDataSize: uint32(w * h * bytesPerPixel),
		MaskDataSize:  uint32(w * h / 8),
		ResizeMask:    1,
	}

	hb, err := header.MarshalBinary()
	if err != nil {
		return err
	}
	e.buf.Grow(len(hb) + int(header.ColorDataSize) + len(mask))
	e.buf.Write(hb)

	// RGBA in memory, BGRA on disk
	var t int
	row := make([]byte, w*bytesPerPixel)
	for y := 0; y < h; y++ {
		p := c.Pix[y*c.Stride : y*c.Stride+len(row)]
		for i := 0; i < len(row); i += bytesPerPixel {
			row[i+0] = p[i+2]
			row[i+1] = p[i+1]
			row[i+2] = p[i+0]
			row[i+3] = p[i+3]
		}
		n, _ := e.buf.Write(row)
		t += n
	}

	q, _ := e.buf.Write(mask)

	if t != int(header.ColorDataSize) {
		return fmt.Errorf("%w: wrote %d color bytes, expected %d", ErrWriteVerification, t, header.ColorDataSize)
	}
	if q != int(header.MaskDataSize) {
		return fmt.Errorf("%w: wrote %d mask bytes, expected %d", ErrWriteVerification, q, header.MaskDataSize)
	}

	if _, err := e.w.Write(e.buf.Bytes()); err != nil {
		return &IOError{Op: "write", Err: err}
	}

	return nil
}

// Encode writes the Image m to w in TGAM format. The image is padded to power
// of two dimensions and the header records the original size. Nothing is
// written to w unless the whole file could be assembled.
func Encode(w io.Writer, m image.Image) error {
	e := encoder{w: w}
	return e.encode(m, hasAlphaChannel(m))
}
