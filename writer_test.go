package tgam

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeOpaqueImage(w, h int) *image.Paletted {
	p := make(color.Palette, 0, 256)
	for i := 0; i < 256; i++ {
		p = append(p, color.RGBA{uint8(i * 17), uint8(i * 43), uint8(i * 7), 0xff})
	}
	m := image.NewPaletted(image.Rect(0, 0, w, h), p)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetColorIndex(x, y, uint8((x*31)^(y*13)))
		}
	}
	return m
}

func makeAlphaImage(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 17) ^ (y * 31)),
				G: uint8((x * 43) + (y * 13)),
				B: uint8((x * 7) ^ (y * 11)),
				A: uint8(x * 255 / w),
			})
		}
	}
	return m
}

func TestEncodeOpaqueRoundTrip(t *testing.T) {
	src := makeOpaqueImage(100, 50)

	b := new(bytes.Buffer)
	require.NoError(t, Encode(b, src))
	assert.Equal(t, headerSize+128*64*4+128*64/8, b.Len())

	h, err := ReadHeader(bytes.NewReader(b.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint16(100), h.Width)
	assert.Equal(t, uint16(50), h.Height)
	assert.Equal(t, uint32(128*64*4), h.ColorDataSize)
	assert.Equal(t, uint32(128*64/8), h.MaskDataSize)
	assert.False(t, h.HasResizeMask)

	r := bytes.NewReader(b.Bytes())
	m, err := DecodeNRGBA(r)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 128, 64), m.Bounds())

	for y := 0; y < 64; y++ {
		for x := 0; x < 128; x++ {
			got := m.NRGBAAt(x, y)
			if x < 100 && y < 50 {
				assert.Equal(t, color.NRGBAModel.Convert(src.At(x, y)), got, "pixel (%d,%d)", x, y)
			} else {
				assert.Equal(t, color.NRGBA{0, 0, 0, 0xff}, got, "pixel (%d,%d)", x, y)
			}
		}
	}

	// The whole mask is opaque
	mask, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 128*64/8), mask)
}

func TestEncodeOpaquePNGRoundTrip(t *testing.T) {
	src := makeAlphaImage(100, 50)
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 0xff
	}
	p := new(bytes.Buffer)
	require.NoError(t, png.Encode(p, src))

	// An RGB PNG still decodes to an *image.RGBA
	in, err := png.Decode(p)
	require.NoError(t, err)
	require.IsType(t, &image.RGBA{}, in)

	b := new(bytes.Buffer)
	require.NoError(t, Encode(b, in))

	r := bytes.NewReader(b.Bytes())
	m, err := DecodeNRGBA(r)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 128, 64), m.Bounds())

	for y := 0; y < 64; y++ {
		for x := 0; x < 128; x++ {
			want := color.NRGBA{0, 0, 0, 0xff}
			if x < 100 && y < 50 {
				want = src.NRGBAAt(x, y)
			}
			assert.Equal(t, want, m.NRGBAAt(x, y), "pixel (%d,%d)", x, y)
		}
	}

	mask, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 128*64/8), mask)
}

func TestEncodeNarrowMask(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y += 2 {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, color.NRGBA{0xff, 0xff, 0xff, 0xff})
		}
	}

	b := new(bytes.Buffer)
	require.NoError(t, Encode(b, src))

	// Rows of four pixels share a byte
	assert.Equal(t, []byte{0xf0, 0xf0}, b.Bytes()[headerSize+4*4*4:])
}

func TestEncodeAlphaRoundTrip(t *testing.T) {
	src := makeAlphaImage(20, 9)

	b := new(bytes.Buffer)
	require.NoError(t, Encode(b, src))

	r := bytes.NewReader(b.Bytes())
	m, err := DecodeNRGBA(r)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 32, 16), m.Bounds())

	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			want := color.NRGBA{}
			if x < 20 && y < 9 {
				want = src.NRGBAAt(x, y)
			}
			assert.Equal(t, want, m.NRGBAAt(x, y), "pixel (%d,%d)", x, y)
		}
	}

	mask, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Len(t, mask, 32*16/8)
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			i := y*32 + x
			set := mask[i>>3]&(0x80>>uint(i&7)) != 0
			assert.Equal(t, m.NRGBAAt(x, y).A >= maskThreshold, set, "mask bit (%d,%d)", x, y)
		}
	}
}

func TestEncodeChannelOrderOnDisk(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 1))
	for x := 0; x < 8; x++ {
		src.SetNRGBA(x, 0, color.NRGBA{0x11, 0x22, 0x33, 0xff})
	}

	b := new(bytes.Buffer)
	require.NoError(t, Encode(b, src))
	assert.Equal(t, []byte{0x33, 0x22, 0x11, 0xff}, b.Bytes()[headerSize:headerSize+4])
	assert.Equal(t, []byte{0xff}, b.Bytes()[headerSize+8*4:])
}

func TestEncodeOffsetBounds(t *testing.T) {
	full := makeAlphaImage(24, 24)
	src := full.SubImage(image.Rect(8, 8, 24, 24)).(*image.NRGBA)

	b := new(bytes.Buffer)
	require.NoError(t, Encode(b, src))

	m, err := DecodeNRGBA(b)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), m.Bounds())
	assert.Equal(t, full.NRGBAAt(8, 8), m.NRGBAAt(0, 0))
	assert.Equal(t, full.NRGBAAt(23, 23), m.NRGBAAt(15, 15))
}

func TestEncodeMaskSize(t *testing.T) {
	for _, d := range [][2]int{{8, 1}, {1, 8}, {4, 2}, {3, 3}, {33, 17}} {
		b := new(bytes.Buffer)
		require.NoError(t, Encode(b, makeOpaqueImage(d[0], d[1])), "%dx%d", d[0], d[1])

		h, err := ReadHeader(bytes.NewReader(b.Bytes()))
		require.NoError(t, err)

		pw, _ := CeilPow2(d[0])
		ph, _ := CeilPow2(d[1])
		assert.Zero(t, pw*ph%8)
		assert.Equal(t, uint32(pw*ph/8), h.MaskDataSize)
		assert.Equal(t, headerSize+int(h.ColorDataSize)+int(h.MaskDataSize), b.Len())
	}
}

func TestEncodeTooFewPixels(t *testing.T) {
	// Fewer than eight padded pixels can't be described by the mask size
	b := new(bytes.Buffer)
	err := Encode(b, makeOpaqueImage(2, 2))
	assert.ErrorIs(t, err, ErrWriteVerification)
	assert.Zero(t, b.Len())
}

func TestEncodeInvalidDimension(t *testing.T) {
	tables := []image.Image{
		image.NewNRGBA(image.Rect(0, 0, 0, 8)),
		image.NewNRGBA(image.Rect(0, 0, 8, 0)),
		image.NewGray(image.Rect(0, 0, maxDimension+1, 1)),
	}

	for _, m := range tables {
		b := new(bytes.Buffer)
		assert.ErrorIs(t, Encode(b, m), ErrInvalidDimension)
		assert.Zero(t, b.Len())
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestEncodeWriteError(t *testing.T) {
	err := Encode(failWriter{}, makeOpaqueImage(8, 8))

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)
}

func TestHasAlphaChannel(t *testing.T) {
	r := image.Rect(0, 0, 1, 1)
	opaque := image.NewRGBA(r)
	opaque.SetRGBA(0, 0, color.RGBA{1, 2, 3, 0xff})
	tables := []struct {
		m    image.Image
		want bool
	}{
		{image.NewRGBA(r), true},
		{opaque, false},
		{image.NewNRGBA(r), true},
		{image.NewRGBA64(r), true},
		{image.NewAlpha(r), true},
		{image.NewGray(r), false},
		{image.NewCMYK(r), false},
		{image.NewYCbCr(r, image.YCbCrSubsampleRatio444), false},
		{makeOpaqueImage(1, 1), false},
		{image.NewPaletted(r, color.Palette{color.Transparent}), true},
	}

	for _, table := range tables {
		assert.Equal(t, table.want, hasAlphaChannel(table.m), "%T", table.m)
	}
}
