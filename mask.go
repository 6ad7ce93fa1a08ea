package tgam

import (
	"image"
	"image/color"
)

// Alpha at or above this level sets the bit in the mask.
const maskThreshold = 0x80

func hasAlphaChannel(m image.Image) bool {
	// png.Decode returns *image.RGBA even for RGB files
	if o, ok := m.(interface{ Opaque() bool }); ok && o.Opaque() {
		return false
	}

	switch cm := m.ColorModel().(type) {
	case color.Palette:
		for _, c := range cm {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	default:
		switch cm {
		case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
			return true
		}
		return false
	}
}

// alphaMask packs one bit per pixel of m, most significant bit first. Rows
// follow on from each other so they are byte aligned whenever the width is a
// multiple of eight. If opaque is set every bit is set regardless of m.
func alphaMask(m *image.NRGBA, opaque bool) []byte {
	b := m.Bounds()
	n := b.Dx() * b.Dy()
	mask := make([]byte, (n+7)>>3)

	if opaque {
		for i := range mask {
			mask[i] = 0xff
		}
		return mask
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if m.NRGBAAt(x, y).A >= maskThreshold {
				mask[i>>3] |= 0x80 >> uint(i&7)
			}
			i++
		}
	}

	return mask
}
