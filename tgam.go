/*
Package tgam implements a TGAM image decoder and encoder.

A TGAM file is a 16 byte little-endian header, optionally followed by one
extra resize mask byte, then the raw color payload and finally a one bit per
pixel alpha mask. Both payloads cover the image padded up to power of two
dimensions; the header records the unpadded width and height.

The header is laid out as follows:

	offset size field
	0      1    resize mask flag, 109 means one trailing resize mask byte
	1      3    magic, "AGT"
	4      2    width
	6      2    height
	8      4    color payload size, paddedWidth * paddedHeight * 4
	12     4    mask payload size, paddedWidth * paddedHeight / 8
	16     1    resize mask byte, only when the flag is 109

Each pixel of the color payload is stored as B, G, R, A. The mask payload is
packed most significant bit first in row-major order as one continuous run of
bits, so rows only start on a byte boundary when the padded width is at least
eight. Narrower images share bytes between rows. The decoder only uses
the color payload as the alpha channel already travels with every pixel; the
mask is written for the benefit of other consumers.

There is no compression.
*/
package tgam

import "image"

const (
	headerSize     = 16
	resizeMaskFlag = 109
	bytesPerPixel  = 4
	maxDimension   = 1<<16 - 1
)

var magic = [3]byte{'A', 'G', 'T'}

func init() {
	image.RegisterFormat("tgam", "?AGT", Decode, DecodeConfig)
}
