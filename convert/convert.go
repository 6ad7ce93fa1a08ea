/*
Package convert turns ordinary images into TGAM files, either one at a time or
by walking a directory tree with a pool of workers.
*/
package convert

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // register GIF sources
	_ "image/jpeg" // register JPEG sources
	_ "image/png"  // register PNG sources
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/tgam"
	"github.com/bodgit/tgam/catalog"
	"github.com/disintegration/gift"
	"github.com/ericpauley/go-quantize/quantize"
	_ "github.com/xfmoulet/qoi" // register QOI sources
)

// Extension is the file extension given to converted images.
const Extension = ".tgam"

const (
	defaultWorkers = 4
	maxColors      = 256
)

// Options control how images are converted.
type Options struct {
	// Workers is the number of files converted concurrently by Scan.
	Workers int
	// Fit resamples the image to its padded dimensions rather than
	// padding it with empty space.
	Fit bool
	// Colors, if non-zero, reduces the image to at most this many colors.
	Colors int
	// Overwrite replaces existing output files.
	Overwrite bool
}

// variant names the transformation applied by the options, used to keep
// differently converted copies of a source apart in the catalog.
func (o Options) variant() string {
	var parts []string
	if o.Fit {
		parts = append(parts, "fit")
	}
	if o.Colors > 0 {
		parts = append(parts, fmt.Sprintf("c%d", o.Colors))
	}
	return strings.Join(parts, "-")
}

// Converter converts images to TGAM.
type Converter struct {
	db     *catalog.DB
	logger *log.Logger
	opts   Options
}

// New returns a Converter. db may be nil in which case every image is encoded
// afresh.
func New(db *catalog.DB, logger *log.Logger, opts Options) *Converter {
	if opts.Workers < 1 {
		opts.Workers = defaultWorkers
	}
	return &Converter{
		db:     db,
		logger: logger,
		opts:   opts,
	}
}

// IsSource reports whether file has an extension the converter accepts.
func IsSource(file string) bool {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".qoi":
		return true
	}
	return false
}

// OutputName returns the name of the TGAM file written for file.
func OutputName(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + Extension
}

// Image applies the Fit and Colors options to m.
func (c *Converter) Image(m image.Image) image.Image {
	if c.opts.Fit {
		b := m.Bounds()
		w, _ := tgam.CeilPow2(b.Dx())
		h, _ := tgam.CeilPow2(b.Dy())
		if w != b.Dx() || h != b.Dy() {
			g := gift.New(gift.Resize(w, h, gift.LanczosResampling))
			dst := image.NewNRGBA(g.Bounds(b))
			g.Draw(dst, m)
			m = dst
		}
	}

	if c.opts.Colors > 0 {
		n := c.opts.Colors
		if n > maxColors {
			n = maxColors
		}
		q := quantize.MedianCutQuantizer{}
		b := m.Bounds()
		pm := image.NewPaletted(b, q.Quantize(make(color.Palette, 0, n), m))
		draw.Draw(pm, b, m, b.Min, draw.Src)
		m = pm
	}

	return m
}

// Encode converts the source image read from r and writes it to w in TGAM
// format.
func (c *Converter) Encode(w io.Writer, r io.Reader) error {
	m, _, err := image.Decode(r)
	if err != nil {
		return err
	}
	return tgam.Encode(w, c.Image(m))
}

func (c *Converter) fromCatalog(file string) ([]byte, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sha, err := catalog.Sum(f)
	if err != nil {
		return nil, err
	}
	key := catalog.Key(sha, c.opts.variant())

	b, err := c.db.Lookup(key)
	if err != nil {
		return nil, err
	}
	if b != nil {
		c.logger.Printf("Using catalog entry %s for \"%s\"\n", key, file)
		if _, err := c.db.Record(file, key); err != nil {
			return nil, err
		}
		return b, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := c.db.AddFunc(file, f, c.opts.variant(), c.Image); err != nil {
		return nil, err
	}

	return c.db.Lookup(key)
}

// File converts file and writes the result next to it. An existing output is
// left alone unless the Overwrite option is set.
func (c *Converter) File(file string) error {
	out := OutputName(file)

	if !c.opts.Overwrite {
		if _, err := os.Stat(out); err == nil {
			c.logger.Printf("Skipping \"%s\", \"%s\" exists\n", file, out)
			return nil
		} else if !os.IsNotExist(err) {
			return err
		}
	}

	var b []byte
	if c.db != nil {
		var err error
		if b, err = c.fromCatalog(file); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	} else {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()

		buf := new(bytes.Buffer)
		if err := c.Encode(buf, f); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		b = buf.Bytes()
	}

	if err := os.WriteFile(out, b, 0666); err != nil {
		return err
	}
	c.logger.Printf("Converted \"%s\" to \"%s\"\n", file, out)

	return nil
}
