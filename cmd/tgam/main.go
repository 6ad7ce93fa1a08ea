package main

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/bodgit/tgam"
	"github.com/bodgit/tgam/catalog"
	"github.com/bodgit/tgam/convert"
	"github.com/urfave/cli/v2"
)

const defaultDB = "tgam.db"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(io.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func convertOptions(c *cli.Context) convert.Options {
	return convert.Options{
		Workers:   c.Int("workers"),
		Fit:       c.Bool("fit"),
		Colors:    c.Int("colors"),
		Overwrite: c.Bool("overwrite"),
	}
}

var conversionFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "fit",
		Usage: "resample to the padded size instead of padding",
	},
	&cli.IntFlag{
		Name:  "colors",
		Usage: "reduce to at most `N` colors",
	},
}

func info(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer f.Close()

	if !tgam.CanRead(f) {
		return cli.NewExitError(tgam.ErrFormat, 1)
	}

	h, err := tgam.NewReader(f).Header()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	pw, _ := tgam.CeilPow2(int(h.Width))
	ph, _ := tgam.CeilPow2(int(h.Height))

	fmt.Printf("Size:        %dx%d\n", h.Width, h.Height)
	fmt.Printf("Padded:      %dx%d\n", pw, ph)
	fmt.Printf("Header:      %d bytes\n", h.ReadSize())
	fmt.Printf("Color data:  %d bytes\n", h.ColorDataSize)
	fmt.Printf("Mask data:   %d bytes\n", h.MaskDataSize)
	if h.HasResizeMask {
		fmt.Printf("Resize mask: %d\n", h.ResizeMask)
	}

	return nil
}

func decode(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	f, err := os.Open(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer f.Close()

	m, err := tgam.Decode(f)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	b := new(bytes.Buffer)
	if err := png.Encode(b, m); err != nil {
		return cli.NewExitError(err, 1)
	}

	if err := os.WriteFile(c.Args().Get(1), b.Bytes(), 0666); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func encode(c *cli.Context) error {
	if c.NArg() < 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	f, err := os.Open(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer f.Close()

	b := new(bytes.Buffer)
	if err := convert.New(nil, newLogger(c), convertOptions(c)).Encode(b, f); err != nil {
		return cli.NewExitError(err, 1)
	}

	if err := os.WriteFile(c.Args().Get(1), b.Bytes(), 0666); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func scan(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	logger := newLogger(c)

	db, err := catalog.New(c.String("db"), logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()

	if err := convert.New(db, logger, convertOptions(c)).Scan(c.Args().First()); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "tgam"
	app.Usage = "TGAM image conversion utility"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"TGAM_DB"},
			Value:   filepath.Join(cwd, defaultDB),
			Usage:   "path to catalog database",
		},
		&cli.IntFlag{
			Name:    "workers",
			EnvVars: []string{"TGAM_WORKERS"},
			Value:   4,
			Usage:   "number of concurrent conversions",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "info",
			Usage:     "Show the header of a TGAM file",
			ArgsUsage: "FILE",
			Action:    info,
		},
		{
			Name:      "decode",
			Usage:     "Convert a TGAM file to PNG",
			ArgsUsage: "FILE OUTPUT",
			Action:    decode,
		},
		{
			Name:      "encode",
			Usage:     "Convert an image to TGAM",
			ArgsUsage: "FILE OUTPUT",
			Flags:     conversionFlags,
			Action:    encode,
		},
		{
			Name:        "scan",
			Usage:       "Convert every image below a directory",
			Description: "Each image is written next to the original with a .tgam extension. Converted images are kept in the catalog database so identical sources are only encoded once.",
			ArgsUsage:   "DIRECTORY",
			Flags: append([]cli.Flag{
				&cli.BoolFlag{
					Name:  "overwrite",
					Usage: "replace existing TGAM files",
				},
			}, conversionFlags...),
			Action: scan,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
