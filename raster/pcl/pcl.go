// Package pcl implements component K: the PCL (Printer Command
// Language) output back-end for monochrome laser-class devices.
// Grounded on bitmap/dither.go's patternDither/DBayer (an
// image/color.Color slice dithered via
// github.com/makeworld-the-better-one/dither/v2's ordered-pattern
// mapper, with github.com/disintegration/imaging's AdjustGamma as the
// pre-dither tone adjustment) and on raster.go's page/command framing
// shape. Ordered (as opposed to error-diffusion) dithering has no
// cross-row state, so this back-end applies it one row at a time
// exactly as it would a whole page, matching the row-streaming
// WriteLine contract the rest of this package uses.
package pcl

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/makeworld-the-better-one/dither/v2"

	"github.com/gopherprint/ippserver/raster"
)

// pageSizeTable maps a page's PostScript-points height to its PCL
// paper-size code.
var pageSizeTable = map[int]int{
	540:  80,
	595:  25,
	624:  90,
	649:  91,
	684:  81,
	709:  100,
	756:  1,
	792:  2,
	842:  26,
	1008: 3,
	1191: 27,
	1224: 6,
}

// a4HeightPoints is the PostScript-points height that gets the
// symmetric, 8"-print-area margin treatment instead of the flat
// quarter-inch left/right margin.
const a4HeightPoints = 842

// PageSizeCode looks up the PCL numeric page-size code for a page
// height in PostScript points, defaulting to letter (2) when unknown.
func PageSizeCode(heightPoints int) int {
	if code, ok := pageSizeTable[heightPoints]; ok {
		return code
	}
	return 2
}

// Backend writes a PCL byte stream to w, dithering each incoming
// gray-8 row to 1bpp with the fixed ordered matrix before PackBits
// compression.
type Backend struct {
	w             *bufio.Writer
	mediaWidthPt  int
	mediaHeightPt int
	lpi, cpi      int
	duplex        string
	tumble        bool
	gamma         float64
	ditherer      *dither.Ditherer

	pageWidthPx int
	y           int
	blankRows   int
}

// Options configures the PCL command preamble.
type Options struct {
	MediaWidthPoints  int
	MediaHeightPoints int
	LPI, CPI          int
	Duplex            string // one-sided | two-sided-long-edge | two-sided-short-edge
	Tumble            bool
	Gamma             float64 // pre-dither gamma adjustment, defaults to 3.5 matching bitmap.DBayer
}

// defaultGamma matches bitmap.DBayer's gamma for 64x64 Bayer ordered
// dithering (patternDither(dither.Bayer(64, 64, 1.0), 3.5)).
const defaultGamma = 3.5

// defaultLPI/defaultCPI are the fixed line/character pitch every PCL
// page emits on its front side.
const (
	defaultLPI = 12
	defaultCPI = 10
)

func NewBackend(w io.Writer, opts Options) *Backend {
	gamma := opts.Gamma
	if gamma == 0 {
		gamma = defaultGamma
	}
	lpi := opts.LPI
	if lpi == 0 {
		lpi = defaultLPI
	}
	cpi := opts.CPI
	if cpi == 0 {
		cpi = defaultCPI
	}
	mediaWidth := opts.MediaWidthPoints
	mediaHeight := opts.MediaHeightPoints
	if mediaHeight == 0 {
		mediaWidth, mediaHeight = 612, 792 // na_letter_8.5x11in
	}
	d := dither.NewDitherer([]color.Color{color.Black, color.White})
	d.Mapper = dither.Bayer(64, 64, 1.0)
	return &Backend{
		w:             bufio.NewWriter(w),
		mediaWidthPt:  mediaWidth,
		mediaHeightPt: mediaHeight,
		lpi:           lpi,
		cpi:           cpi,
		duplex:        opts.Duplex,
		tumble:        opts.Tumble,
		gamma:         gamma,
		ditherer:      d,
	}
}

var _ raster.Backend = (*Backend)(nil)

func (b *Backend) isDuplex() bool {
	return b.duplex == "two-sided-long-edge" || b.duplex == "two-sided-short-edge"
}

func (b *Backend) StartJob() error {
	fmt.Fprint(b.w, "\x1bE") // PCL reset
	return b.w.Flush()
}

// marginsPx returns the left/top margin, in pixels at the given
// resolution: top is always 1/6"; left is 1/4" except on A4-height
// media, which instead centers an 8"-wide print area.
func (b *Backend) marginsPx(res raster.Resolution) (left, top int) {
	top = res.Y / 6
	if b.mediaHeightPt == a4HeightPoints && b.mediaWidthPt > 0 {
		widthIn := float64(b.mediaWidthPt) / 72.0
		marginIn := (widthIn - 8.0) / 2
		if marginIn < 0 {
			marginIn = 0
		}
		left = int(marginIn * float64(res.X))
		return left, top
	}
	left = res.X / 4
	return left, top
}

// StartPage emits the front-side page setup (page size, orientation,
// pitch, duplex mode, top margin, perforation skip) only on the front
// of a sheet, the "print on back" sequence on the back, and always
// the resolution/dimension/position/compression-mode/start-graphics
// sequence every page needs.
func (b *Backend) StartPage(pageIndex, widthPixels, heightPixels int, res raster.Resolution, color bool, back bool) error {
	b.pageWidthPx = widthPixels
	b.y = 0
	b.blankRows = 0

	if !back {
		fmt.Fprintf(b.w, "\x1b&l%dA", PageSizeCode(b.mediaHeightPt)) // page size
		fmt.Fprint(b.w, "\x1b&l0O")                                  // portrait orientation
		fmt.Fprintf(b.w, "\x1b&l%dD", b.lpi)
		fmt.Fprintf(b.w, "\x1b(s%dH", b.cpi)
		switch b.duplex {
		case "two-sided-long-edge":
			fmt.Fprint(b.w, "\x1b&l1S")
		case "two-sided-short-edge":
			fmt.Fprint(b.w, "\x1b&l2S")
		default:
			fmt.Fprint(b.w, "\x1b&l0S")
		}
		_, topMargin := b.marginsPx(res)
		fmt.Fprintf(b.w, "\x1b&l%dE", topMargin) // top margin
		fmt.Fprint(b.w, "\x1b&l0L")              // perforation skip off
	} else {
		fmt.Fprint(b.w, "\x1b&a2G") // print on back side of the sheet
	}

	left, topMargin := b.marginsPx(res)
	fmt.Fprintf(b.w, "\x1b*t%dR", res.X)       // raster resolution
	fmt.Fprintf(b.w, "\x1b*r%dS", widthPixels) // raster width, pixels
	fmt.Fprintf(b.w, "\x1b*r%dT", heightPixels) // raster height, pixels
	fmt.Fprintf(b.w, "\x1b*p%dX", left)        // horizontal position
	fmt.Fprintf(b.w, "\x1b*p%dY", topMargin)   // vertical position
	fmt.Fprint(b.w, "\x1b*b2M")                // PackBits compression mode
	fmt.Fprint(b.w, "\x1b*r1A")                // start raster graphics
	if back && b.tumble {
		fmt.Fprint(b.w, "\x1b&l1O") // 180-degree orientation for tumbled back side
	}
	return b.w.Flush()
}

// WriteLine dithers one gray-8 row through the ordered Bayer mapper,
// packs the result to 1bpp MSB-first, and PackBits-compresses it
// before emitting the PCL compressed-raster-row command. An entirely
// white row (all bytes 0xFF) is never dithered or sent: it only bumps
// a pending blank-row counter, flushed as a single skip command the
// next time a non-blank row (or end of page) is seen.
func (b *Backend) WriteLine(line []byte) error {
	if isBlankRow(line) {
		b.blankRows++
		b.y++
		return nil
	}
	if err := b.flushBlankRows(); err != nil {
		return err
	}
	bits := b.ditherRow(line)
	packed := PackBits(bits)
	fmt.Fprintf(b.w, "\x1b*b%dW", len(packed))
	if _, err := b.w.Write(packed); err != nil {
		return err
	}
	b.y++
	return nil
}

// isBlankRow reports whether a gray-8 row is wholly white.
func isBlankRow(line []byte) bool {
	if len(line) == 0 || line[0] != 0xFF {
		return false
	}
	for _, c := range line {
		if c != 0xFF {
			return false
		}
	}
	return true
}

func (b *Backend) flushBlankRows() error {
	if b.blankRows == 0 {
		return nil
	}
	fmt.Fprintf(b.w, "\x1b*b%dY", b.blankRows)
	b.blankRows = 0
	return nil
}

// EndPage ends raster graphics and form-feeds to the next sheet,
// except on the front (odd) page of a duplex job, where the back side
// still needs to share the same physical sheet.
func (b *Backend) EndPage(odd bool) error {
	if err := b.flushBlankRows(); err != nil {
		return err
	}
	fmt.Fprint(b.w, "\x1b*rB") // end raster graphics
	if !(b.isDuplex() && odd) {
		fmt.Fprint(b.w, "\x0c") // form feed
	}
	return b.w.Flush()
}

func (b *Backend) EndJob() error {
	fmt.Fprint(b.w, "\x1bE")
	return b.w.Flush()
}

// ditherRow runs one gray-8 row through imaging.AdjustGamma then the
// Bayer pattern ditherer, packing the resulting black/white row to
// ceil(width/8) bytes MSB-first "ordered dither".
// b.y feeds the row's absolute position to the mapper via the row
// image's Y offset so the 64x64 pattern repeats correctly across bands.
func (b *Backend) ditherRow(gray []byte) []byte {
	width := len(gray)
	src := image.NewGray(image.Rect(0, b.y, width, b.y+1))
	copy(src.Pix, gray)

	adjusted := imaging.AdjustGamma(src, b.gamma)
	dithered := image.NewPaletted(image.Rect(0, b.y, width, b.y+1), []color.Color{color.Black, color.White})
	b.ditherer.Draw(dithered, dithered.Bounds(), adjusted, image.Point{})

	out := make([]byte, (width+7)/8)
	for x := 0; x < width; x++ {
		if dithered.ColorIndexAt(x, b.y) == 0 {
			out[x/8] |= 0x80 >> uint(x%8)
		}
	}
	return out
}
