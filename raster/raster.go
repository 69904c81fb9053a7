// Package raster implements component I: page-banded rendering of
// decoded pages into 8-bit gray or sRGB, dispatched to one of the PWG
// or PCL output back-ends. Grounded on raster.go's Raster/Rasteriser
// shape (packetization, thresholding, the isDocument auto-dither
// heuristic), generalized from thermal-label packet framing to full
// page banded rendering, and on
// original_source/tools/ipptransform.c for the resolution/color/
// media/sides/copies selection rules, which are ported verbatim (see
// ).
package raster

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

// ColorMode selects the pixel format the engine renders into, per
//  "Color choice".
type ColorMode int

const (
	ColorGray8 ColorMode = iota // sgray_8, 1 byte per pixel
	ColorRGB8                   // srgb_8, decoded as RGBX (4bpp) then packed to 3bpp on output
)

func (c ColorMode) BytesPerPixel() int {
	if c == ColorRGB8 {
		return 4
	}
	return 1
}

// SheetBack is the back-side transform keyword from PWG 5102.4,
//  "Back-side transforms".
type SheetBack int

const (
	SheetBackNormal SheetBack = iota
	SheetBackFlipped
	SheetBackManualTumble
	SheetBackRotated
)

func ParseSheetBack(s string) SheetBack {
	switch s {
	case "flipped":
		return SheetBackFlipped
	case "manual-tumble":
		return SheetBackManualTumble
	case "rotated":
		return SheetBackRotated
	default:
		return SheetBackNormal
	}
}

// PageSource is the page-decoder callback, deliberately abstract per
// : the PDF/JPEG decoder bindings themselves are not part
// of this spec, only how the raster pipeline consumes page images.
type PageSource interface {
	// NextPage returns the next decoded page, or ok=false when the
	// document is exhausted.
	NextPage() (img image.Image, ok bool, err error)
}

// Options carries the per-job rendering parameters
type Options struct {
	Color              bool
	DestinationFormat  string // image/pwg-raster | application/vnd.hp-pcl
	SupportedResolutions []Resolution
	SupportedTypes       []string // e.g. "srgb_8", "sgray_8"
	Sides                string   // one-sided | two-sided-long-edge | two-sided-short-edge
	Tumble               bool
	SheetBack            SheetBack
	PrintQuality         string // draft | normal | high
	PrinterResolution    string // "600x600dpi" or "600dpi"
	Copies               int
	MediaWidthPoints     int
	MediaHeightPoints    int
}

// Resolution is a supported-resolutions entry, XxY dpi.
type Resolution struct{ X, Y int }

func (r Resolution) String() string { return fmt.Sprintf("%dx%ddpi", r.X, r.Y) }

// ParseResolution parses "WxHdpi" or "Ndpi" (square)
func ParseResolution(s string) (Resolution, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "dpi")
	if x, y, ok := strings.Cut(s, "x"); ok {
		xi, err1 := strconv.Atoi(x)
		yi, err2 := strconv.Atoi(y)
		if err1 != nil || err2 != nil {
			return Resolution{}, fmt.Errorf("invalid resolution %q", s)
		}
		return Resolution{X: xi, Y: yi}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Resolution{}, fmt.Errorf("invalid resolution %q", s)
	}
	return Resolution{X: n, Y: n}, nil
}

// ChooseResolution implements  "Resolution choice":
// explicit printer-resolution if supported; else a print-quality pick
// from the supported list (draft -> lowest, normal -> middle, high ->
// highest); else the middle of the supported set.
func ChooseResolution(opts Options) (Resolution, error) {
	if opts.PrinterResolution != "" {
		r, err := ParseResolution(opts.PrinterResolution)
		if err == nil && containsResolution(opts.SupportedResolutions, r) {
			return r, nil
		}
	}
	if len(opts.SupportedResolutions) == 0 {
		return Resolution{}, fmt.Errorf("no supported resolutions")
	}
	sorted := append([]Resolution(nil), opts.SupportedResolutions...)
	sortResolutions(sorted)

	switch opts.PrintQuality {
	case "draft":
		return sorted[0], nil
	case "high":
		return sorted[len(sorted)-1], nil
	default:
		return sorted[len(sorted)/2], nil
	}
}

func containsResolution(list []Resolution, r Resolution) bool {
	for _, c := range list {
		if c == r {
			return true
		}
	}
	return false
}

func sortResolutions(list []Resolution) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j-1].X*list[j-1].Y > list[j].X*list[j].Y; j-- {
			list[j-1], list[j] = list[j], list[j-1]
		}
	}
}

// ChooseColorMode implements  "Color choice".
func ChooseColorMode(opts Options) ColorMode {
	if opts.Color && containsString(opts.SupportedTypes, "srgb_8") {
		return ColorRGB8
	}
	return ColorGray8
}

func containsString(list []string, s string) bool {
	for _, c := range list {
		if c == s {
			return true
		}
	}
	return false
}

// ChooseCopies validates the copies count: 1-9999, otherwise fail
// setup.
func ChooseCopies(copies int) (int, error) {
	if copies < 1 || copies > 9999 {
		return 0, fmt.Errorf("copies %d out of range [1,9999]", copies)
	}
	return copies, nil
}

// maxBandBytes bounds a single band buffer's memory.
const maxBandBytes = 16 * 1024 * 1024

// BandHeight computes band_height: max(1,
// min(page_height, floor(16777216 / (width*bpp)))).
func BandHeight(pageHeight, width, bpp int) int {
	if width <= 0 || bpp <= 0 {
		return 1
	}
	h := maxBandBytes / (width * bpp)
	if h > pageHeight {
		h = pageHeight
	}
	if h < 1 {
		h = 1
	}
	return h
}

// Backend is the five-call contract shared by the PWG and PCL output
// back-ends.
type Backend interface {
	StartJob() error
	StartPage(pageIndex int, widthPixels, heightPixels int, res Resolution, color bool, back bool) error
	WriteLine(line []byte) error
	EndPage(odd bool) error
	EndJob() error
}

// grayRow extracts one gray-8 row from a page image, applying the
// back-side affine (flip/rotate) by remapping the source coordinate,
// "apply page transform ... when duplex-back, the
// back-side affine".
func grayRow(img image.Image, y, width int, back SheetBack, tumble bool) []byte {
	bounds := img.Bounds()
	out := make([]byte, width)
	for x := 0; x < width; x++ {
		sx, sy := backTransform(x, y, width, bounds.Dy(), back, tumble)
		if sx < bounds.Min.X || sx >= bounds.Max.X || sy < bounds.Min.Y || sy >= bounds.Max.Y {
			out[x] = 0xFF
			continue
		}
		out[x] = grayOf(img.At(sx, sy))
	}
	return out
}

func grayOf(c color.Color) byte {
	if g, ok := c.(color.Gray); ok {
		return g.Y
	}
	r, g, b, _ := c.RGBA()
	y := (299*r + 587*g + 114*b) / 1000
	return byte(y >> 8)
}

// backTransform maps an output (x,y) to the source image coordinate
// under the four PWG 5102.4 back-side transforms: normal is the
// identity; flipped mirrors along the axis tumble selects; rotated
// and manual-tumble both apply a 180 degree rotation ('s
// own wording: "manual-tumble/rotated -> 180 rotation").
func backTransform(x, y, width, height int, back SheetBack, tumble bool) (int, int) {
	switch back {
	case SheetBackFlipped:
		if tumble {
			return x, height - 1 - y
		}
		return width - 1 - x, y
	case SheetBackManualTumble, SheetBackRotated:
		return width - 1 - x, height - 1 - y
	default:
		return x, y
	}
}

// RGBRow extracts one RGB (3 bytes/pixel) row from an RGBX/RGBA
// source image, packing RGBX -> RGB in place
// "first packing RGBX->RGB in place when color".
func RGBRow(img image.Image, y, width int, back SheetBack, tumble bool) []byte {
	bounds := img.Bounds()
	out := make([]byte, width*3)
	for x := 0; x < width; x++ {
		sx, sy := backTransform(x, y, width, bounds.Dy(), back, tumble)
		var r, g, b uint32 = 0xFFFF, 0xFFFF, 0xFFFF
		if sx >= bounds.Min.X && sx < bounds.Max.X && sy >= bounds.Min.Y && sy < bounds.Max.Y {
			r, g, b, _ = img.At(sx, sy).RGBA()
		}
		out[x*3] = byte(r >> 8)
		out[x*3+1] = byte(g >> 8)
		out[x*3+2] = byte(b >> 8)
	}
	return out
}
