package raster

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Engine drives PageSource -> Backend: resolve the
// job's rendering parameters once, then for every page and every
// copy, band the page into chunks bounded by BandHeight and write
// each band's rows through the backend.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Transform renders every page of src through backend, honoring
// copies and the two-sided back-side transform
func (e *Engine) Transform(src PageSource, backend Backend, opts Options) error {
	res, err := ChooseResolution(opts)
	if err != nil {
		return fmt.Errorf("raster: %w", err)
	}
	color := ChooseColorMode(opts) == ColorRGB8
	copies, err := ChooseCopies(opts.Copies)
	if err != nil {
		return fmt.Errorf("raster: %w", err)
	}

	if err := backend.StartJob(); err != nil {
		return fmt.Errorf("raster: start job: %w", err)
	}

	type page struct {
		img   image.Image
		index int
	}
	var pages []page
	for i := 0; ; i++ {
		img, ok, err := src.NextPage()
		if err != nil {
			return fmt.Errorf("raster: decode page %d: %w", i, err)
		}
		if !ok {
			break
		}
		pages = append(pages, page{img: img, index: i})
	}
	if len(pages) == 0 {
		return backend.EndJob()
	}

	duplex := opts.Sides == "two-sided-long-edge" || opts.Sides == "two-sided-short-edge"

	for copy := 0; copy < copies; copy++ {
		for _, p := range pages {
			back := duplex && p.index%2 == 1
			sheetBack := SheetBackNormal
			if back {
				sheetBack = opts.SheetBack
			}
			img := fitToMedia(p.img, res, opts)
			if err := e.renderPage(img, backend, res, color, back, sheetBack, opts.Tumble); err != nil {
				return fmt.Errorf("raster: page %d copy %d: %w", p.index, copy, err)
			}
		}
		// A duplex job with an odd page count leaves the last sheet's back
		// side unprinted. Once more than one copy is requested, pad a
		// blank back page so the next copy starts on a fresh sheet instead
		// of sharing the previous copy's last sheet.
		if duplex && len(pages)%2 == 1 && copies > 1 {
			last := pages[len(pages)-1]
			blank := image.NewGray(last.img.Bounds())
			for i := range blank.Pix {
				blank.Pix[i] = 0xFF
			}
			img := fitToMedia(blank, res, opts)
			if err := e.renderPage(img, backend, res, color, true, opts.SheetBack, opts.Tumble); err != nil {
				return fmt.Errorf("raster: blank back page copy %d: %w", copy, err)
			}
		}
	}
	return backend.EndJob()
}

// fitToMedia scales img to the pixel dimensions the chosen resolution
// and media size imply (media points, 1/72 inch, times dpi), so a
// source document whose own pixel dimensions don't already match the
// target page renders at the right physical size instead of being
// clipped or left with unintended white space. Grounded on the
// x/image/draw import path the domain survey flagged on go-mfp/
// rusq-thermoprint's own use of golang.org/x/image for compositing;
// CatmullRom is used (rather than the cheaper NearestNeighbor) since
// photographic content is the common case for a PDL preview/raster
// pipeline, matching bitmap/dither.go's own preference for quality
// pre-processing (imaging.AdjustGamma) before the final bilevel
// reduction.
func fitToMedia(img image.Image, res Resolution, opts Options) image.Image {
	if opts.MediaWidthPoints == 0 || opts.MediaHeightPoints == 0 {
		return img
	}
	targetW := opts.MediaWidthPoints * res.X / 72
	targetH := opts.MediaHeightPoints * res.Y / 72
	if targetW <= 0 || targetH <= 0 {
		return img
	}
	bounds := img.Bounds()
	if bounds.Dx() == targetW && bounds.Dy() == targetH {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func (e *Engine) renderPage(img image.Image, backend Backend, res Resolution, color, back bool, sheetBack SheetBack, tumble bool) error {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	bpp := ColorGray8.BytesPerPixel()
	if color {
		bpp = 3
	}
	band := BandHeight(height, width, bpp)

	if err := backend.StartPage(0, width, height, res, color, back); err != nil {
		return fmt.Errorf("start page: %w", err)
	}

	for y0 := 0; y0 < height; y0 += band {
		y1 := y0 + band
		if y1 > height {
			y1 = height
		}
		for y := y0; y < y1; y++ {
			var row []byte
			if color {
				row = RGBRow(img, y, width, sheetBack, tumble)
			} else {
				row = grayRow(img, y, width, sheetBack, tumble)
			}
			if err := backend.WriteLine(row); err != nil {
				return fmt.Errorf("write line %d: %w", y, err)
			}
		}
	}
	return backend.EndPage(!back)
}
