// Package decode adapts document formats into raster.PageSource.
// Grounded on a root main.go that decodes a single image via stdlib
// image.Decode (registering image/jpeg and image/png blank imports)
// before handing it to the printer — generalized here to a dedicated
// single-page adapter per supported format.
package decode

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"

	_ "image/png"
)

// JPEGSource is a raster.PageSource over a single JPEG (or PNG, via
// the blank-imported decoder) image: one page, decoded on first call
// to NextPage and nil thereafter.
type JPEGSource struct {
	r    io.Reader
	done bool
}

// NewJPEGSource wraps r as a single-page document source.
func NewJPEGSource(r io.Reader) *JPEGSource {
	return &JPEGSource{r: r}
}

// NextPage implements raster.PageSource.
func (s *JPEGSource) NextPage() (image.Image, bool, error) {
	if s.done {
		return nil, false, nil
	}
	s.done = true
	img, _, err := image.Decode(s.r)
	if err != nil {
		return nil, false, fmt.Errorf("decode: failed to decode image: %w", err)
	}
	return img, true, nil
}

// DecodeJPEG decodes a single JPEG image directly, used by callers
// that already know the format and don't need the generic
// image.Decode format-sniffing path (e.g. a thumbnail preview).
func DecodeJPEG(r io.Reader) (image.Image, error) {
	return jpeg.Decode(r)
}

// PDFSource is an intentionally unimplemented raster.PageSource for
// application/pdf documents. No PDF library appears anywhere in the
// retrieved example pack, so rather than fabricate a dependency this
// adapter reports the gap honestly; wiring a real PDF renderer in is
// left to a future build-tag-gated adapter.
type PDFSource struct{}

// NewPDFSource always returns an error: see the PDFSource doc comment.
func NewPDFSource(io.Reader) (*PDFSource, error) {
	return nil, fmt.Errorf("decode: application/pdf is not supported by this build (no PDF library available)")
}

func (s *PDFSource) NextPage() (image.Image, bool, error) {
	return nil, false, fmt.Errorf("decode: PDFSource is a stub, see NewPDFSource")
}
