package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePageSource struct {
	pages []image.Image
	i     int
}

func (s *fakePageSource) NextPage() (image.Image, bool, error) {
	if s.i >= len(s.pages) {
		return nil, false, nil
	}
	img := s.pages[s.i]
	s.i++
	return img, true, nil
}

type recordingBackend struct {
	startJobCalls int
	endJobCalls   int
	pages         []struct {
		width, height int
		back          bool
	}
	lines int
}

func (b *recordingBackend) StartJob() error { b.startJobCalls++; return nil }
func (b *recordingBackend) StartPage(pageIndex, widthPixels, heightPixels int, res Resolution, color bool, back bool) error {
	b.pages = append(b.pages, struct {
		width, height int
		back          bool
	}{widthPixels, heightPixels, back})
	return nil
}
func (b *recordingBackend) WriteLine(line []byte) error { b.lines++; return nil }
func (b *recordingBackend) EndPage(odd bool) error      { return nil }
func (b *recordingBackend) EndJob() error                { b.endJobCalls++; return nil }

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func baseOptions() Options {
	return Options{
		SupportedResolutions: []Resolution{{X: 300, Y: 300}},
		SupportedTypes:       []string{"sgray_8"},
		Copies:               1,
		Sides:                "one-sided",
	}
}

func TestEngine_Transform_OnePagePerCopy(t *testing.T) {
	src := &fakePageSource{pages: []image.Image{
		solidImage(4, 4, color.White),
		solidImage(4, 4, color.Black),
	}}
	backend := &recordingBackend{}
	opts := baseOptions()
	opts.Copies = 3

	err := NewEngine().Transform(src, backend, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.startJobCalls)
	assert.Equal(t, 1, backend.endJobCalls)
	assert.Len(t, backend.pages, 6) // 2 pages * 3 copies
	for _, p := range backend.pages {
		assert.False(t, p.back)
	}
}

func TestEngine_Transform_DuplexMarksOddPagesAsBack(t *testing.T) {
	src := &fakePageSource{pages: []image.Image{
		solidImage(2, 2, color.White),
		solidImage(2, 2, color.Black),
		solidImage(2, 2, color.White),
	}}
	backend := &recordingBackend{}
	opts := baseOptions()
	opts.Sides = "two-sided-long-edge"

	err := NewEngine().Transform(src, backend, opts)
	require.NoError(t, err)

	require.Len(t, backend.pages, 3)
	assert.False(t, backend.pages[0].back)
	assert.True(t, backend.pages[1].back)
	assert.False(t, backend.pages[2].back)
}

func TestEngine_Transform_DuplexOddPageCountPadsBlankBackPerExtraCopy(t *testing.T) {
	src := &fakePageSource{pages: []image.Image{
		solidImage(2, 2, color.White),
		solidImage(2, 2, color.Black),
		solidImage(2, 2, color.White),
	}}
	backend := &recordingBackend{}
	opts := baseOptions()
	opts.Sides = "two-sided-long-edge"
	opts.Copies = 2

	err := NewEngine().Transform(src, backend, opts)
	require.NoError(t, err)

	// 3 pages/copy + 1 padding back page/copy, 2 copies.
	require.Len(t, backend.pages, 8)
	assert.True(t, backend.pages[3].back)  // copy 1's padding back page
	assert.False(t, backend.pages[4].back) // start of copy 2's own pages
}

func TestEngine_Transform_DuplexOddPageCountSingleCopyNoPadding(t *testing.T) {
	src := &fakePageSource{pages: []image.Image{
		solidImage(2, 2, color.White),
		solidImage(2, 2, color.Black),
		solidImage(2, 2, color.White),
	}}
	backend := &recordingBackend{}
	opts := baseOptions()
	opts.Sides = "two-sided-long-edge"

	err := NewEngine().Transform(src, backend, opts)
	require.NoError(t, err)

	assert.Len(t, backend.pages, 3)
}

func TestEngine_Transform_EmptyDocumentStillOpensAndClosesTheJob(t *testing.T) {
	src := &fakePageSource{}
	backend := &recordingBackend{}

	err := NewEngine().Transform(src, backend, baseOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, backend.startJobCalls)
	assert.Equal(t, 1, backend.endJobCalls)
	assert.Empty(t, backend.pages)
}

func TestEngine_Transform_RejectsOutOfRangeCopies(t *testing.T) {
	src := &fakePageSource{pages: []image.Image{solidImage(2, 2, color.White)}}
	backend := &recordingBackend{}
	opts := baseOptions()
	opts.Copies = 10000

	err := NewEngine().Transform(src, backend, opts)
	assert.Error(t, err)
}

func TestFitToMedia_ScalesToMediaPixelDimensions(t *testing.T) {
	src := solidImage(100, 100, color.White)
	res := Resolution{X: 300, Y: 300}
	opts := Options{MediaWidthPoints: 612, MediaHeightPoints: 792} // na_letter at 72pt/in

	out := fitToMedia(src, res, opts)
	wantW := 612 * res.X / 72
	wantH := 792 * res.Y / 72
	assert.Equal(t, wantW, out.Bounds().Dx())
	assert.Equal(t, wantH, out.Bounds().Dy())
}

func TestFitToMedia_NoOpWhenMediaDimensionsAreUnset(t *testing.T) {
	src := solidImage(50, 50, color.White)
	out := fitToMedia(src, Resolution{X: 300, Y: 300}, Options{})
	assert.Equal(t, src, out)
}
