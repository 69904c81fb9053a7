package decode

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestJPEGSource_NextPageReturnsOnePageThenFalse(t *testing.T) {
	data := encodeJPEG(t, 8, 8)
	src := NewJPEGSource(bytes.NewReader(data))

	img, ok, err := src.NextPage()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())

	_, ok, err = src.NextPage()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJPEGSource_AlsoDecodesPNGViaBlankImport(t *testing.T) {
	data := encodePNG(t, 4, 4)
	src := NewJPEGSource(bytes.NewReader(data))

	img, ok, err := src.NextPage()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, img.Bounds().Dx())
}

func TestJPEGSource_MalformedDataReturnsError(t *testing.T) {
	src := NewJPEGSource(bytes.NewReader([]byte("not an image")))
	_, ok, err := src.NextPage()
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestDecodeJPEG(t *testing.T) {
	data := encodeJPEG(t, 2, 2)
	img, err := DecodeJPEG(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
}

func TestNewPDFSource_AlwaysFails(t *testing.T) {
	src, err := NewPDFSource(bytes.NewReader(nil))
	assert.Nil(t, src)
	assert.Error(t, err)
}

func TestPDFSource_NextPageFails(t *testing.T) {
	s := &PDFSource{}
	_, ok, err := s.NextPage()
	assert.False(t, ok)
	assert.Error(t, err)
}
