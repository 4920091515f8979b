package raster

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red    = color.RGBA{R: 255, A: 255}
	green  = color.RGBA{G: 255, A: 255}
	blue   = color.RGBA{B: 255, A: 255}
	white  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gray   = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	orange = color.RGBA{R: 255, G: 128, A: 255}
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func rgba(c color.Color) color.RGBA {
	return color.RGBAModel.Convert(c).(color.RGBA)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{in: "jpg", want: JPEG},
		{in: "JPEG", want: JPEG},
		{in: "png", want: PNG},
		{in: "tif", err: true},
		{in: "", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.err {
				var fe *FormatError
				require.True(t, errors.As(err, &fe))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseKernel(t *testing.T) {
	k, err := ParseKernel("")
	require.NoError(t, err)
	assert.Equal(t, CatmullRom, k)
	k, err = ParseKernel("Nearest")
	require.NoError(t, err)
	assert.Equal(t, Nearest, k)
	_, err = ParseKernel("lanczos")
	require.Error(t, err)
}

func TestWriteRead_png(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx_0_0.png")
	require.NoError(t, Write(path, solid(4, 4, orange), PNG, DefaultQuality))

	got, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, image.Pt(4, 4), got.Bounds().Size())
	assert.Equal(t, orange, rgba(got.At(2, 3)))
}

func TestWriteRead_jpg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx_0_0.jpg")
	require.NoError(t, Write(path, solid(16, 16, gray), JPEG, 90))

	got, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, image.Pt(16, 16), got.Bounds().Size())
	c := rgba(got.At(8, 8))
	assert.InDelta(t, 128, int(c.R), 3)
	assert.InDelta(t, 128, int(c.G), 3)
	assert.InDelta(t, 128, int(c.B), 3)
}

func TestWrite_errors(t *testing.T) {
	dir := t.TempDir()
	require.Error(t, Write(filepath.Join(dir, "a.jpg"), solid(1, 1, red), JPEG, 0))
	require.Error(t, Write(filepath.Join(dir, "a.jpg"), solid(1, 1, red), JPEG, 101))
	var fe *FormatError
	require.ErrorAs(t, Write(filepath.Join(dir, "a.gif"), solid(1, 1, red), Format("gif"), 90), &fe)
	assert.NoFileExists(t, filepath.Join(dir, "a.gif"))
}

func TestRead_errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Read(filepath.Join(dir, "missing.png"))
	require.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "tx_0_0.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not a png"), 0o644))
	_, err = Read(garbage)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, garbage, fe.Path)
}

func TestComposite(t *testing.T) {
	got, err := Composite(solid(2, 2, red), solid(2, 2, green), solid(2, 2, blue), solid(2, 2, white))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 4, 4), got.Bounds())
	assert.Equal(t, red, got.RGBAAt(0, 0))
	assert.Equal(t, green, got.RGBAAt(3, 0))
	assert.Equal(t, blue, got.RGBAAt(0, 3))
	assert.Equal(t, white, got.RGBAAt(3, 3))
}

func TestComposite_mismatch(t *testing.T) {
	_, err := Composite(solid(2, 2, red), solid(2, 2, green), solid(3, 2, blue), solid(2, 2, white))
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
}

func TestResize(t *testing.T) {
	block, err := Composite(solid(4, 4, red), solid(4, 4, green), solid(4, 4, blue), solid(4, 4, white))
	require.NoError(t, err)

	got := Resize(block, 4, 4, Nearest)
	require.Equal(t, image.Rect(0, 0, 4, 4), got.Bounds())
	assert.Equal(t, red, got.RGBAAt(0, 0))
	assert.Equal(t, green, got.RGBAAt(3, 0))
	assert.Equal(t, blue, got.RGBAAt(0, 3))
	assert.Equal(t, white, got.RGBAAt(3, 3))

	uniform := Resize(solid(8, 8, gray), 4, 4, CatmullRom)
	c := uniform.RGBAAt(1, 2)
	assert.InDelta(t, 128, int(c.R), 1)
	assert.InDelta(t, 255, int(c.A), 1)
}

func TestCrop(t *testing.T) {
	block, err := Composite(solid(2, 2, red), solid(2, 2, green), solid(2, 2, blue), solid(2, 2, white))
	require.NoError(t, err)
	ne := Crop(block, image.Rect(2, 0, 4, 2))
	assert.Equal(t, image.Pt(2, 2), ne.Bounds().Size())
	assert.Equal(t, green, rgba(ne.At(ne.Bounds().Min.X, ne.Bounds().Min.Y)))
}

func TestCodec(t *testing.T) {
	c := Codec{Format: PNG, Quality: DefaultQuality, Kernel: Nearest}
	path := filepath.Join(t.TempDir(), "tx_0_0."+c.Ext())
	require.NoError(t, c.Write(path, solid(2, 2, red)))
	img, err := c.Read(path)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(1, 1), c.Resize(img, 1, 1).Bounds().Size())
}
