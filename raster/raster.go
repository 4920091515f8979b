// Package raster reads, writes, composites and resamples tile images.
package raster

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"golang.org/x/image/draw"
)

// Format is an output image format, named after its file extension
type Format string

const (
	JPEG Format = "jpg"
	PNG  Format = "png"
)

const DefaultQuality = 95

// ParseFormat accepts jpg, jpeg and png (any case)
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	default:
		return "", &FormatError{Reason: fmt.Sprintf("unsupported format %q, expected jpg or png", s)}
	}
}

// Ext is the file extension without the dot
func (f Format) Ext() string {
	return string(f)
}

// Kernel names a resampling filter
type Kernel string

const (
	Nearest    Kernel = "nearest"
	Bilinear   Kernel = "bilinear"
	CatmullRom Kernel = "catmullrom"
)

// ParseKernel returns the named kernel. An empty name is CatmullRom.
func ParseKernel(s string) (Kernel, error) {
	switch k := Kernel(strings.ToLower(s)); k {
	case "":
		return CatmullRom, nil
	case Nearest, Bilinear, CatmullRom:
		return k, nil
	default:
		return "", fmt.Errorf("unknown resampling kernel %q, expected one of nearest, bilinear, catmullrom", s)
	}
}

func (k Kernel) interpolator() draw.Interpolator {
	switch k {
	case Nearest:
		return draw.NearestNeighbor
	case Bilinear:
		return draw.BiLinear
	default:
		return draw.CatmullRom
	}
}

// Read decodes a jpg or png image
func Read(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(bufio.NewReader(f), path)
}

// Decode decodes a jpg or png image from r. Source names r in errors.
func Decode(r io.Reader, source string) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, &FormatError{Path: source, Reason: fmt.Sprintf("could not decode: %v", err)}
	}
	return img, nil
}

// Write encodes img to path. Quality only applies to JPEG and must be in [1, 100].
func Write(path string, img image.Image, format Format, quality int) (err error) {
	if quality < 1 || quality > 100 {
		return fmt.Errorf("quality %d not in range [1, 100]", quality)
	}
	if format != JPEG && format != PNG {
		return &FormatError{Path: path, Reason: fmt.Sprintf("unsupported format %q", format)}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	switch format {
	case JPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case PNG:
		err = png.Encode(w, img)
	}
	if err != nil {
		return fmt.Errorf("could not encode %s: %w", path, err)
	}
	return w.Flush()
}

// Composite places four equally sized images in a 2x2 block:
//
//	| nw | ne |
//	|---------|
//	| sw | se |
func Composite(nw, ne, sw, se image.Image) (*image.RGBA, error) {
	size := nw.Bounds().Size()
	for _, img := range []image.Image{ne, sw, se} {
		if img.Bounds().Size() != size {
			return nil, &FormatError{Reason: fmt.Sprintf("cannot composite %v tile with %v tile", img.Bounds().Size(), size)}
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, 2*size.X, 2*size.Y))
	offsets := []image.Point{{0, 0}, {size.X, 0}, {0, size.Y}, {size.X, size.Y}}
	for i, img := range []image.Image{nw, ne, sw, se} {
		r := image.Rectangle{Min: offsets[i], Max: offsets[i].Add(size)}
		draw.Draw(dst, r, img, img.Bounds().Min, draw.Src)
	}
	return dst, nil
}

// Resize resamples img to width x height
func Resize(img image.Image, width, height int, kernel Kernel) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	kernel.interpolator().Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Crop returns the r part of img, sharing pixels when the image supports it
func Crop(img image.Image, r image.Rectangle) image.Image {
	if sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// Codec bundles the raster operations the pyramid builder needs with fixed output settings
type Codec struct {
	Format  Format
	Quality int
	Kernel  Kernel
}

func (c Codec) Read(path string) (image.Image, error) {
	return Read(path)
}

func (c Codec) Write(path string, img image.Image) error {
	return Write(path, img, c.Format, c.Quality)
}

func (c Codec) Composite(nw, ne, sw, se image.Image) (image.Image, error) {
	return Composite(nw, ne, sw, se)
}

func (c Codec) Resize(img image.Image, width, height int) image.Image {
	return Resize(img, width, height, c.Kernel)
}

// Ext is the file extension of written tiles
func (c Codec) Ext() string {
	return c.Format.Ext()
}
