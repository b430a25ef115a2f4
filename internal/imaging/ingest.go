// Package imaging turns a captured clipboard image into the bytes that are
// persisted: an optionally downsampled main image, a 64px thumbnail and the
// content hash of the main image's encoding.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	kerrors "github.com/berrythewa/clipkeep/internal/errors"
	"github.com/berrythewa/clipkeep/internal/types"
	"github.com/berrythewa/clipkeep/pkg/utils"
)

const (
	ThumbnailSize = 64
	JPEGQuality   = 90
)

// Result is an ingested image ready for the Content Store
type Result struct {
	Encoded   []byte
	Thumbnail []byte
	Format    types.Format
	Width     int
	Height    int
	Hash      string
}

// Decode parses clipboard image bytes (PNG, JPEG, BMP or TIFF)
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, kerrors.NewInvalidInput("image data is empty")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, kerrors.NewEncoding("decode clipboard image", err)
	}
	return img, nil
}

// Ingest downsamples img to at most maxAreaPixels (unless saveOriginal),
// builds the thumbnail and encodes both. Images with any transparent pixel
// are stored as PNG, everything else as JPEG.
func Ingest(img image.Image, maxAreaPixels int, saveOriginal bool) (*Result, error) {
	if img == nil {
		return nil, kerrors.NewInvalidInput("image is nil")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, kerrors.NewInvalidInput(fmt.Sprintf("image has zero dimension %dx%d", w, h))
	}

	alpha := hasAlpha(img)

	persisted := img
	if !saveOriginal && maxAreaPixels > 0 && w*h > maxAreaPixels {
		nw, nh := DownscaleSize(w, h, maxAreaPixels)
		persisted = resize(img, nw, nh, draw.CatmullRom)
	}
	pb := persisted.Bounds()

	tw, th := ThumbnailDims(pb.Dx(), pb.Dy())
	thumb := resize(persisted, tw, th, draw.ApproxBiLinear)

	var main bytes.Buffer
	format := types.FormatJPEG
	if alpha {
		format = types.FormatPNG
		if err := png.Encode(&main, persisted); err != nil {
			return nil, kerrors.NewEncoding("encode png", err)
		}
	} else {
		if err := jpeg.Encode(&main, persisted, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, kerrors.NewEncoding("encode jpeg", err)
		}
	}

	var thumbBuf bytes.Buffer
	if err := png.Encode(&thumbBuf, thumb); err != nil {
		return nil, kerrors.NewEncoding("encode thumbnail", err)
	}

	encoded := main.Bytes()
	return &Result{
		Encoded:   encoded,
		Thumbnail: thumbBuf.Bytes(),
		Format:    format,
		Width:     pb.Dx(),
		Height:    pb.Dy(),
		Hash:      utils.HashContent(encoded),
	}, nil
}

// DownscaleSize scales w x h by sqrt(maxArea / (w*h)), flooring each side
// and never going below one pixel
func DownscaleSize(w, h, maxArea int) (int, int) {
	scale := math.Sqrt(float64(maxArea) / (float64(w) * float64(h)))
	nw := int(math.Floor(float64(w) * scale))
	nh := int(math.Floor(float64(h) * scale))
	return max(nw, 1), max(nh, 1)
}

// ThumbnailDims fits w x h inside ThumbnailSize x ThumbnailSize, long edge
// exactly ThumbnailSize
func ThumbnailDims(w, h int) (int, int) {
	if w >= h {
		th := int(math.Round(float64(h) * ThumbnailSize / float64(w)))
		return ThumbnailSize, max(th, 1)
	}
	tw := int(math.Round(float64(w) * ThumbnailSize / float64(h)))
	return max(tw, 1), ThumbnailSize
}

func resize(src image.Image, w, h int, scaler draw.Scaler) image.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// hasAlpha reports whether any pixel is not fully opaque
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}
