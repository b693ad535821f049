// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging decodes uploaded images, applies EXIF orientation and
// produces the resized variants used on project cards, team photos and
// blog headers.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder

	"github.com/olegiv/agency-cms/internal/model"
)

// ErrUnsupportedFormat is returned for anything but JPEG, PNG, GIF and WebP.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// MaxPixels rejects decompression bombs before a full decode.
const MaxPixels = 50_000_000

// Image is a decoded, orientation-corrected upload.
type Image struct {
	img      image.Image
	Format   string // jpeg, png, gif or webp (as uploaded)
	MimeType string
	Width    int
	Height   int
	// Data is the re-encoded original without EXIF metadata.
	Data []byte
	// Ext is the extension of Data, including the dot.
	Ext string
}

// Variant is one resized rendition.
type Variant struct {
	Type   string
	Width  int
	Height int
	Data   []byte
}

// Processor handles image processing operations using pure Go libraries.
type Processor struct {
	variants map[string]model.ImageVariantConfig
}

// NewProcessor returns a Processor producing variants.
func NewProcessor(variants map[string]model.ImageVariantConfig) *Processor {
	if variants == nil {
		variants = model.ImageVariants
	}
	return &Processor{variants: variants}
}

// Decode reads an upload, rejects unsupported or oversized images and
// rotates it upright.
func (p *Processor) Decode(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	format := detectFormat(data)
	if format == "" {
		return nil, ErrUnsupportedFormat
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading image header: %w", err)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("image is too large: %dx%d", cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))

	outFormat := format
	if format == "webp" {
		// No pure Go WebP encoder; store as JPEG.
		outFormat = "jpeg"
	}
	encoded, err := encodeImage(img, outFormat, 95)
	if err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}

	b := img.Bounds()
	return &Image{
		img:      img,
		Format:   format,
		MimeType: formatToMimeType(outFormat),
		Width:    b.Dx(),
		Height:   b.Dy(),
		Data:     encoded,
		Ext:      formatExt(outFormat),
	}, nil
}

// Variants renders every configured size, in name order. Fit-mode variants
// larger than the source are skipped; crop-mode variants always exist.
func (p *Processor) Variants(src *Image) ([]Variant, error) {
	names := make([]string, 0, len(p.variants))
	for name := range p.variants {
		names = append(names, name)
	}
	sort.Strings(names)

	outFormat := strings.TrimPrefix(src.Ext, ".")
	var (
		out  []Variant
		errs []string
	)
	for _, name := range names {
		cfg := p.variants[name]
		if src.Width <= cfg.Width && src.Height <= cfg.Height && !cfg.Crop {
			continue
		}

		var resized image.Image
		if cfg.Crop {
			resized = imaging.Fill(src.img, cfg.Width, cfg.Height, imaging.Center, imaging.Lanczos)
		} else {
			resized = imaging.Fit(src.img, cfg.Width, cfg.Height, imaging.Lanczos)
		}

		data, err := encodeImage(resized, outFormat, cfg.Quality)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		b := resized.Bounds()
		out = append(out, Variant{Type: name, Width: b.Dx(), Height: b.Dy(), Data: data})
	}

	if len(errs) > 0 && len(out) == 0 {
		return nil, fmt.Errorf("all variants failed: %s", strings.Join(errs, "; "))
	}
	return out, nil
}

// DetectMimeType sniffs the MIME type of data.
func DetectMimeType(data []byte) string {
	contentType := http.DetectContentType(data)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return contentType
}

// readExifOrientation returns 1 (normal) if orientation cannot be read.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// applyOrientation undoes EXIF orientation 2-8.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// Explicitly reject TIFF (CVE-2023-36308 in disintegration/imaging)
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

func formatToMimeType(format string) string {
	switch format {
	case "png":
		return model.MimeTypePNG
	case "gif":
		return model.MimeTypeGIF
	case "webp":
		return model.MimeTypeWebP
	default:
		return model.MimeTypeJPEG
	}
}

func formatExt(format string) string {
	switch format {
	case "png", "gif":
		return "." + format
	default:
		return ".jpg"
	}
}

// BaseName strips directories and the extension from an upload filename.
func BaseName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
