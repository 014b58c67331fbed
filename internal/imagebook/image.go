package imagebook

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

const (
	DefaultMaxWidth    = 1200
	DefaultJPEGQuality = 85
	DefaultMaxFileSize = 1 << 20
	minJPEGQuality     = 60
	maxPixels          = 100 * 1000 * 1000
)

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image dimensions exceed limit")
)

// OptimizerOptions configures an Optimizer. Zero values use the defaults.
type OptimizerOptions struct {
	MaxWidth    int
	JPEGQuality int
	MaxFileSize int
}

// Optimizer shrinks and re-encodes clipboard images for e-readers.
type Optimizer struct {
	maxWidth    int
	jpegQuality int
	maxFileSize int
}

// Image is an optimized image ready to be packaged.
// Warning is non-empty when the size limit could not be met; Data is still usable.
type Image struct {
	Data      []byte
	Width     int
	Height    int
	MediaType string
	Ext       string
	Warning   string
}

// NewOptimizer creates an Optimizer.
func NewOptimizer(opts OptimizerOptions) *Optimizer {
	o := &Optimizer{
		maxWidth:    opts.MaxWidth,
		jpegQuality: opts.JPEGQuality,
		maxFileSize: opts.MaxFileSize,
	}
	if o.maxWidth <= 0 {
		o.maxWidth = DefaultMaxWidth
	}
	if o.jpegQuality <= 0 {
		o.jpegQuality = DefaultJPEGQuality
	}
	if o.jpegQuality > 100 {
		o.jpegQuality = 100
	}
	if o.maxFileSize <= 0 {
		o.maxFileSize = DefaultMaxFileSize
	}
	return o
}

// Optimize decodes data, scales it down to the configured width and
// re-encodes it. Images with transparency stay PNG, everything else becomes
// JPEG. Animated GIFs pass through unchanged.
func (o *Optimizer) Optimize(data []byte) (Image, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/png"), mt.Is("image/jpeg"), mt.Is("image/gif"):
	default:
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, mt.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image header: %w", err)
	}
	if uint64(cfg.Width)*uint64(cfg.Height) > maxPixels {
		return Image{}, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	if mt.Is("image/gif") && isAnimatedGIF(data) {
		return Image{Data: data, Width: cfg.Width, Height: cfg.Height, MediaType: "image/gif", Ext: "gif"}, nil
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode image: %w", err)
	}

	img := src
	if src.Bounds().Dx() > o.maxWidth {
		img = imaging.Resize(src, o.maxWidth, 0, imaging.Lanczos)
	}

	out := Image{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	if hasAlpha(img) {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return Image{}, fmt.Errorf("failed to encode png: %w", err)
		}
		out.Data, out.MediaType, out.Ext = buf.Bytes(), "image/png", "png"
		if len(out.Data) > o.maxFileSize {
			out.Warning = fmt.Sprintf("png size %d exceeds limit %d bytes", len(out.Data), o.maxFileSize)
		}
		return out, nil
	}

	jpegData, quality, err := o.encodeJPEG(img)
	if err != nil {
		return Image{}, err
	}
	out.Data, out.MediaType, out.Ext = jpegData, "image/jpeg", "jpg"
	if len(out.Data) > o.maxFileSize {
		out.Warning = fmt.Sprintf("jpeg size %d exceeds limit %d bytes at quality %d", len(out.Data), o.maxFileSize, quality)
	}
	return out, nil
}

// encodeJPEG lowers the quality in steps of 5 until the result fits the size
// limit or the minimum quality is reached.
func (o *Optimizer) encodeJPEG(img image.Image) ([]byte, int, error) {
	var data []byte
	quality := o.jpegQuality
	for {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, 0, fmt.Errorf("failed to encode jpeg at quality %d: %w", quality, err)
		}
		data = buf.Bytes()
		if len(data) <= o.maxFileSize || quality-5 < minJPEGQuality {
			return data, quality, nil
		}
		quality -= 5
	}
}

func isAnimatedGIF(data []byte) bool {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	return err == nil && len(g.Image) > 1
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}
