// Package imaging normalizes uploaded photos into bounded JPEG output.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"math"

	_ "image/png"

	"github.com/disintegration/gift"
	"github.com/dustin/go-humanize"
	_ "golang.org/x/image/webp"
)

// OutputExtension is the file extension matching the encoded output.
const OutputExtension = "jpg"

// ErrDecode reports malformed, truncated, or unsupported image input.
var ErrDecode = errors.New("decode image")

// Result is one transcoded image.
type Result struct {
	Data    []byte
	Quality int
	Width   int
	Height  int

	SourceFormat string
	SourceWidth  int
	SourceHeight int

	// Encodes counts JPEG encode passes, including the first.
	Encodes int
}

// OverBudget reports whether the floor was reached without meeting the size budget.
func (r Result) OverBudget(maxSizeBytes int) bool {
	return len(r.Data) > maxSizeBytes
}

// Transcoder decodes, bounds, and re-encodes images.
type Transcoder struct {
	opts   Options
	logger *slog.Logger
}

// NewTranscoder validates opts and returns a Transcoder.
func NewTranscoder(opts Options, logger *slog.Logger) (*Transcoder, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transcoder options: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcoder{opts: opts, logger: logger}, nil
}

// Options returns the configured bounds.
func (t *Transcoder) Options() Options {
	return t.opts
}

// Transcode decodes data, fits it inside the configured bounds, and encodes JPEG at the
// highest quality step whose output meets the size budget. When even the quality floor
// exceeds the budget, the floor result is returned without error.
func (t *Transcoder) Transcode(data []byte) (Result, error) {
	var zero Result
	src, format, err := t.decode(data)
	if err != nil {
		return zero, err
	}

	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	dstW, dstH := FitInside(srcW, srcH, t.opts.MaxWidth, t.opts.MaxHeight)

	// Every encode pass reads this raster, never a previously compressed output.
	raster := src
	if dstW != srcW || dstH != srcH {
		raster = resize(src, dstW, dstH)
	}

	quality := t.opts.InitialQuality
	out, err := encodeJPEG(raster, quality)
	if err != nil {
		return zero, err
	}
	encodes := 1

	for i := 0; i < t.opts.maxReductions() && len(out) > t.opts.MaxSizeBytes; i++ {
		quality -= t.opts.QualityStep
		if quality < t.opts.QualityFloor {
			quality = t.opts.QualityFloor
		}
		t.logger.Debug("image over size budget, lowering quality",
			"size", humanize.IBytes(uint64(len(out))),
			"budget", humanize.IBytes(uint64(t.opts.MaxSizeBytes)),
			"quality", quality,
		)
		out, err = encodeJPEG(raster, quality)
		if err != nil {
			return zero, err
		}
		encodes++
	}

	result := Result{
		Data:         out,
		Quality:      quality,
		Width:        dstW,
		Height:       dstH,
		SourceFormat: format,
		SourceWidth:  srcW,
		SourceHeight: srcH,
		Encodes:      encodes,
	}
	if result.OverBudget(t.opts.MaxSizeBytes) {
		t.logger.Warn("image exceeds size budget at quality floor",
			"size", humanize.IBytes(uint64(len(out))),
			"budget", humanize.IBytes(uint64(t.opts.MaxSizeBytes)),
			"quality", quality,
		)
	}
	return result, nil
}

func (t *Transcoder) decode(data []byte) (img image.Image, format string, err error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrDecode)
	}
	defer func() {
		if r := recover(); r != nil {
			img, format, err = nil, "", fmt.Errorf("%w: decoder panic: %v", ErrDecode, r)
		}
	}()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: invalid dimensions %dx%d", ErrDecode, cfg.Width, cfg.Height)
	}
	if limit := t.opts.MaxSourcePixels; limit > 0 && cfg.Width*cfg.Height > limit {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, limit)
	}

	img, format, err = image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, format, nil
}

// FitInside scales w x h down to fit within maxW x maxH, preserving aspect ratio.
// Dimensions already inside the bounds are returned unchanged.
func FitInside(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return clamp(nw, 1, maxW), clamp(nh, 1, maxH)
}

func resize(src image.Image, w, h int) image.Image {
	g := gift.New(gift.Resize(w, h, gift.LanczosResampling))
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg at quality %d: %w", quality, err)
	}
	return buf.Bytes(), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
