package imaging

import "fmt"

const (
	DefaultMaxWidth        = 1920
	DefaultMaxHeight       = 1080
	DefaultMaxSizeBytes    = 2 << 20 // 2 MiB
	DefaultInitialQuality  = 90
	DefaultQualityFloor    = 10
	DefaultQualityStep     = 10
	DefaultMaxSourcePixels = 64_000_000
)

// Options bounds the transcoder output.
type Options struct {
	MaxWidth       int
	MaxHeight      int
	MaxSizeBytes   int
	InitialQuality int
	QualityFloor   int
	QualityStep    int

	// MaxSourcePixels rejects inputs whose decoded raster would exceed this many pixels.
	MaxSourcePixels int
}

// DefaultOptions returns the production transcoding bounds.
func DefaultOptions() Options {
	return Options{
		MaxWidth:        DefaultMaxWidth,
		MaxHeight:       DefaultMaxHeight,
		MaxSizeBytes:    DefaultMaxSizeBytes,
		InitialQuality:  DefaultInitialQuality,
		QualityFloor:    DefaultQualityFloor,
		QualityStep:     DefaultQualityStep,
		MaxSourcePixels: DefaultMaxSourcePixels,
	}
}

// Validate checks option consistency.
func (o Options) Validate() error {
	if o.MaxWidth <= 0 || o.MaxHeight <= 0 {
		return fmt.Errorf("max dimensions must be positive")
	}
	if o.MaxSizeBytes <= 0 {
		return fmt.Errorf("max size must be positive")
	}
	if o.InitialQuality < 1 || o.InitialQuality > 100 {
		return fmt.Errorf("initial quality must be within 1..100")
	}
	if o.QualityFloor < 1 || o.QualityFloor > o.InitialQuality {
		return fmt.Errorf("quality floor must be within 1..initial quality")
	}
	if o.QualityStep <= 0 {
		return fmt.Errorf("quality step must be positive")
	}
	if o.MaxSourcePixels < 0 {
		return fmt.Errorf("max source pixels must not be negative")
	}
	return nil
}

// maxReductions is the number of quality decrements between initial and floor.
func (o Options) maxReductions() int {
	span := o.InitialQuality - o.QualityFloor
	if span <= 0 {
		return 0
	}
	return (span + o.QualityStep - 1) / o.QualityStep
}
