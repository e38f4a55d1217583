package cv

// Locator options
type Option func(*locatorOptions)

type locatorOptions struct {
	threshold         float64
	suppressionRadius float64
	maxMatches        int
	cropMargin        int
	region            *Region
	sink              CropSink
}

// Defaults used by NewLocator
const (
	DefaultMatchThreshold    = 0.9
	DefaultSuppressionRadius = 20.0
	DefaultMaxMatches        = 10
	DefaultCropMargin        = 25
)

func defaultLocatorOptions() locatorOptions {
	return locatorOptions{
		threshold:         DefaultMatchThreshold,
		suppressionRadius: DefaultSuppressionRadius,
		maxMatches:        DefaultMaxMatches,
		cropMargin:        DefaultCropMargin,
	}
}

// WithThreshold sets the minimum normalized cross-correlation for a match
func WithThreshold(t float64) Option {
	return func(opts *locatorOptions) {
		opts.threshold = t
	}
}

// WithSuppressionRadius sets the minimum distance between accepted matches
func WithSuppressionRadius(px float64) Option {
	return func(opts *locatorOptions) {
		opts.suppressionRadius = px
	}
}

// WithMaxMatches caps the number of matches returned
func WithMaxMatches(n int) Option {
	return func(opts *locatorOptions) {
		opts.maxMatches = n
	}
}

// WithCropMargin sets the margin around each persisted match crop
func WithCropMargin(px int) Option {
	return func(opts *locatorOptions) {
		opts.cropMargin = px
	}
}

// WithRegion limits the search to a region of the frame
func WithRegion(r *Region) Option {
	return func(opts *locatorOptions) {
		opts.region = r
	}
}

// WithCropSink persists a crop around every accepted match
func WithCropSink(sink CropSink) Option {
	return func(opts *locatorOptions) {
		opts.sink = sink
	}
}
