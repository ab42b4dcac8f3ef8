package params

// MatchConfig tunes route signature building and pairwise route comparison.
type MatchConfig struct {
	// PerfectThreshold is the AMD (average minimum distance, meters)
	// at or below which two routes are a 100% match.
	PerfectThreshold float64 `validate:"gt=0"`

	// ZeroThreshold is the AMD (meters) at or above which two routes
	// are a 0% match. Match percentage is linear between the thresholds.
	ZeroThreshold float64 `validate:"gtfield=PerfectThreshold"`

	// MinMatchPercent is the minimum match percentage for two routes
	// to be considered the same route when grouping.
	MinMatchPercent float64 `validate:"gte=0,lte=100"`

	// MinRouteDistance is the minimum route length (meters) eligible
	// for grouping. Shorter activities never group.
	MinRouteDistance float64 `validate:"gte=0"`

	// MaxDistanceDiffRatio is the maximum relative difference in total
	// distance between two groupable routes.
	MaxDistanceDiffRatio float64 `validate:"gt=0,lte=1"`

	// EndpointThreshold is the maximum distance (meters) between
	// paired endpoints of groupable routes.
	EndpointThreshold float64 `validate:"gt=0"`

	// ResampleCount is the number of points each route is resampled to
	// (by arc length) before AMD computation.
	ResampleCount int `validate:"gte=4"`

	// SimplifyTolerance is the Douglas-Peucker tolerance, in degrees,
	// used when building signatures.
	SimplifyTolerance float64 `validate:"gte=0"`

	// MaxSimplifiedPoints caps signature size after simplification.
	MaxSimplifiedPoints int `validate:"gte=10"`
}

var DefaultMatchConfig = &MatchConfig{
	PerfectThreshold:     30.0,
	ZeroThreshold:        250.0,
	MinMatchPercent:      65.0,
	MinRouteDistance:     500.0,
	MaxDistanceDiffRatio: 0.20,
	EndpointThreshold:    200.0,
	ResampleCount:        50,
	SimplifyTolerance:    0.0001,
	MaxSimplifiedPoints:  100,
}

// PartialMatchLimit is the match percentage below which a non-reversed
// comparison is reported as a partial match.
const PartialMatchLimit = 70.0

// ReverseMargin is how much better (meters) the reversed endpoint
// pairing must score before a comparison is reported as reversed.
const ReverseMargin = 100.0

// SpatialTolerance pads route bounds (degrees) for the grouping
// prefilter index.
const SpatialTolerance = 0.01

// MinDistanceRatio is the cheap length-ratio prefilter applied before
// the strict grouping checks.
const MinDistanceRatio = 0.5
