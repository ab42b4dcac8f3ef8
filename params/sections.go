package params

// SectionConfig tunes frequent section detection for a single scale.
type SectionConfig struct {
	// ProximityThreshold is the distance (meters) within which two
	// track points are considered on the same path.
	ProximityThreshold float64 `validate:"gt=0"`

	// ClusterTolerance is the maximum distance (meters) between
	// overlap centers merged into one section cluster.
	ClusterTolerance float64 `validate:"gt=0"`

	// MinSectionLength and MaxSectionLength bound section length in
	// meters. MaxSectionLength <= 0 means unbounded.
	MinSectionLength float64 `validate:"gt=0"`
	MaxSectionLength float64

	// MinActivities is the number of distinct activities required for
	// a cluster to become a section. Clusters below it may surface as
	// potential sections.
	MinActivities int `validate:"gte=1"`

	// ConsensusSamples is the number of points the consensus polyline
	// is resampled to.
	ConsensusSamples int `validate:"gte=4"`
}

var DefaultSectionConfig = &SectionConfig{
	ProximityThreshold: 50.0,
	ClusterTolerance:   80.0,
	MinSectionLength:   300.0,
	MaxSectionLength:   0,
	MinActivities:      3,
	ConsensusSamples:   50,
}

// ScalePreset names a detection scale and its length/support bounds.
type ScalePreset struct {
	Name          string
	MinLength     float64
	MaxLength     float64
	MinActivities int
}

// DefaultScalePresets order scales small to large. Landmarks are short
// stretches nearly everyone repeats, journeys are long routes repeated
// rarely.
var DefaultScalePresets = []ScalePreset{
	{Name: "landmark", MinLength: 300, MaxLength: 1500, MinActivities: 5},
	{Name: "segment", MinLength: 1500, MaxLength: 8000, MinActivities: 3},
	{Name: "journey", MinLength: 8000, MaxLength: 0, MinActivities: 2},
}

// DetectionConfig drives a full (multi-scale) detection run.
type DetectionConfig struct {
	SectionConfig

	// Scales to detect at. Empty means the single SectionConfig scale.
	Scales []ScalePreset

	// PreserveHierarchy keeps sections nested across scales instead of
	// deduplicating contained ones.
	PreserveHierarchy bool

	// IncludePotentials retains clusters with too few activities as
	// potential sections.
	IncludePotentials bool
}

func DefaultDetectionConfig() *DetectionConfig {
	return &DetectionConfig{
		SectionConfig:     *DefaultSectionConfig,
		Scales:            DefaultScalePresets,
		PreserveHierarchy: false,
		IncludePotentials: true,
	}
}

// Section postprocessing constants.
const (
	// FoldRatioLimit is the fraction of returning points above which a
	// section is treated as out-and-back and split at the fold.
	FoldRatioLimit = 0.5

	// MergeContainment is the containment fraction above which two
	// nearby sections merge (checked at twice ProximityThreshold).
	MergeContainment = 0.4

	// ContainedInShorter removes a longer section this contained in a
	// shorter one.
	ContainedInShorter = 0.6

	// ContainedInLonger removes a shorter section this much contained in a
	// longer one.
	ContainedInLonger = 0.8

	// SplitDensityRatio is the visit-density ratio over endpoint
	// density that triggers a high-traffic split.
	SplitDensityRatio = 2.0

	// MinSplitLength is the minimum length (meters) of a split-off
	// high-density portion.
	MinSplitLength = 100.0

	// MinSplitPoints is the minimum consensus points in a split-off
	// portion.
	MinSplitPoints = 10

	// MedoidExactLimit is the trace count up to which the medoid is
	// found by exhaustive pairwise AMD. Above it, candidates are
	// sampled.
	MedoidExactLimit = 10

	// TraceMaxGap is how many consecutive off-path points a trace or
	// portion run tolerates before it is cut.
	TraceMaxGap = 3

	// MinTracePoints is the minimum points in a valid overlap run.
	MinTracePoints = 3
)
