package params

// HeatmapConfig tunes heatmap grid generation.
type HeatmapConfig struct {
	// CellSizeMeters is the edge length of a grid cell.
	CellSizeMeters float64

	// Sport restricts the heatmap to one sport type. Empty means all.
	Sport string

	// MinVisits drops cells with fewer point visits from the output.
	MinVisits int
}

var DefaultHeatmapConfig = &HeatmapConfig{
	CellSizeMeters: 100.0,
	MinVisits:      1,
}

// CommonPathRoutes is the distinct route count at which a heatmap cell
// is flagged as a common path.
const CommonPathRoutes = 2
