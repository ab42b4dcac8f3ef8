// Package heatmap grids GPS tracks into visit-count cells for map
// overlays and point queries.
package heatmap

import (
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"

	"github.com/rotblauer/routecat/geo"
	"github.com/rotblauer/routecat/params"
)

// Cell is one populated heatmap grid cell.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`

	// Center is the cell midpoint.
	Center orb.Point `json:"center"`

	// VisitCount is how many track points landed in the cell.
	VisitCount int `json:"visit_count"`

	ActivityIDs []string `json:"activity_ids"`
	RouteIDs    []string `json:"route_ids,omitempty"`

	// IsCommonPath marks cells traversed by at least two distinct
	// routes.
	IsCommonPath bool `json:"is_common_path"`

	// Density is VisitCount normalized against the busiest cell.
	Density float64 `json:"density"`

	FirstVisit time.Time `json:"first_visit,omitempty"`
	LastVisit  time.Time `json:"last_visit,omitempty"`
}

// Track is one activity's contribution to the heatmap.
type Track struct {
	ID        string
	Sport     string
	RouteID   string
	Line      orb.LineString
	StartTime time.Time
}

// Heatmap is a sparse uniform grid over all contributed tracks.
type Heatmap struct {
	cfg     params.HeatmapConfig
	cellLat float64
	cellLng float64
	cells   map[[2]int]*cellData
}

type cellData struct {
	visits     int
	activities map[string]struct{}
	routes     map[string]struct{}
	sports     map[string]int
	first      time.Time
	last       time.Time
}

// Build grids the given tracks. The longitude cell size is fixed at
// the mean latitude of the data so the grid is consistent across the
// whole map.
func Build(tracks []Track, cfg *params.HeatmapConfig) *Heatmap {
	if cfg == nil {
		cfg = params.DefaultHeatmapConfig
	}
	h := &Heatmap{
		cfg:   *cfg,
		cells: make(map[[2]int]*cellData),
	}

	var latSum float64
	var n int
	for _, t := range tracks {
		if cfg.Sport != "" && t.Sport != cfg.Sport {
			continue
		}
		for _, p := range t.Line {
			latSum += p.Lat()
			n++
		}
	}
	if n == 0 {
		h.cellLat = geo.MetersToDegrees(h.cfg.CellSizeMeters)
		h.cellLng = h.cellLat
		return h
	}
	h.cellLat = geo.MetersToDegrees(h.cfg.CellSizeMeters)
	h.cellLng = h.cellLat / geo.LngScale(latSum/float64(n))

	for _, t := range tracks {
		if cfg.Sport != "" && t.Sport != cfg.Sport {
			continue
		}
		for _, p := range t.Line {
			c := h.cellOf(p)
			data, ok := h.cells[c]
			if !ok {
				data = &cellData{
					activities: make(map[string]struct{}),
					routes:     make(map[string]struct{}),
					sports:     make(map[string]int),
				}
				h.cells[c] = data
			}
			data.visits++
			data.activities[t.ID] = struct{}{}
			if t.RouteID != "" {
				data.routes[t.RouteID] = struct{}{}
			}
			data.sports[t.Sport]++
			if !t.StartTime.IsZero() {
				if data.first.IsZero() || t.StartTime.Before(data.first) {
					data.first = t.StartTime
				}
				if t.StartTime.After(data.last) {
					data.last = t.StartTime
				}
			}
		}
	}
	return h
}

func (h *Heatmap) cellOf(p orb.Point) [2]int {
	return [2]int{
		int(floorDiv(p.Lat(), h.cellLat)),
		int(floorDiv(p.Lon(), h.cellLng)),
	}
}

func floorDiv(v, size float64) float64 {
	q := v / size
	f := float64(int(q))
	if q < 0 && q != f {
		f--
	}
	return f
}

func (h *Heatmap) center(c [2]int) orb.Point {
	return orb.Point{
		(float64(c[1]) + 0.5) * h.cellLng,
		(float64(c[0]) + 0.5) * h.cellLat,
	}
}

// Cells returns the populated cells above the configured visit floor,
// busiest first.
func (h *Heatmap) Cells() []*Cell {
	maxVisits := 0
	for _, d := range h.cells {
		if d.visits > maxVisits {
			maxVisits = d.visits
		}
	}

	var out []*Cell
	for c, d := range h.cells {
		if d.visits < h.cfg.MinVisits {
			continue
		}
		out = append(out, h.export(c, d, maxVisits))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VisitCount != out[j].VisitCount {
			return out[i].VisitCount > out[j].VisitCount
		}
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

func (h *Heatmap) export(c [2]int, d *cellData, maxVisits int) *Cell {
	ids := make([]string, 0, len(d.activities))
	for id := range d.activities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	routes := make([]string, 0, len(d.routes))
	for id := range d.routes {
		routes = append(routes, id)
	}
	sort.Strings(routes)

	density := 0.0
	if maxVisits > 0 {
		density = float64(d.visits) / float64(maxVisits)
	}
	return &Cell{
		Row:          c[0],
		Col:          c[1],
		Center:       h.center(c),
		VisitCount:   d.visits,
		ActivityIDs:  ids,
		RouteIDs:     routes,
		IsCommonPath: len(d.routes) >= params.CommonPathRoutes,
		Density:      density,
		FirstVisit:   d.first,
		LastVisit:    d.last,
	}
}

// At looks up the cell containing p, falling back to the 8 neighbors
// when the exact cell is empty. The label summarizes the cell for map
// popups.
func (h *Heatmap) At(p orb.Point) (*Cell, string, bool) {
	maxVisits := 0
	for _, d := range h.cells {
		if d.visits > maxVisits {
			maxVisits = d.visits
		}
	}

	c := h.cellOf(p)
	candidates := [][2]int{c}
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			candidates = append(candidates, [2]int{c[0] + dr, c[1] + dc})
		}
	}

	for _, cand := range candidates {
		d, ok := h.cells[cand]
		if !ok {
			continue
		}
		cell := h.export(cand, d, maxVisits)
		return cell, h.label(d), true
	}
	return nil, "", false
}

func (h *Heatmap) label(d *cellData) string {
	if len(d.routes) >= params.CommonPathRoutes {
		return fmt.Sprintf("shared path (%d routes, %d visits)", len(d.routes), d.visits)
	}
	sport := ""
	top := 0
	for s, n := range d.sports {
		if n > top || (n == top && s < sport) {
			sport, top = s, n
		}
	}
	if sport == "" {
		sport = "activity"
	}
	return fmt.Sprintf("%s hotspot (%d visits)", sport, d.visits)
}

// Len returns the number of populated cells.
func (h *Heatmap) Len() int { return len(h.cells) }
