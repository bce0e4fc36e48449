package mapstate

import "fmt"

// The mutation engine: pure, synchronous operations on a Document.
// Each operation reports whether it changed the document; the version
// counter moves if and only if something actually changed, so viewers
// can rely on it as a change signal.

// AddLayerArgs carries the caller-supplied inputs for AddLayer.
type AddLayerArgs struct {
	ID        string
	Type      LayerType
	Source    any
	Sublayers []Sublayer
	Visible   bool
}

// AddLayer creates or replaces the layer group at args.ID. A raster
// group with no sublayers gets one default sublayer whose id and
// source equal the group id; any supplied sublayer missing a source is
// pointed at the group's source. Filter and paint state is reset for
// the group, even when replacing.
func (d *Document) AddLayer(args AddLayerArgs) *LayerGroup {
	subs := make([]Sublayer, 0, len(args.Sublayers))
	for _, sl := range args.Sublayers {
		sl = sl.Clone()
		if _, ok := sl["source"]; !ok {
			sl["source"] = args.ID
		}
		subs = append(subs, sl)
	}
	if args.Type == LayerTypeRaster && len(subs) == 0 {
		subs = append(subs, Sublayer{
			"id":     args.ID,
			"type":   "raster",
			"source": args.ID,
		})
	}

	g := &LayerGroup{
		ID:           args.ID,
		Type:         args.Type,
		Visible:      args.Visible,
		Source:       cloneValue(args.Source),
		Sublayers:    subs,
		LayerFilters: map[string]any{},
		LayerPaint:   map[string]map[string]any{},
	}
	d.Layers.Set(args.ID, g)
	d.Version++
	return g
}

// RemoveLayer deletes the group at id along with its filter and paint
// state. Removing an unknown id is a no-op and does not move the
// version.
func (d *Document) RemoveLayer(id string) bool {
	if _, ok := d.Layers.Get(id); !ok {
		return false
	}
	d.Layers.Delete(id)
	d.Version++
	return true
}

// SetMapView overwrites whichever of center and zoom is supplied.
// Calling it with neither is a no-op.
func (d *Document) SetMapView(center *[2]float64, zoom *float64) bool {
	if center == nil && zoom == nil {
		return false
	}
	if center != nil {
		d.Center = *center
	}
	if zoom != nil {
		d.Zoom = *zoom
	}
	d.Version++
	return true
}

// FilterLayer replaces the group's entire filter map: the supplied
// filter (which may be nil, clearing it) is assigned to every sublayer
// the group owns. Filters are an exclusive "current view", one active
// predicate per group, so prior per-sublayer filters are discarded
// rather than merged. An unknown group id is a no-op.
func (d *Document) FilterLayer(layerID string, filter any) bool {
	g, ok := d.Layers.Get(layerID)
	if !ok {
		return false
	}
	filters := map[string]any{}
	for _, id := range g.styleTargets() {
		filters[id] = cloneValue(filter)
	}
	g.LayerFilters = filters
	d.Version++
	return true
}

// SetLayerPaint merges one paint property into every sublayer the
// group owns, leaving other properties and existing entries untouched.
// Paint is incremental styling: color, width and opacity accumulate
// across calls. An unknown group id is a no-op.
func (d *Document) SetLayerPaint(layerID, property string, value any) bool {
	g, ok := d.Layers.Get(layerID)
	if !ok {
		return false
	}
	for _, id := range g.styleTargets() {
		props := g.LayerPaint[id]
		if props == nil {
			props = map[string]any{}
			g.LayerPaint[id] = props
		}
		props[property] = cloneValue(value)
	}
	d.Version++
	return true
}

// ToggleAction is the visibility action for ToggleLayer.
type ToggleAction string

const (
	ToggleShow ToggleAction = "show"
	ToggleHide ToggleAction = "hide"
	ToggleFlip ToggleAction = "toggle"
)

// ParseToggleAction validates a toggle action supplied by a caller.
func ParseToggleAction(s string) (ToggleAction, error) {
	switch ToggleAction(s) {
	case ToggleShow, ToggleHide, ToggleFlip:
		return ToggleAction(s), nil
	default:
		return "", fmt.Errorf("invalid toggle action %q: must be %q, %q or %q", s, ToggleShow, ToggleHide, ToggleFlip)
	}
}

// ToggleLayer adjusts a group's visibility. The returned visible value
// is only meaningful when found is true; changed is false when the
// action left visibility as it was.
func (d *Document) ToggleLayer(id string, action ToggleAction) (visible, found, changed bool) {
	g, ok := d.Layers.Get(id)
	if !ok {
		return false, false, false
	}
	next := g.Visible
	switch action {
	case ToggleShow:
		next = true
	case ToggleHide:
		next = false
	case ToggleFlip:
		next = !g.Visible
	}
	if next == g.Visible {
		return g.Visible, true, false
	}
	g.Visible = next
	d.Version++
	return g.Visible, true, true
}

// ResetLayerStyle clears a group's filter and paint state. Resetting a
// group that has neither is a no-op.
func (d *Document) ResetLayerStyle(id string) (found, changed bool) {
	g, ok := d.Layers.Get(id)
	if !ok {
		return false, false
	}
	if len(g.LayerFilters) == 0 && len(g.LayerPaint) == 0 {
		return true, false
	}
	g.LayerFilters = map[string]any{}
	g.LayerPaint = map[string]map[string]any{}
	d.Version++
	return true, true
}

// LayerInfo returns a deep copy of one layer group.
func (d *Document) LayerInfo(id string) (*LayerGroup, bool) {
	g, ok := d.Layers.Get(id)
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// LayerSummary is the per-group digest returned by list_layers.
type LayerSummary struct {
	ID             string    `json:"id"`
	Type           LayerType `json:"type"`
	Visible        bool      `json:"visible"`
	HasFilter      bool      `json:"has_filter"`
	HasCustomPaint bool      `json:"has_custom_paint"`
}

// LayerSummaries lists all groups in insertion order.
func (d *Document) LayerSummaries() []LayerSummary {
	summaries := make([]LayerSummary, 0, d.Layers.Len())
	for pair := d.Layers.Oldest(); pair != nil; pair = pair.Next() {
		g := pair.Value
		summaries = append(summaries, LayerSummary{
			ID:             g.ID,
			Type:           g.Type,
			Visible:        g.Visible,
			HasFilter:      hasActiveFilter(g.LayerFilters),
			HasCustomPaint: hasCustomPaint(g.LayerPaint),
		})
	}
	return summaries
}

// hasActiveFilter reports whether any sublayer carries a non-nil
// filter; a nil filter entry means "cleared".
func hasActiveFilter(filters map[string]any) bool {
	for _, f := range filters {
		if f != nil {
			return true
		}
	}
	return false
}

func hasCustomPaint(paint map[string]map[string]any) bool {
	for _, props := range paint {
		if len(props) > 0 {
			return true
		}
	}
	return false
}
