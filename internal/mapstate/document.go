package mapstate

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// LayerType identifies the kind of data source a layer group renders.
type LayerType string

const (
	LayerTypeRaster LayerType = "raster"
	LayerTypeVector LayerType = "vector"
)

// ParseLayerType validates a layer type supplied by a caller.
func ParseLayerType(s string) (LayerType, error) {
	switch LayerType(s) {
	case LayerTypeRaster, LayerTypeVector:
		return LayerType(s), nil
	default:
		return "", fmt.Errorf("invalid layer type %q: must be %q or %q", s, LayerTypeRaster, LayerTypeVector)
	}
}

// Sublayer is one renderable MapLibre layer belonging to a layer group.
// Its contents are opaque to the server and forwarded verbatim to
// viewers; only the "id" and "source" keys are ever inspected.
type Sublayer map[string]any

// ID returns the sublayer's "id" value, or "" if absent.
func (s Sublayer) ID() string {
	id, _ := s["id"].(string)
	return id
}

// Clone returns a deep copy of the sublayer.
func (s Sublayer) Clone() Sublayer {
	return Sublayer(cloneValue(map[string]any(s)).(map[string]any))
}

// LayerGroup bundles one data source with one or more rendered
// sublayers. It is the unit of addition and removal on the map.
//
// JSON field names match the wire format the map viewer consumes:
// sublayers are serialized under "layers", per-sublayer filters under
// "layer_filters" and per-sublayer paint overrides under "layer_paint".
type LayerGroup struct {
	ID           string                    `json:"id"`
	Type         LayerType                 `json:"type"`
	Visible      bool                      `json:"visible"`
	Source       any                       `json:"source"`
	Sublayers    []Sublayer                `json:"layers"`
	LayerFilters map[string]any            `json:"layer_filters"`
	LayerPaint   map[string]map[string]any `json:"layer_paint"`
}

// styleTargets returns the sublayer ids that filter and paint
// operations address. A group without sublayers is addressed by its
// own id.
func (g *LayerGroup) styleTargets() []string {
	if len(g.Sublayers) == 0 {
		return []string{g.ID}
	}
	ids := make([]string, 0, len(g.Sublayers))
	for _, sl := range g.Sublayers {
		ids = append(ids, sl.ID())
	}
	return ids
}

// Clone returns a deep copy of the layer group.
func (g *LayerGroup) Clone() *LayerGroup {
	c := &LayerGroup{
		ID:           g.ID,
		Type:         g.Type,
		Visible:      g.Visible,
		Source:       cloneValue(g.Source),
		Sublayers:    make([]Sublayer, 0, len(g.Sublayers)),
		LayerFilters: make(map[string]any, len(g.LayerFilters)),
		LayerPaint:   make(map[string]map[string]any, len(g.LayerPaint)),
	}
	for _, sl := range g.Sublayers {
		c.Sublayers = append(c.Sublayers, sl.Clone())
	}
	for id, f := range g.LayerFilters {
		c.LayerFilters[id] = cloneValue(f)
	}
	for id, props := range g.LayerPaint {
		m := make(map[string]any, len(props))
		for prop, v := range props {
			m[prop] = cloneValue(v)
		}
		c.LayerPaint[id] = m
	}
	return c
}

// normalize fills in fields a hand-written or externally supplied
// document may have left empty.
func (g *LayerGroup) normalize(id string) {
	if g.ID == "" {
		g.ID = id
	}
	if g.Sublayers == nil {
		g.Sublayers = []Sublayer{}
	}
	if g.LayerFilters == nil {
		g.LayerFilters = map[string]any{}
	}
	if g.LayerPaint == nil {
		g.LayerPaint = map[string]map[string]any{}
	}
}

// Document is the full state of one map: view position plus all layer
// groups, in insertion order. Version increments on every committed
// mutation and starts at 1 for a fresh document.
type Document struct {
	Version int                                         `json:"version"`
	Center  [2]float64                                  `json:"center"`
	Zoom    float64                                     `json:"zoom"`
	Layers  *orderedmap.OrderedMap[string, *LayerGroup] `json:"layers"`
}

// Geographic center of the continental US, the default view for new
// sessions.
var defaultCenter = [2]float64{-98.5795, 39.8283}

const defaultZoom = 4

// NewDocument returns a fresh default document.
func NewDocument() *Document {
	return &Document{
		Version: 1,
		Center:  defaultCenter,
		Zoom:    defaultZoom,
		Layers:  orderedmap.New[string, *LayerGroup](),
	}
}

// Parse decodes a serialized document, as supplied by stateless-mode
// callers. Malformed input is rejected; missing fields are normalized
// so the result is always safe to mutate.
func Parse(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("invalid map state document: %w", err)
	}
	if d.Layers == nil {
		d.Layers = orderedmap.New[string, *LayerGroup]()
	}
	if d.Version < 1 {
		d.Version = 1
	}
	for pair := d.Layers.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == nil {
			return nil, fmt.Errorf("invalid map state document: layer %q is null", pair.Key)
		}
		pair.Value.normalize(pair.Key)
	}
	return &d, nil
}

// Clone returns a deep copy of the document. Snapshots handed to
// subscribers are clones, so later mutations never leak into an
// already published state.
func (d *Document) Clone() *Document {
	c := &Document{
		Version: d.Version,
		Center:  d.Center,
		Zoom:    d.Zoom,
		Layers:  orderedmap.New[string, *LayerGroup](),
	}
	for pair := d.Layers.Oldest(); pair != nil; pair = pair.Next() {
		c.Layers.Set(pair.Key, pair.Value.Clone())
	}
	return c
}

// cloneValue deep-copies a decoded JSON value. Opaque payloads only
// ever contain maps, slices and scalars, which is all this handles.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}
