package maptools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boettiger-lab/mcp-map-server/internal/catalog"
	"github.com/boettiger-lab/mcp-map-server/internal/session"
)

func newTestService(t *testing.T) (*Service, *session.Registry) {
	t.Helper()
	t.Setenv(catalog.EnvSystemPrompt, "")
	cat, err := catalog.Load("", "")
	require.NoError(t, err)
	registry := session.NewRegistry()
	return NewService(registry, cat), registry
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

// decodeResult unpacks the JSON text payload of a successful tool result.
func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.False(t, result.IsError, "unexpected tool error: %+v", result.Content)
	require.Len(t, result.Content, 1)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func errorText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, result.IsError, "expected a tool error")
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text
}

func osmArgs(extra map[string]any) map[string]any {
	args := map[string]any{
		"id":     "osm",
		"type":   "raster",
		"source": map[string]any{"type": "raster", "tiles": []any{"https://tile.openstreetmap.org/{z}/{x}/{y}.png"}},
	}
	for k, v := range extra {
		args[k] = v
	}
	return args
}

func TestHandleAddLayer(t *testing.T) {
	svc, registry := newTestService(t)

	result, err := svc.handleAddLayer(context.Background(), callRequest("add_layer", osmArgs(nil)))
	require.NoError(t, err)

	payload := decodeResult(t, result)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "Added layer 'osm'", payload["message"])

	state := payload["state"].(map[string]any)
	assert.Equal(t, float64(2), state["version"])

	// Commits land on the default session when no session_id is given.
	doc := registry.Get(session.DefaultKey).Snapshot()
	g, ok := doc.Layers.Get("osm")
	require.True(t, ok)
	require.Len(t, g.Sublayers, 1)
	assert.Equal(t, "osm", g.Sublayers[0]["source"])
}

func TestHandleAddLayerValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{
			name: "missing id",
			args: map[string]any{"type": "raster", "source": "s"},
			want: "id",
		},
		{
			name: "bad type",
			args: map[string]any{"id": "x", "type": "hologram", "source": "s"},
			want: "invalid layer type",
		},
		{
			name: "missing source",
			args: map[string]any{"id": "x", "type": "raster"},
			want: "source is required",
		},
		{
			name: "layers not an array",
			args: osmArgs(map[string]any{"layers": "nope"}),
			want: "layers must be an array",
		},
		{
			name: "sublayer not an object",
			args: osmArgs(map[string]any{"layers": []any{"nope"}}),
			want: "layers[0] must be an object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.handleAddLayer(ctx, callRequest("add_layer", tt.args))
			require.NoError(t, err)
			assert.Contains(t, errorText(t, result), tt.want)
		})
	}
}

func TestHandleRemoveLayer(t *testing.T) {
	svc, registry := newTestService(t)
	ctx := context.Background()

	_, err := svc.handleAddLayer(ctx, callRequest("add_layer", osmArgs(nil)))
	require.NoError(t, err)

	result, err := svc.handleRemoveLayer(ctx, callRequest("remove_layer", map[string]any{"id": "osm"}))
	require.NoError(t, err)
	payload := decodeResult(t, result)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, true, payload["removed"])
	assert.Equal(t, "Removed layer 'osm'", payload["message"])

	// Removing again succeeds without changing anything.
	versionBefore := registry.Get(session.DefaultKey).Snapshot().Version
	result, err = svc.handleRemoveLayer(ctx, callRequest("remove_layer", map[string]any{"id": "osm"}))
	require.NoError(t, err)
	payload = decodeResult(t, result)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, false, payload["removed"])
	assert.Equal(t, "Layer 'osm' not found, nothing removed", payload["message"])
	assert.Equal(t, versionBefore, registry.Get(session.DefaultKey).Snapshot().Version)
}

func TestHandleToggleLayer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.handleAddLayer(ctx, callRequest("add_layer", osmArgs(nil)))
	require.NoError(t, err)

	result, err := svc.handleToggleLayer(ctx, callRequest("toggle_layer", map[string]any{"id": "osm", "action": "hide"}))
	require.NoError(t, err)
	payload := decodeResult(t, result)
	assert.Equal(t, false, payload["visible"])

	result, err = svc.handleToggleLayer(ctx, callRequest("toggle_layer", map[string]any{"id": "osm", "action": "toggle"}))
	require.NoError(t, err)
	payload = decodeResult(t, result)
	assert.Equal(t, true, payload["visible"])

	result, err = svc.handleToggleLayer(ctx, callRequest("toggle_layer", map[string]any{"id": "ghost", "action": "show"}))
	require.NoError(t, err)
	payload = decodeResult(t, result)
	assert.Equal(t, "Layer 'ghost' not found, nothing toggled", payload["message"])

	result, err = svc.handleToggleLayer(ctx, callRequest("toggle_layer", map[string]any{"id": "osm", "action": "blink"}))
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "invalid toggle action")
}

func TestHandleSetMapView(t *testing.T) {
	svc, registry := newTestService(t)
	ctx := context.Background()

	result, err := svc.handleSetMapView(ctx, callRequest("set_map_view", map[string]any{
		"center": []any{-122.4194, 37.7749},
		"zoom":   10.0,
	}))
	require.NoError(t, err)
	payload := decodeResult(t, result)
	assert.Equal(t, []any{-122.4194, 37.7749}, payload["center"])
	assert.Equal(t, 10.0, payload["zoom"])

	// Partial update keeps the other field.
	result, err = svc.handleSetMapView(ctx, callRequest("set_map_view", map[string]any{"zoom": 6.0}))
	require.NoError(t, err)
	payload = decodeResult(t, result)
	assert.Equal(t, []any{-122.4194, 37.7749}, payload["center"])
	assert.Equal(t, 6.0, payload["zoom"])

	doc := registry.Get(session.DefaultKey).Snapshot()
	assert.Equal(t, 3, doc.Version)

	result, err = svc.handleSetMapView(ctx, callRequest("set_map_view", map[string]any{"center": []any{1.0}}))
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "center must be [longitude, latitude]")

	result, err = svc.handleSetMapView(ctx, callRequest("set_map_view", map[string]any{"zoom": "high"}))
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "zoom must be a number")
}

func TestHandleFilterLayer(t *testing.T) {
	svc, registry := newTestService(t)
	ctx := context.Background()

	_, err := svc.handleAddLayer(ctx, callRequest("add_layer", map[string]any{
		"id":     "wdpa",
		"type":   "vector",
		"source": map[string]any{"type": "vector", "url": "pmtiles://wdpa.pmtiles"},
		"layers": []any{
			map[string]any{"id": "wdpa-fill", "type": "fill"},
			map[string]any{"id": "wdpa-line", "type": "line"},
		},
	}))
	require.NoError(t, err)

	filter := []any{"==", "IUCN_CAT", "II"}
	result, err := svc.handleFilterLayer(ctx, callRequest("filter_layer", map[string]any{
		"layer_id": "wdpa",
		"filter":   filter,
	}))
	require.NoError(t, err)
	payload := decodeResult(t, result)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, filter, payload["filter"])

	doc := registry.Get(session.DefaultKey).Snapshot()
	g, _ := doc.Layers.Get("wdpa")
	assert.Equal(t, map[string]any{"wdpa-fill": filter, "wdpa-line": filter}, g.LayerFilters)

	// Unknown group id stays a silent success and does not commit.
	versionBefore := doc.Version
	result, err = svc.handleFilterLayer(ctx, callRequest("filter_layer", map[string]any{
		"layer_id": "ghost",
		"filter":   filter,
	}))
	require.NoError(t, err)
	payload = decodeResult(t, result)
	assert.Equal(t, "Layer 'ghost' not found, no filter applied", payload["message"])
	assert.Equal(t, versionBefore, registry.Get(session.DefaultKey).Snapshot().Version)
}

func TestHandleSetLayerPaint(t *testing.T) {
	svc, registry := newTestService(t)
	ctx := context.Background()

	_, err := svc.handleAddLayer(ctx, callRequest("add_layer", osmArgs(nil)))
	require.NoError(t, err)

	result, err := svc.handleSetLayerPaint(ctx, callRequest("set_layer_paint", map[string]any{
		"layer_id": "osm",
		"property": "raster-opacity",
		"value":    0.5,
	}))
	require.NoError(t, err)
	payload := decodeResult(t, result)
	assert.Equal(t, "raster-opacity", payload["property"])
	assert.Equal(t, 0.5, payload["value"])

	doc := registry.Get(session.DefaultKey).Snapshot()
	g, _ := doc.Layers.Get("osm")
	assert.Equal(t, 0.5, g.LayerPaint["osm"]["raster-opacity"])

	result, err = svc.handleSetLayerPaint(ctx, callRequest("set_layer_paint", map[string]any{
		"layer_id": "osm",
		"property": "raster-opacity",
	}))
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "value is required")
}

func TestHandleResetLayerStyle(t *testing.T) {
	svc, registry := newTestService(t)
	ctx := context.Background()

	_, err := svc.handleAddLayer(ctx, callRequest("add_layer", osmArgs(nil)))
	require.NoError(t, err)
	_, err = svc.handleSetLayerPaint(ctx, callRequest("set_layer_paint", map[string]any{
		"layer_id": "osm", "property": "raster-opacity", "value": 0.5,
	}))
	require.NoError(t, err)

	result, err := svc.handleResetLayerStyle(ctx, callRequest("reset_layer_style", map[string]any{"id": "osm"}))
	require.NoError(t, err)
	payload := decodeResult(t, result)
	assert.Equal(t, "Reset style for layer 'osm'", payload["message"])

	g, _ := registry.Get(session.DefaultKey).Snapshot().Layers.Get("osm")
	assert.Empty(t, g.LayerPaint)
}

func TestHandleListLayers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.handleListLayers(ctx, callRequest("list_layers", nil))
	require.NoError(t, err)
	payload := decodeResult(t, result)
	assert.Empty(t, payload["layers"])

	_, err = svc.handleAddLayer(ctx, callRequest("add_layer", osmArgs(nil)))
	require.NoError(t, err)

	result, err = svc.handleListLayers(ctx, callRequest("list_layers", nil))
	require.NoError(t, err)
	payload = decodeResult(t, result)
	layers := payload["layers"].([]any)
	require.Len(t, layers, 1)
	summary := layers[0].(map[string]any)
	assert.Equal(t, "osm", summary["id"])
	assert.Equal(t, "raster", summary["type"])
	assert.Equal(t, true, summary["visible"])
	assert.Equal(t, false, summary["has_filter"])
}

func TestHandleGetLayerInfo(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.handleAddLayer(ctx, callRequest("add_layer", osmArgs(nil)))
	require.NoError(t, err)

	result, err := svc.handleGetLayerInfo(ctx, callRequest("get_layer_info", map[string]any{"id": "osm"}))
	require.NoError(t, err)
	payload := decodeResult(t, result)
	assert.Equal(t, true, payload["success"])
	layer := payload["layer"].(map[string]any)
	assert.Equal(t, "osm", layer["id"])

	result, err = svc.handleGetLayerInfo(ctx, callRequest("get_layer_info", map[string]any{"id": "ghost"}))
	require.NoError(t, err)
	payload = decodeResult(t, result)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "Layer 'ghost' not found", payload["error"])
}

func TestHandleGetMapState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.handleGetMapState(ctx, callRequest("get_map_state", nil))
	require.NoError(t, err)
	payload := decodeResult(t, result)
	state := payload["state"].(map[string]any)
	assert.Equal(t, float64(1), state["version"])
	assert.Equal(t, []any{-98.5795, 39.8283}, state["center"])
	assert.Equal(t, float64(4), state["zoom"])
}

func TestSessionIsolationAcrossTools(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.handleAddLayer(ctx, callRequest("add_layer", osmArgs(map[string]any{"session_id": "alpha"})))
	require.NoError(t, err)

	result, err := svc.handleGetMapState(ctx, callRequest("get_map_state", map[string]any{"session_id": "beta"}))
	require.NoError(t, err)
	payload := decodeResult(t, result)
	state := payload["state"].(map[string]any)
	assert.Empty(t, state["layers"], "other sessions never observe the commit")
}

func TestStatelessMode(t *testing.T) {
	svc, registry := newTestService(t)
	ctx := context.Background()

	supplied := map[string]any{
		"version": 5.0,
		"center":  []any{0.0, 0.0},
		"zoom":    2.0,
		"layers":  map[string]any{},
	}

	result, err := svc.handleAddLayer(ctx, callRequest("add_layer", osmArgs(map[string]any{"map_state": supplied})))
	require.NoError(t, err)
	payload := decodeResult(t, result)
	state := payload["state"].(map[string]any)
	assert.Equal(t, float64(6), state["version"], "mutation applied to the supplied document")

	// Stateless calls never touch the registry, not even the default session.
	assert.Empty(t, registry.Keys())

	// The string form is accepted too.
	data, err := json.Marshal(supplied)
	require.NoError(t, err)
	result, err = svc.handleGetMapState(ctx, callRequest("get_map_state", map[string]any{"map_state": string(data)}))
	require.NoError(t, err)
	payload = decodeResult(t, result)
	state = payload["state"].(map[string]any)
	assert.Equal(t, float64(5), state["version"])
	assert.Empty(t, registry.Keys())
}

func TestStatelessModeIgnoresSessionID(t *testing.T) {
	svc, registry := newTestService(t)

	args := osmArgs(map[string]any{
		"session_id": "alpha",
		"map_state":  map[string]any{"layers": map[string]any{}},
	})
	result, err := svc.handleAddLayer(context.Background(), callRequest("add_layer", args))
	require.NoError(t, err)
	decodeResult(t, result)

	assert.Empty(t, registry.Keys(), "map_state wins over session_id")
}

func TestStatelessModeMalformedState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		state any
	}{
		{name: "garbage string", state: "{not json"},
		{name: "wrong type", state: 42.0},
		{name: "null layer", state: map[string]any{"layers": map[string]any{"osm": nil}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.handleAddLayer(ctx, callRequest("add_layer", osmArgs(map[string]any{"map_state": tt.state})))
			require.NoError(t, err)
			assert.Contains(t, errorText(t, result), "invalid map state document")
		})
	}
}

func TestHandleDataLayersPrompt(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.handleDataLayersPrompt(context.Background(), mcp.GetPromptRequest{})
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, mcp.RoleUser, result.Messages[0].Role)

	text, ok := result.Messages[0].Content.(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "Available Data Layers")
	assert.Contains(t, text.Text, "add_layer")
}
