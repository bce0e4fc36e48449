// Package maptools exposes the map mutation operations as MCP tools.
// It resolves stateful vs. stateless mode per call, applies the
// mutation through the mapstate engine, and commits stateful results
// to the session registry, which fans them out to live viewers.
package maptools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/boettiger-lab/mcp-map-server/internal/catalog"
	"github.com/boettiger-lab/mcp-map-server/internal/session"
)

const (
	// sessionArgDoc describes the session_id argument shared by every tool.
	sessionArgDoc = "Session identifier. Omit to use the shared \"default\" session."
	// stateArgDoc describes the map_state argument shared by every tool.
	stateArgDoc = "Optional serialized map state document (JSON). When supplied, " +
		"the tool operates on this document instead of session storage and " +
		"returns the result without broadcasting to viewers (stateless mode)."
)

// Service wires the mutation engine to a session store and registers
// the MCP tool and prompt surface.
type Service struct {
	sessions session.Store
	catalog  *catalog.Catalog
}

// NewService creates the map tool service.
func NewService(sessions session.Store, cat *catalog.Catalog) *Service {
	return &Service{sessions: sessions, catalog: cat}
}

// Register adds all map tools and the data_layers prompt to the MCP server.
func (s *Service) Register(srv *server.MCPServer) {
	srv.AddTool(addLayerTool(), s.handleAddLayer)
	srv.AddTool(removeLayerTool(), s.handleRemoveLayer)
	srv.AddTool(toggleLayerTool(), s.handleToggleLayer)
	srv.AddTool(setMapViewTool(), s.handleSetMapView)
	srv.AddTool(filterLayerTool(), s.handleFilterLayer)
	srv.AddTool(setLayerPaintTool(), s.handleSetLayerPaint)
	srv.AddTool(resetLayerStyleTool(), s.handleResetLayerStyle)
	srv.AddTool(listLayersTool(), s.handleListLayers)
	srv.AddTool(getLayerInfoTool(), s.handleGetLayerInfo)
	srv.AddTool(getMapStateTool("get_map_state"), s.handleGetMapState)
	// get_map_config is an alias kept for clients that know the map
	// document as "config".
	srv.AddTool(getMapStateTool("get_map_config"), s.handleGetMapState)

	srv.AddPrompt(dataLayersPrompt(), s.handleDataLayersPrompt)
}

func addLayerTool() mcp.Tool {
	return mcp.NewTool("add_layer",
		mcp.WithDescription("Add a map layer (raster or vector), or replace the layer group "+
			"with the same id. Supports MapLibre source types: raster, vector, geojson, pmtiles. "+
			"Provide a 'layers' array of MapLibre layer specs (fill/line/circle) to render "+
			"multiple sublayers from a single source; raster sources get one default sublayer "+
			"when the array is omitted."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Unique identifier for this layer group"),
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Layer type: raster (tiles) or vector (geojson/pmtiles)"),
			mcp.Enum("raster", "vector"),
		),
		mcp.WithObject("source",
			mcp.Required(),
			mcp.Description("MapLibre source specification. For raster: "+
				"{type: 'raster', tiles: ['url'], tileSize: 256}. For vector: "+
				"{type: 'geojson', data: 'url'} or {type: 'vector', url: 'pmtiles://url'}"),
		),
		mcp.WithArray("layers",
			mcp.Description("Array of MapLibre layer specs, each with id, type "+
				"(fill/line/circle), optional source-layer, paint and layout. Sublayers "+
				"without a source are pointed at this group's source."),
		),
		mcp.WithBoolean("visible",
			mcp.Description("Whether the layer is visible initially (default: true)"),
		),
		mcp.WithString("session_id", mcp.Description(sessionArgDoc)),
		mcp.WithString("map_state", mcp.Description(stateArgDoc)),
	)
}

func removeLayerTool() mcp.Tool {
	return mcp.NewTool("remove_layer",
		mcp.WithDescription("Remove a layer group by id, including its filter and paint state. "+
			"Removing an unknown id leaves the map unchanged."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The layer group id to remove"),
		),
		mcp.WithString("session_id", mcp.Description(sessionArgDoc)),
		mcp.WithString("map_state", mcp.Description(stateArgDoc)),
	)
}

func toggleLayerTool() mcp.Tool {
	return mcp.NewTool("toggle_layer",
		mcp.WithDescription("Toggle visibility of an existing layer group."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The layer group id to toggle"),
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("Action: show, hide, or toggle the current state"),
			mcp.Enum("show", "hide", "toggle"),
		),
		mcp.WithString("session_id", mcp.Description(sessionArgDoc)),
		mcp.WithString("map_state", mcp.Description(stateArgDoc)),
	)
}

func setMapViewTool() mcp.Tool {
	return mcp.NewTool("set_map_view",
		mcp.WithDescription("Set the map center and/or zoom level. Fields that are omitted "+
			"keep their current value."),
		mcp.WithArray("center",
			mcp.Description("Map center as [longitude, latitude]"),
		),
		mcp.WithNumber("zoom",
			mcp.Description("Zoom level (0-22)"),
		),
		mcp.WithString("session_id", mcp.Description(sessionArgDoc)),
		mcp.WithString("map_state", mcp.Description(stateArgDoc)),
	)
}

func filterLayerTool() mcp.Tool {
	return mcp.NewTool("filter_layer",
		mcp.WithDescription("Apply a MapLibre filter expression to a layer group. The filter "+
			"argument is a JSON expression such as [\"==\", \"IUCN_CAT\", \"II\"] or "+
			"[\"all\", [...], [...]]; pass null to clear. Each call replaces the group's "+
			"previous filter on every sublayer."),
		mcp.WithString("layer_id",
			mcp.Required(),
			mcp.Description("The layer group id to filter"),
		),
		mcp.WithString("session_id", mcp.Description(sessionArgDoc)),
		mcp.WithString("map_state", mcp.Description(stateArgDoc)),
	)
}

func setLayerPaintTool() mcp.Tool {
	return mcp.NewTool("set_layer_paint",
		mcp.WithDescription("Set one paint property on a layer group. The value argument can "+
			"be a static value (e.g. '#ff0000') or a MapLibre expression such as "+
			"[\"match\", [\"get\", \"prop\"], \"a\", \"#1a9850\", \"#d9ef8b\"]. Properties "+
			"accumulate across calls; other properties are left untouched."),
		mcp.WithString("layer_id",
			mcp.Required(),
			mcp.Description("The layer group id to style"),
		),
		mcp.WithString("property",
			mcp.Required(),
			mcp.Description("Paint property name (e.g. 'fill-color', 'line-width', 'circle-radius')"),
		),
		mcp.WithString("session_id", mcp.Description(sessionArgDoc)),
		mcp.WithString("map_state", mcp.Description(stateArgDoc)),
	)
}

func resetLayerStyleTool() mcp.Tool {
	return mcp.NewTool("reset_layer_style",
		mcp.WithDescription("Reset a layer group's filter and paint properties to defaults."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The layer group id to reset"),
		),
		mcp.WithString("session_id", mcp.Description(sessionArgDoc)),
		mcp.WithString("map_state", mcp.Description(stateArgDoc)),
	)
}

func listLayersTool() mcp.Tool {
	return mcp.NewTool("list_layers",
		mcp.WithDescription("List all layer groups with their type, visibility, and whether "+
			"they carry a filter or custom paint."),
		mcp.WithString("session_id", mcp.Description(sessionArgDoc)),
		mcp.WithString("map_state", mcp.Description(stateArgDoc)),
	)
}

func getLayerInfoTool() mcp.Tool {
	return mcp.NewTool("get_layer_info",
		mcp.WithDescription("Get the full configuration of a single layer group."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The layer group id to query"),
		),
		mcp.WithString("session_id", mcp.Description(sessionArgDoc)),
		mcp.WithString("map_state", mcp.Description(stateArgDoc)),
	)
}

func getMapStateTool(name string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription("Get the complete current map state including all layer groups "+
			"and their configurations."),
		mcp.WithString("session_id", mcp.Description(sessionArgDoc)),
		mcp.WithString("map_state", mcp.Description(stateArgDoc)),
	)
}

func dataLayersPrompt() mcp.Prompt {
	return mcp.NewPrompt("data_layers",
		mcp.WithPromptDescription("Documentation of the available map data layers and how to "+
			"put them on the map with the map tools."),
	)
}
