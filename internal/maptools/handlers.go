package maptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/boettiger-lab/mcp-map-server/internal/mapstate"
	"github.com/boettiger-lab/mcp-map-server/internal/session"
	"github.com/boettiger-lab/mcp-map-server/pkg/logging"
)

// apply runs one mutation in the mode the request selects. With a
// map_state argument the call is stateless: the supplied document is
// parsed, mutated privately and returned, without touching the
// registry or notifying viewers. Otherwise the session's live document
// is mutated and, if changed, committed and fanned out.
func (s *Service) apply(request mcp.CallToolRequest, mutate func(*mapstate.Document) bool) (*mapstate.Document, bool, error) {
	if raw, ok := suppliedState(request); ok {
		doc, err := parseSuppliedState(raw)
		if err != nil {
			return nil, false, err
		}
		changed := mutate(doc)
		return doc, changed, nil
	}

	sess := s.sessions.Get(request.GetString("session_id", session.DefaultKey))
	doc, changed := sess.Update(mutate)
	return doc, changed, nil
}

// view resolves the target document for a read-only operation.
func (s *Service) view(request mcp.CallToolRequest) (*mapstate.Document, error) {
	if raw, ok := suppliedState(request); ok {
		return parseSuppliedState(raw)
	}
	sess := s.sessions.Get(request.GetString("session_id", session.DefaultKey))
	return sess.Snapshot(), nil
}

// suppliedState reports whether the request carries a map_state
// override, switching the call to stateless mode. The mode branch
// depends only on this argument, never on the session id.
func suppliedState(request mcp.CallToolRequest) (any, bool) {
	raw, ok := request.GetArguments()["map_state"]
	if !ok || raw == nil {
		return nil, false
	}
	return raw, true
}

// parseSuppliedState accepts the document either as a JSON string or
// as an inline object.
func parseSuppliedState(raw any) (*mapstate.Document, error) {
	switch v := raw.(type) {
	case string:
		return mapstate.Parse([]byte(v))
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("invalid map state document: %w", err)
		}
		return mapstate.Parse(data)
	default:
		return nil, fmt.Errorf("invalid map state document: expected JSON string or object, got %T", raw)
	}
}

// jsonResult renders a tool response as JSON text content, matching
// the wire shape the map viewer and agents already consume.
func jsonResult(payload map[string]any) *mcp.CallToolResult {
	data, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode response: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

func (s *Service) handleAddLayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typeStr, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	layerType, err := mapstate.ParseLayerType(typeStr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	source, ok := args["source"]
	if !ok || source == nil {
		return mcp.NewToolResultError("source is required"), nil
	}

	var sublayers []mapstate.Sublayer
	if rawLayers, ok := args["layers"]; ok && rawLayers != nil {
		list, ok := rawLayers.([]any)
		if !ok {
			return mcp.NewToolResultError("layers must be an array of layer specs"), nil
		}
		for i, item := range list {
			spec, ok := item.(map[string]any)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("layers[%d] must be an object", i)), nil
			}
			sublayers = append(sublayers, mapstate.Sublayer(spec))
		}
	}

	doc, _, err := s.apply(request, func(d *mapstate.Document) bool {
		d.AddLayer(mapstate.AddLayerArgs{
			ID:        id,
			Type:      layerType,
			Source:    source,
			Sublayers: sublayers,
			Visible:   request.GetBool("visible", true),
		})
		return true
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	logging.Debug("MapTools", "Added layer %q", id)
	added, _ := doc.Layers.Get(id)
	return jsonResult(map[string]any{
		"success": true,
		"message": fmt.Sprintf("Added layer '%s'", id),
		"layer":   added,
		"state":   doc,
	}), nil
}

func (s *Service) handleRemoveLayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var removed bool
	doc, _, err := s.apply(request, func(d *mapstate.Document) bool {
		removed = d.RemoveLayer(id)
		return removed
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	message := fmt.Sprintf("Removed layer '%s'", id)
	if !removed {
		message = fmt.Sprintf("Layer '%s' not found, nothing removed", id)
	}
	return jsonResult(map[string]any{
		"success": true,
		"removed": removed,
		"message": message,
		"state":   doc,
	}), nil
}

func (s *Service) handleToggleLayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	actionStr, err := request.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	action, err := mapstate.ParseToggleAction(actionStr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var visible, found bool
	doc, _, err := s.apply(request, func(d *mapstate.Document) bool {
		var changed bool
		visible, found, changed = d.ToggleLayer(id, action)
		return changed
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !found {
		return jsonResult(map[string]any{
			"success": true,
			"message": fmt.Sprintf("Layer '%s' not found, nothing toggled", id),
			"state":   doc,
		}), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"layer":   id,
		"visible": visible,
		"state":   doc,
	}), nil
}

func (s *Service) handleSetMapView(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var center *[2]float64
	if rawCenter, ok := args["center"]; ok && rawCenter != nil {
		parsed, err := parseCenter(rawCenter)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		center = parsed
	}
	var zoom *float64
	if rawZoom, ok := args["zoom"]; ok && rawZoom != nil {
		z, ok := rawZoom.(float64)
		if !ok {
			return mcp.NewToolResultError("zoom must be a number"), nil
		}
		zoom = &z
	}

	doc, _, err := s.apply(request, func(d *mapstate.Document) bool {
		return d.SetMapView(center, zoom)
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"center":  doc.Center,
		"zoom":    doc.Zoom,
		"state":   doc,
	}), nil
}

func parseCenter(raw any) (*[2]float64, error) {
	list, ok := raw.([]any)
	if !ok || len(list) != 2 {
		return nil, fmt.Errorf("center must be [longitude, latitude]")
	}
	var center [2]float64
	for i, item := range list {
		f, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("center must be [longitude, latitude]")
		}
		center[i] = f
	}
	return &center, nil
}

func (s *Service) handleFilterLayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layerID, err := request.RequireString("layer_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// A missing or null filter clears the group's filters.
	filter := request.GetArguments()["filter"]

	var found bool
	doc, _, err := s.apply(request, func(d *mapstate.Document) bool {
		found = d.FilterLayer(layerID, filter)
		return found
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !found {
		return jsonResult(map[string]any{
			"success": true,
			"message": fmt.Sprintf("Layer '%s' not found, no filter applied", layerID),
			"state":   doc,
		}), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"layer":   layerID,
		"filter":  filter,
		"state":   doc,
	}), nil
}

func (s *Service) handleSetLayerPaint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layerID, err := request.RequireString("layer_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	property, err := request.RequireString("property")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, ok := request.GetArguments()["value"]
	if !ok {
		return mcp.NewToolResultError("value is required"), nil
	}

	var found bool
	doc, _, err := s.apply(request, func(d *mapstate.Document) bool {
		found = d.SetLayerPaint(layerID, property, value)
		return found
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !found {
		return jsonResult(map[string]any{
			"success": true,
			"message": fmt.Sprintf("Layer '%s' not found, no paint applied", layerID),
			"state":   doc,
		}), nil
	}
	return jsonResult(map[string]any{
		"success":  true,
		"layer":    layerID,
		"property": property,
		"value":    value,
		"state":    doc,
	}), nil
}

func (s *Service) handleResetLayerStyle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var found bool
	doc, _, err := s.apply(request, func(d *mapstate.Document) bool {
		var changed bool
		found, changed = d.ResetLayerStyle(id)
		return changed
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	message := fmt.Sprintf("Reset style for layer '%s'", id)
	if !found {
		message = fmt.Sprintf("Layer '%s' not found, nothing reset", id)
	}
	return jsonResult(map[string]any{
		"success": true,
		"message": message,
		"state":   doc,
	}), nil
}

func (s *Service) handleListLayers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.view(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"layers":  doc.LayerSummaries(),
	}), nil
}

func (s *Service) handleGetLayerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.view(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	group, ok := doc.LayerInfo(id)
	if !ok {
		return jsonResult(map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Layer '%s' not found", id),
		}), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"layer":   group,
	}), nil
}

func (s *Service) handleGetMapState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := s.view(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"state":   doc,
	}), nil
}

func (s *Service) handleDataLayersPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return mcp.NewGetPromptResult(
		"Available map data layers and usage guidance",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(s.catalog.PromptText())),
		},
	), nil
}
