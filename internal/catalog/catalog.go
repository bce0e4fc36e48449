// Package catalog holds the descriptive "data layers" text served to
// agents through the data_layers MCP prompt. The text is pure
// documentation: it tells an agent which external data sources exist
// and how to put them on the map, and is never interpreted by the
// server itself.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/boettiger-lab/mcp-map-server/pkg/logging"
)

// EnvSystemPrompt overrides the built-in layer catalog when set.
const EnvSystemPrompt = "MCP_MAP_SYSTEM_PROMPT"

// CoreInstructions is always appended to the catalog text, whatever
// its origin, so agents get tool usage guidance even with a fully
// custom catalog.
const CoreInstructions = `## Instructions

Use the map tools to build up the view incrementally:

- add_layer registers a data source and its rendered layers. Raster
  sources need only an id and a tile URL; vector sources take a layers
  array of fill/line/circle specs.
- filter_layer applies one MapLibre filter expression to a layer
  group. Each call replaces the previous filter; pass null to clear.
- set_layer_paint sets a single paint property (fill-color,
  line-width, ...) and can be called repeatedly to accumulate styling.
- set_map_view moves the camera; list_layers and get_map_state report
  what is currently configured.

Pass a session_id to keep independent maps for different viewers, and
pass map_state to operate on a supplied document without touching any
session.`

// DefaultLayerInfo is the built-in catalog used when no custom text is
// configured. Operators replace it with the MCP_MAP_SYSTEM_PROMPT
// environment variable, a prompt file, or inline config text.
const DefaultLayerInfo = `# Available Data Layers

This catalog can be replaced by setting the MCP_MAP_SYSTEM_PROMPT
environment variable (or a prompt file) with your own layer
documentation.

## OpenStreetMap basemap

- Type: raster
- Tiles: https://tile.openstreetmap.org/{z}/{x}/{y}.png (tileSize 256)

## WDPA Protected Areas

World Database on Protected Areas, served as vector tiles.

- Type: vector
- Attributes: NAME, DESIG_ENG, IUCN_CAT (Ia, Ib, II, III, IV, V, VI),
  MARINE, REP_AREA, STATUS_YR

## Examples

Show strictly protected areas only:

    filter_layer(layer_id="wdpa", filter=["in", "IUCN_CAT", "Ia", "Ib", "II"])

Color protected areas by IUCN category:

    set_layer_paint(layer_id="wdpa", property="fill-color",
        value=["match", ["get", "IUCN_CAT"],
               "Ia", "#1a9850", "II", "#91cf60", "#d9ef8b"])`

// Catalog resolves and caches the layer documentation text. When the
// text comes from a file, Watch keeps it current as the file changes.
type Catalog struct {
	mu   sync.RWMutex
	text string
	file string
}

// Load resolves the catalog text. Priority order: explicit text, then
// a prompt file, then the MCP_MAP_SYSTEM_PROMPT environment variable,
// then the built-in default.
func Load(text, file string) (*Catalog, error) {
	c := &Catalog{file: file}

	switch {
	case text != "":
		c.text = text
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read prompt file: %w", err)
		}
		c.text = string(data)
	case os.Getenv(EnvSystemPrompt) != "":
		c.text = os.Getenv(EnvSystemPrompt)
	default:
		c.text = DefaultLayerInfo
	}
	return c, nil
}

// Text returns the current catalog text without instructions.
func (c *Catalog) Text() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.text
}

// PromptText returns the full data_layers prompt: catalog text plus
// the core tool instructions.
func (c *Catalog) PromptText() string {
	return strings.TrimRight(c.Text(), "\n") + "\n\n" + CoreInstructions
}

// Watch reloads the catalog whenever the configured prompt file
// changes. It blocks until the context is cancelled and returns nil
// immediately when no file is configured.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.file == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompt file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(c.file); err != nil {
		return fmt.Errorf("watch prompt file %s: %w", c.file, err)
	}
	logging.Info("Catalog", "Watching prompt file %s for changes", c.file)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				c.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Catalog", "Prompt file watcher error: %v", err)
		}
	}
}

func (c *Catalog) reload() {
	data, err := os.ReadFile(c.file)
	if err != nil {
		logging.Error("Catalog", err, "Failed to reload prompt file %s", c.file)
		return
	}
	c.mu.Lock()
	c.text = string(data)
	c.mu.Unlock()
	logging.Info("Catalog", "Reloaded prompt file %s", c.file)
}
