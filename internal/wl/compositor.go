// Package wl is the compositor-facing glue: connecting to the display,
// enumerating wl_output globals, and presenting pixels through wl_shm
// buffers. It does the familiar registry/compositor/output/shm/seat
// binding dance, retargeted from a fullscreen lock surface to a
// per-output background layer surface.
package wl

import (
	"fmt"
	"sync"

	"github.com/neurlang/wayland/wl"
	"github.com/neurlang/wayland/wlclient"

	"github.com/tuxx/wallpaperd/internal/render"
)

// OutputInfo is what the registry tells us about one wl_output before the
// daemon decides whether/how to bind a wallpaper surface to it.
type OutputInfo struct {
	Name   uint32
	Output *wl.Output
	Width  int
	Height int
	Scale  int32
	Make   string
	Model  string
}

// Client owns the display connection and the registry-driven global
// discovery; it is the daemon's one handle onto the compositor
// connection, whose events the MainLoop pumps via Dispatch.
type Client struct {
	mu sync.Mutex

	display    *wl.Display
	registry   *wl.Registry
	compositor *wl.Compositor
	shm        *wl.Shm
	seat       *wl.Seat
	layerShell *LayerShell

	outputs map[uint32]*OutputInfo

	onOutput func(OutputInfo)
}

// NewClient builds an unconnected Client. Call Connect before use.
func NewClient() *Client {
	return &Client{outputs: make(map[uint32]*OutputInfo)}
}

// OnOutput registers a callback invoked once per wl_output bound during
// Connect, after its geometry/mode events have been collected by a
// roundtrip.
func (c *Client) OnOutput(fn func(OutputInfo)) {
	c.onOutput = fn
}

// Connect opens the Wayland display connection and performs the initial
// global-discovery roundtrip.
func (c *Client) Connect() error {
	var err error
	c.display, err = wlclient.DisplayConnect(nil)
	if err != nil {
		return fmt.Errorf("wl: connect to display: %w", err)
	}

	c.registry, err = c.display.GetRegistry()
	if err != nil {
		return fmt.Errorf("wl: get registry: %w", err)
	}
	c.registry.AddGlobalHandler(c)

	if err := wlclient.DisplayRoundtrip(c.display); err != nil {
		return fmt.Errorf("wl: registry roundtrip: %w", err)
	}
	if err := wlclient.DisplayRoundtrip(c.display); err != nil {
		return fmt.Errorf("wl: output geometry roundtrip: %w", err)
	}

	if c.compositor == nil {
		return fmt.Errorf("wl: no wl_compositor global")
	}
	if c.shm == nil {
		return fmt.Errorf("wl: no wl_shm global")
	}
	if c.layerShell == nil {
		return fmt.Errorf("wl: no zwlr_layer_shell_v1 global")
	}
	if len(c.outputs) == 0 {
		return fmt.Errorf("wl: no wl_output globals")
	}

	if c.onOutput != nil {
		for _, info := range c.Outputs() {
			c.onOutput(info)
		}
	}

	return nil
}

// HandleRegistryGlobal is the wl.Registry global-add callback, binding
// the surface/shm primitives a wallpaper daemon needs.
func (c *Client) HandleRegistryGlobal(ev wl.RegistryGlobalEvent) {
	switch ev.Interface {
	case "wl_compositor":
		c.compositor = wlclient.RegistryBindCompositorInterface(c.registry, ev.Name, 4)
	case "wl_shm":
		c.shm = wlclient.RegistryBindShmInterface(c.registry, ev.Name, 1)
	case "wl_seat":
		c.seat = wlclient.RegistryBindSeatInterface(c.registry, ev.Name, 7)
	case "wl_output":
		out := wlclient.RegistryBindOutputInterface(c.registry, ev.Name, 3)
		info := &OutputInfo{Name: ev.Name, Output: out, Scale: 1}
		c.mu.Lock()
		c.outputs[ev.Name] = info
		c.mu.Unlock()
		out.AddGeometryHandler(outputGeometryHandler{info})
		out.AddModeHandler(outputModeHandler{info})
	case "zwlr_layer_shell_v1":
		c.layerShell = BindLayerShell(c.registry, ev.Name, 4)
	}
}

type outputGeometryHandler struct{ info *OutputInfo }

// HandleOutputGeometry records the make/model the compositor reports.
// wl_output carries no connector name (that's xdg_output_v1, a protocol
// extension outside this build's scope); make/model is the closest
// identifying information available for a -output flag match.
func (h outputGeometryHandler) HandleOutputGeometry(ev wl.OutputGeometryEvent) {
	h.info.Make = ev.Make
	h.info.Model = ev.Model
}

type outputModeHandler struct{ info *OutputInfo }

func (h outputModeHandler) HandleOutputMode(ev wl.OutputModeEvent) {
	h.info.Width = int(ev.Width)
	h.info.Height = int(ev.Height)
}

// Outputs returns the bound outputs discovered so far.
func (c *Client) Outputs() []OutputInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]OutputInfo, 0, len(c.outputs))
	for _, info := range c.outputs {
		out = append(out, *info)
	}
	return out
}

// Dispatch pumps one round of compositor events; the MainLoop calls it
// repeatedly from a dedicated goroutine.
func (c *Client) Dispatch() error {
	return wlclient.DisplayDispatch(c.display)
}

// NewSurface creates a wl_surface and its zwlr_layer_surface_v1 pairing
// for a background-layer output.
func (c *Client) NewSurface(info OutputInfo, width, height int) (*Surface, error) {
	surf, err := c.compositor.CreateSurface()
	if err != nil {
		return nil, fmt.Errorf("wl: create surface: %w", err)
	}
	layerSurf, err := c.layerShell.GetLayerSurface(surf, info.Output, LayerBackground, "wallpaperd")
	if err != nil {
		return nil, fmt.Errorf("wl: get layer surface: %w", err)
	}
	layerSurf.SetSize(uint32(width), uint32(height))
	layerSurf.SetAnchor(AnchorTop | AnchorBottom | AnchorLeft | AnchorRight)
	layerSurf.SetExclusiveZone(-1)
	// A wallpaper never takes input; an empty input region makes the
	// surface input-transparent so clicks fall through to whatever the
	// compositor stacks above it.
	surf.SetInputRegion(nil)
	surf.Commit()

	s := &Surface{client: c, surface: surf, layerSurface: layerSurf}
	layerSurf.AddConfigureHandler(s)
	layerSurf.AddClosedHandler(s)
	return s, nil
}

var _ render.Presenter = (*Surface)(nil)
