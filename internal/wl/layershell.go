package wl

import (
	"sync"

	"github.com/neurlang/wayland/wl"
)

// Layer mirrors the zwlr_layer_shell_v1 layer enum. wallpaperd only ever
// uses Background, since its surface is the desktop background: always
// below normal windows and input-transparent.
type Layer uint32

const (
	LayerBackground Layer = 0
	LayerBottom     Layer = 1
	LayerTop        Layer = 2
	LayerOverlay    Layer = 3
)

// Anchor mirrors the zwlr_layer_surface_v1 anchor bitmask.
type Anchor uint32

const (
	AnchorTop Anchor = 1 << iota
	AnchorBottom
	AnchorLeft
	AnchorRight
)

// zwlr_layer_shell_v1 has no pre-existing Go binding, so the two objects
// below are hand-generated against the wl package's proxy primitives, in
// the same shape as the session-lock binding this daemon's Wayland stack
// descends from: a BaseProxy embed per object, Context().Register +
// SendRequest for requests, and a Dispatch method decoding events into
// handler callbacks.

const (
	opLayerShellGetLayerSurface = 0

	opLayerSurfaceSetSize          = 0
	opLayerSurfaceSetAnchor        = 1
	opLayerSurfaceSetExclusiveZone = 2
	opLayerSurfaceAckConfigure     = 6
	opLayerSurfaceDestroy          = 7

	evtLayerSurfaceConfigure = 0
	evtLayerSurfaceClosed    = 1
)

// LayerShell is the bound zwlr_layer_shell_v1 global.
type LayerShell struct {
	wl.BaseProxy
}

// BindLayerShell binds the zwlr_layer_shell_v1 global advertised under
// name in the registry.
func BindLayerShell(registry *wl.Registry, name uint32, version uint32) *LayerShell {
	ret := new(LayerShell)
	registry.Context().Register(ret)
	registry.Bind(name, "zwlr_layer_shell_v1", version, ret)
	return ret
}

// GetLayerSurface requests a new zwlr_layer_surface_v1 for surf pinned to
// output, in the given layer, under namespace.
func (p *LayerShell) GetLayerSurface(surf *wl.Surface, output *wl.Output, layer Layer, namespace string) (*LayerSurface, error) {
	ret := new(LayerSurface)
	p.Context().Register(ret)
	err := p.Context().SendRequest(p, opLayerShellGetLayerSurface, wl.Proxy(ret), surf, output, uint32(layer), namespace)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// LayerSurfaceConfigureEvent is the compositor's size grant; it must be
// acked before the next commit.
type LayerSurfaceConfigureEvent struct {
	Serial uint32
	Width  uint32
	Height uint32
}

// LayerSurfaceClosedEvent means the compositor destroyed the surface
// (output unplugged, shell shutdown); the client must stop using it.
type LayerSurfaceClosedEvent struct{}

// LayerSurfaceConfigureHandler receives configure events.
type LayerSurfaceConfigureHandler interface {
	HandleLayerSurfaceConfigure(LayerSurfaceConfigureEvent)
}

// LayerSurfaceClosedHandler receives closed events.
type LayerSurfaceClosedHandler interface {
	HandleLayerSurfaceClosed(LayerSurfaceClosedEvent)
}

// LayerSurface is a bound zwlr_layer_surface_v1 object.
type LayerSurface struct {
	wl.BaseProxy

	mu                sync.Mutex
	configureHandlers []LayerSurfaceConfigureHandler
	closedHandlers    []LayerSurfaceClosedHandler
}

// AddConfigureHandler registers h to receive configure events.
func (p *LayerSurface) AddConfigureHandler(h LayerSurfaceConfigureHandler) {
	p.mu.Lock()
	p.configureHandlers = append(p.configureHandlers, h)
	p.mu.Unlock()
}

// AddClosedHandler registers h to receive closed events.
func (p *LayerSurface) AddClosedHandler(h LayerSurfaceClosedHandler) {
	p.mu.Lock()
	p.closedHandlers = append(p.closedHandlers, h)
	p.mu.Unlock()
}

// Dispatch decodes zwlr_layer_surface_v1 events and fans them out to the
// registered handlers.
func (p *LayerSurface) Dispatch(event *wl.Event) {
	switch event.Opcode {
	case evtLayerSurfaceConfigure:
		ev := LayerSurfaceConfigureEvent{
			Serial: event.Uint32(),
			Width:  event.Uint32(),
			Height: event.Uint32(),
		}
		p.mu.Lock()
		handlers := p.configureHandlers
		p.mu.Unlock()
		for _, h := range handlers {
			h.HandleLayerSurfaceConfigure(ev)
		}
	case evtLayerSurfaceClosed:
		p.mu.Lock()
		handlers := p.closedHandlers
		p.mu.Unlock()
		for _, h := range handlers {
			h.HandleLayerSurfaceClosed(LayerSurfaceClosedEvent{})
		}
	}
}

func (p *LayerSurface) SetSize(width, height uint32) error {
	return p.Context().SendRequest(p, opLayerSurfaceSetSize, width, height)
}

func (p *LayerSurface) SetAnchor(anchor Anchor) error {
	return p.Context().SendRequest(p, opLayerSurfaceSetAnchor, uint32(anchor))
}

func (p *LayerSurface) SetExclusiveZone(zone int32) error {
	return p.Context().SendRequest(p, opLayerSurfaceSetExclusiveZone, zone)
}

func (p *LayerSurface) AckConfigure(serial uint32) error {
	return p.Context().SendRequest(p, opLayerSurfaceAckConfigure, serial)
}

func (p *LayerSurface) Destroy() error {
	return p.Context().SendRequest(p, opLayerSurfaceDestroy)
}
