package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"

	"github.com/joeblew999/geostory/internal/humastar"
	"github.com/joeblew999/geostory/internal/narrative"
	"github.com/joeblew999/geostory/internal/service"
	"github.com/joeblew999/geostory/internal/templates"
)

// Custom DOM events dispatched to the page.
const (
	EventMapCommand     = "map-command"
	EventDatasetChanged = "dataset-changed"
)

// StreamHandler pushes story and dataset changes to the browser over
// Datastar SSE. Map commands become DOM events for the map script; the
// legend, panel and chapter list are patched as HTML.
type StreamHandler struct {
	svc      *Services
	bus      *service.EventBus
	renderer *templates.Renderer
	log      zerolog.Logger
}

func NewStreamHandler(svc *Services, bus *service.EventBus, renderer *templates.Renderer, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{svc: svc, bus: bus, renderer: renderer, log: log}
}

func (h *StreamHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/story/events", h.Events, huma.OperationTags("story"))
}

func (h *StreamHandler) Events(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
	if h.bus == nil || h.svc == nil || h.svc.Narrative == nil {
		return nil, huma.Error503ServiceUnavailable("story not available")
	}
	return humastar.Stream(func(sse humastar.SSE) {
		ch := h.bus.Subscribe()
		defer h.bus.Unsubscribe(ch)

		if err := h.sendSnapshot(sse); err != nil {
			h.log.Debug().Err(err).Msg("stream closed")
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := h.send(sse, ev); err != nil {
					h.log.Debug().Err(err).Msg("stream closed")
					return
				}
			}
		}
	}), nil
}

func (h *StreamHandler) sendSnapshot(sse humastar.SSE) error {
	snap := h.svc.Narrative.Snapshot()
	if err := sse.Signals(map[string]any{
		"chapter": snap.Chapter,
		"layers":  snap.Layers,
	}); err != nil {
		return err
	}
	if err := h.patchChapters(sse); err != nil {
		return err
	}
	return h.patch(sse, "legend", snap.Legend, "#legend", false)
}

func (h *StreamHandler) send(sse humastar.SSE, ev service.Event) error {
	switch ev.Resource {
	case service.ResourceDatasets:
		return sse.Dispatch(EventDatasetChanged, map[string]any{
			"action": ev.Action,
			"id":     ev.ID,
			"info":   ev.Data,
		})
	case service.ResourceStory:
		if ev.Action == service.ActionEntered {
			if err := sse.Signals(map[string]any{"chapter": ev.ID}); err != nil {
				return err
			}
			return h.patchChapters(sse)
		}
		cmd, ok := ev.Data.(narrative.Command)
		if !ok {
			return nil
		}
		return h.sendCommand(sse, cmd)
	}
	return nil
}

func (h *StreamHandler) sendCommand(sse humastar.SSE, cmd narrative.Command) error {
	switch cmd.Op {
	case narrative.OpLegend:
		return h.patch(sse, "legend", cmd.Legend, "#legend", false)
	case narrative.OpShowPanel:
		return h.patch(sse, "panel", map[string]any{
			"Visible": true,
			"Title":   cmd.Title,
			"Rows":    cmd.Rows,
		}, "#attribute-panel", true)
	case narrative.OpHidePanel:
		return h.patch(sse, "panel", map[string]any{"Visible": false}, "#attribute-panel", true)
	}
	return sse.Dispatch(EventMapCommand, cmd)
}

func (h *StreamHandler) patchChapters(sse humastar.SSE) error {
	return h.patch(sse, "chapters", h.svc.Narrative.Chapters(), "#chapters", false)
}

func (h *StreamHandler) patch(sse humastar.SSE, tmpl string, data any, selector string, outer bool) error {
	if h.renderer == nil {
		return nil
	}
	html, err := h.renderer.Render(tmpl, data)
	if err != nil {
		h.log.Error().Err(err).Str("template", tmpl).Msg("rendering fragment")
		return sse.Error("rendering " + tmpl)
	}
	if outer {
		return sse.Replace(html, selector)
	}
	return sse.Patch(html, selector)
}
