package slot

import (
	"slices"

	particleruntime "github.com/wippyai/particle-runtime"
)

// DefaultSlot is the slot name used by automatic rendering when none is
// given.
const DefaultSlot = "root"

// Sink receives rendered slots.
type Sink interface {
	Render(slot, template string, model particleruntime.Dictionary)
}

// Source answers template and model queries.
type Source interface {
	Template(slot string) string
	Model(slot string) particleruntime.Dictionary
}

// Renderer is usable as a zero value; Bind it before rendering.
type Renderer struct {
	sink   Sink
	source Source
	auto   []string
	count  int
}

// Bind sets the render destination and the template/model source.
func (r *Renderer) Bind(sink Sink, source Source) {
	r.sink, r.source = sink, source
}

// Auto enables automatic rendering of slot.
func (r *Renderer) Auto(slot string) {
	if slot == "" {
		slot = DefaultSlot
	}
	if !slices.Contains(r.auto, slot) {
		r.auto = append(r.auto, slot)
	}
}

// AutoSlots returns the slots rendered automatically.
func (r *Renderer) AutoSlots() []string {
	return slices.Clone(r.auto)
}

// IsAuto reports whether any slot renders automatically.
func (r *Renderer) IsAuto() bool { return len(r.auto) > 0 }

// Render emits slot. Parts not requested are sent empty.
func (r *Renderer) Render(slot string, sendTemplate, sendModel bool) bool {
	if r.sink == nil {
		return false
	}
	var template string
	var model particleruntime.Dictionary
	if r.source != nil {
		if sendTemplate {
			template = r.source.Template(slot)
		}
		if sendModel {
			model = r.source.Model(slot)
		}
	}
	r.sink.Render(slot, template, model)
	r.count++
	return true
}

// Refresh re-renders every auto slot with template and model.
func (r *Renderer) Refresh() {
	for _, slot := range r.auto {
		r.Render(slot, true, true)
	}
}

// Renders returns the number of renders emitted.
func (r *Renderer) Renders() int { return r.count }
