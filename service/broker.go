package service

import (
	"strconv"

	particleruntime "github.com/wippyai/particle-runtime"
	"github.com/wippyai/particle-runtime/errors"
)

// Transport carries service traffic to the host.
type Transport interface {
	ServiceRequest(call string, args particleruntime.Dictionary, tag string)
	ResolveURL(url string) string
}

// Handler receives a service response.
type Handler func(call string, payload particleruntime.Dictionary, tag string)

type pendingCall struct {
	call string
	fn   Handler
}

// Broker tracks outstanding calls by tag. It is owned by one particle and
// is not safe for concurrent use.
type Broker struct {
	transport Transport
	fallback  Handler
	pending   map[string][]pendingCall
	order     []string
	seq       int
}

// NewBroker creates a broker sending requests over t. Responses to calls
// issued without their own handler go to fallback, which may be nil.
func NewBroker(t Transport, fallback Handler) *Broker {
	return &Broker{
		transport: t,
		fallback:  fallback,
		pending:   make(map[string][]pendingCall),
	}
}

// Call issues a request and returns the tag it was sent with.
func (b *Broker) Call(call string, args particleruntime.Dictionary, tag string) string {
	return b.CallFunc(call, args, tag, nil)
}

// CallFunc issues a request whose response goes to fn instead of the
// broker's fallback handler.
func (b *Broker) CallFunc(call string, args particleruntime.Dictionary, tag string, fn Handler) string {
	if tag == "" {
		tag = b.nextTag(call)
	}
	if _, ok := b.pending[tag]; !ok {
		b.order = append(b.order, tag)
	}
	b.pending[tag] = append(b.pending[tag], pendingCall{call: call, fn: fn})
	if b.transport != nil {
		b.transport.ServiceRequest(call, args.Clone(), tag)
	}
	return tag
}

func (b *Broker) nextTag(call string) string {
	for {
		b.seq++
		tag := call + "#" + strconv.Itoa(b.seq)
		if _, taken := b.pending[tag]; !taken {
			return tag
		}
	}
}

// Deliver routes a host response to the call pending under tag. Calls that
// reuse a tag are answered oldest first.
func (b *Broker) Deliver(call string, payload particleruntime.Dictionary, tag string) error {
	calls, ok := b.pending[tag]
	if !ok {
		return errors.NotFound(errors.PhaseService, "pending service call", tag)
	}
	p := calls[0]
	if p.call != call {
		return errors.InvalidData(errors.PhaseService, []string{tag},
			"response for "+strconv.Quote(call)+" does not match pending call "+strconv.Quote(p.call))
	}

	if len(calls) == 1 {
		delete(b.pending, tag)
		b.removeOrder(tag)
	} else {
		b.pending[tag] = calls[1:]
	}

	fn := p.fn
	if fn == nil {
		fn = b.fallback
	}
	if fn != nil {
		fn(call, payload, tag)
	}
	return nil
}

func (b *Broker) removeOrder(tag string) {
	for i, t := range b.order {
		if t == tag {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}

// ResolveURL asks the host to resolve url. Without a transport the url is
// returned unchanged.
func (b *Broker) ResolveURL(url string) string {
	if b.transport == nil {
		return url
	}
	return b.transport.ResolveURL(url)
}

// Pending returns the tags of outstanding calls, oldest first.
func (b *Broker) Pending() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}
