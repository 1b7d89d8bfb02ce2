package host

import (
	"fmt"
	"strings"

	particleruntime "github.com/wippyai/particle-runtime"
)

// MessageKind names an outbound particle call.
type MessageKind string

const (
	KindSingletonSet     MessageKind = "singleton.set"
	KindSingletonClear   MessageKind = "singleton.clear"
	KindCollectionStore  MessageKind = "collection.store"
	KindCollectionRemove MessageKind = "collection.remove"
	KindCollectionClear  MessageKind = "collection.clear"
	KindRender           MessageKind = "render"
	KindDereference      MessageKind = "dereference"
	KindServiceRequest   MessageKind = "service.request"
	KindResolveURL       MessageKind = "resolve_url"
)

// Message is one recorded call from the particle to the host. Only the
// fields relevant to Kind are set.
type Message struct {
	Model      particleruntime.Dictionary
	Args       particleruntime.Dictionary
	Kind       MessageKind
	Handle     string
	Encoded    string
	Slot       string
	Template   string
	ID         string
	StorageKey string
	Call       string
	Tag        string
	URL        string
}

// String renders the message on one line.
func (m Message) String() string {
	switch m.Kind {
	case KindSingletonSet, KindCollectionStore, KindCollectionRemove:
		return fmt.Sprintf("%s %s %s", m.Kind, m.Handle, m.Encoded)
	case KindSingletonClear, KindCollectionClear:
		return fmt.Sprintf("%s %s", m.Kind, m.Handle)
	case KindRender:
		return fmt.Sprintf("%s %s %q %s", m.Kind, m.Slot, m.Template, formatDict(m.Model))
	case KindDereference:
		return fmt.Sprintf("%s %s %s", m.Kind, m.StorageKey, m.ID)
	case KindServiceRequest:
		return fmt.Sprintf("%s %s %s %s", m.Kind, m.Call, m.Tag, formatDict(m.Args))
	case KindResolveURL:
		return fmt.Sprintf("%s %s", m.Kind, m.URL)
	default:
		return string(m.Kind)
	}
}

func formatDict(d particleruntime.Dictionary) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range d.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(d[k])
	}
	b.WriteByte('}')
	return b.String()
}
