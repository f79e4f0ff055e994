// Package sender provides the outbox sender registry and its channel implementations.
package sender

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/roofline/crmcore/internal/errors"
	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
)

// Registry maps event types to senders. Event types without a route use the
// default sender; when there is none the event fails permanently.
type Registry struct {
	senders       map[string]outboxDomain.Sender
	routes        map[string]string
	defaultSender string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[string]outboxDomain.Sender),
		routes:  make(map[string]string),
	}
}

// Register adds a named sender.
func (r *Registry) Register(name string, sender outboxDomain.Sender) {
	r.senders[name] = sender
}

// Route sends events of eventType through the sender registered as name.
func (r *Registry) Route(eventType, name string) {
	r.routes[eventType] = name
}

// SetDefault sets the sender for unrouted event types. An empty name disables the fallback.
func (r *Registry) SetDefault(name string) {
	r.defaultSender = name
}

// Names returns the registered sender names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.senders))
	for name := range r.senders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every route and the default point at registered senders.
func (r *Registry) Validate() error {
	for eventType, name := range r.routes {
		if _, ok := r.senders[name]; !ok {
			return fmt.Errorf("route %q references unknown sender %q", eventType, name)
		}
	}
	if r.defaultSender != "" {
		if _, ok := r.senders[r.defaultSender]; !ok {
			return fmt.Errorf("default sender %q is not registered", r.defaultSender)
		}
	}
	return nil
}

// Resolve returns the sender for eventType.
func (r *Registry) Resolve(eventType string) (outboxDomain.Sender, error) {
	name, ok := r.routes[eventType]
	if !ok {
		name = r.defaultSender
	}

	sender, ok := r.senders[name]
	if !ok {
		return nil, outboxDomain.Permanent(apperrors.Wrapf(outboxDomain.ErrNoSender, "event type %q", eventType))
	}
	return sender, nil
}

// ParseRoutes parses "event.type=sender,other.type=sender" into a route table.
func ParseRoutes(raw string) (map[string]string, error) {
	routes := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		eventType, name, found := strings.Cut(pair, "=")
		eventType = strings.TrimSpace(eventType)
		name = strings.TrimSpace(name)
		if !found || eventType == "" || name == "" {
			return nil, fmt.Errorf("invalid outbox route %q: expected event_type=sender", pair)
		}
		if _, dup := routes[eventType]; dup {
			return nil, fmt.Errorf("duplicate outbox route for %q", eventType)
		}
		routes[eventType] = name
	}
	return routes, nil
}

// metadata returns the attributes every channel forwards alongside the payload.
func metadata(msg outboxDomain.Message) map[string]string {
	md := map[string]string{
		"event-id":        msg.EventID.String(),
		"event-type":      msg.EventType,
		"tenant-id":       msg.TenantID.String(),
		"aggregate-type":  msg.AggregateType,
		"aggregate-id":    msg.AggregateID,
		"attempt":         fmt.Sprintf("%d", msg.Attempt),
		"idempotency-key": msg.DeduplicationKey(),
	}
	return md
}
