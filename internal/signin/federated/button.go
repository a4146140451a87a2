// Package federated renders third-party sign-in buttons and builds the
// authorization URLs they point at.
package federated

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Button is a federated sign-in option shown under the credentials form.
type Button interface {
	// Name is the stable identifier used in /login/{name} routes.
	Name() string
	// Label is the visible button text.
	Label() string
	// StartURL returns the provider authorization URL for state, asking the
	// provider to return to redirectURI.
	StartURL(state, redirectURI string) string
}

// NewState returns an unguessable OAuth state value.
func NewState() string {
	return uuid.NewString()
}

// Registry holds the configured buttons in display order.
type Registry struct {
	order   []string
	buttons map[string]Button
}

// NewRegistry builds a Registry. Nil buttons are skipped; later duplicates replace earlier ones.
func NewRegistry(buttons ...Button) *Registry {
	r := &Registry{buttons: make(map[string]Button)}
	for _, b := range buttons {
		if b == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(b.Name()))
		if name == "" {
			continue
		}
		if _, exists := r.buttons[name]; !exists {
			r.order = append(r.order, name)
		}
		r.buttons[name] = b
	}
	return r
}

// Lookup finds a button by name, case-insensitively.
func (r *Registry) Lookup(name string) (Button, bool) {
	if r == nil {
		return nil, false
	}
	b, ok := r.buttons[strings.ToLower(strings.TrimSpace(name))]
	return b, ok
}

// Buttons returns the buttons in display order.
func (r *Registry) Buttons() []Button {
	if r == nil {
		return nil
	}
	out := make([]Button, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.buttons[name])
	}
	return out
}

// Names returns the registered names sorted alphabetically.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}
