package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoBackend is returned when no registered backend serves a URL.
var ErrNoBackend = errors.New("no registered backend serves URL")

// Registry resolves the backend that owns a URL. Backends are consulted in
// registration order.
type Registry struct {
	backends []Backend
}

// NewRegistry creates a registry holding backends.
func NewRegistry(backends ...Backend) *Registry {
	return &Registry{backends: backends}
}

// Names lists the registered backends in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		names = append(names, b.Name())
	}
	return names
}

// Detect returns the first backend whose MatchesURL accepts rawURL.
func (r *Registry) Detect(rawURL string) (Backend, error) {
	for _, b := range r.backends {
		if b.MatchesURL(rawURL) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w %s (registered: %s)", ErrNoBackend, rawURL, strings.Join(r.Names(), ", "))
}
