package provider

import (
	"fmt"
	"strings"
)

// Registry holds the configured PRBackend implementations and picks one by
// name or by pull request URL.
type Registry struct {
	backends []PRBackend
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a PRBackend implementation to the registry.
func (r *Registry) Register(b PRBackend) {
	r.backends = append(r.backends, b)
}

// Names lists registered backend names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		names = append(names, b.Name())
	}
	return names
}

// Detect returns the first backend whose MatchesURL accepts url.
func (r *Registry) Detect(url string) (PRBackend, error) {
	for _, b := range r.backends {
		if b.MatchesURL(url) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("no registered backend matches URL: %s", url)
}

// Get looks up a registered backend by its Name().
func (r *Registry) Get(name string) (PRBackend, error) {
	for _, b := range r.backends {
		if b.Name() == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("no registered backend with name %q (have: %s)", name, strings.Join(r.Names(), ", "))
}

// Resolve picks a backend for a PR reference: a URL is matched with Detect,
// anything else (a bare number, owner/repo#N) goes to the named fallback.
func (r *Registry) Resolve(ref, fallback string) (PRBackend, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return r.Detect(ref)
	}
	return r.Get(fallback)
}
