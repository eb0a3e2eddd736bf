// ABOUTME: Explicit backend registry
// ABOUTME: Maps names to factories; built by the application, never global
package backend

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Factory creates an uninitialized backend
type Factory func() Backend

// Registry maps backend names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// RegisterBuiltins adds the device backends of this package to r. File and
// network sinks need configuration and are registered by the caller.
func RegisterBuiltins(r *Registry) {
	r.Register("malgo", func() Backend { return NewMalgo() })
	r.Register("oto", func() Backend { return NewOto() })
	r.Register("portaudio", func() Backend { return NewPortAudio() })
	r.Register("dummy", func() Backend { return NewDummy() })
}

// Register adds or replaces a factory. Names are case-insensitive.
func (r *Registry) Register(name string, f Factory) {
	name = strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; !ok {
		r.order = append(r.order, name)
	}
	r.factories[name] = f
}

// Names returns registered names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Create returns a new, uninitialized backend
func (r *Registry) Create(name string) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownBackend, name, strings.Join(r.Names(), ", "))
	}
	return f(), nil
}

// Open creates and initializes the named backend
func (r *Registry) Open(name string) (Backend, error) {
	b, err := r.Create(name)
	if err != nil {
		return nil, err
	}
	if err := b.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", name, err)
	}
	log.Infof("Using %s audio backend", b.Name())
	return b, nil
}

// OpenFirst initializes the first backend in names that succeeds
func (r *Registry) OpenFirst(names ...string) (Backend, error) {
	var errs []string
	for _, name := range names {
		b, err := r.Open(name)
		if err == nil {
			return b, nil
		}
		log.Debugf("Backend %s unavailable: %v", name, err)
		errs = append(errs, err.Error())
	}
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, strings.Join(errs, "; "))
}
