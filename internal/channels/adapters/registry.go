package adapters

import (
	"fmt"
	"sync"

	"github.com/stockline-hq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stockline-hq/stockline-backend/pkg/errors"
)

// ErrUnsupportedType is returned when no adapter is registered for the
// requested channel type.
var ErrUnsupportedType = pkgerrors.New(pkgerrors.CodeNotFound, "unsupported channel type")

// Registry holds the adapters known to this process. Registration happens
// during startup; lookups are concurrency safe.
type Registry struct {
	mu       sync.RWMutex
	adapters map[enums.ChannelType]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[enums.ChannelType]Adapter)}
}

// Register adds an adapter, replacing any previous registration for the
// same type.
func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return fmt.Errorf("adapter is nil")
	}
	if a.Type() == "" {
		return fmt.Errorf("adapter reports empty channel type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Type()] = a
	return nil
}

// Get returns the adapter for the given channel type.
func (r *Registry) Get(channelType enums.ChannelType) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[channelType]
	if !ok {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrUnsupportedType, fmt.Sprintf("no adapter registered for channel type %q", channelType))
	}
	return a, nil
}

// Has reports whether an adapter is registered for the given type.
func (r *Registry) Has(channelType enums.ChannelType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[channelType]
	return ok
}

// List returns the registered channel types in unspecified order.
func (r *Registry) List() []enums.ChannelType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]enums.ChannelType, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	return types
}
