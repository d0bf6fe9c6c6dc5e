package tools

import (
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-live/core/transport"
)

var ErrRegistrySealed = errors.New("tool registry is sealed")

// Registry holds the tools offered to the model. It becomes read-only once
// sealed by the session start.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	sealed bool
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool)}
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	if tool.handler == nil {
		return fmt.Errorf("tool %q was not built with a handler", tool.Name)
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q is already registered", tool.Name)
	}
	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
	return nil
}

func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Declarations lists the tools in registration order.
func (r *Registry) Declarations() []transport.ToolDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	declarations := make([]transport.ToolDeclaration, 0, len(r.order))
	for _, name := range r.order {
		declarations = append(declarations, r.tools[name].Declaration())
	}
	return declarations
}
