// Package skills keeps the name-keyed registry of skill types. A registry is
// a value owned by the composing application and handed to the execution
// context; built-in skills are loaded into it by an explicit call.
package skills

import (
	"context"
	"sort"
	"sync"

	"github.com/dhwoox/Final-RAG/pkg/skills/builtin"
	skilltypes "github.com/dhwoox/Final-RAG/pkg/types/skills"
)

// Registry maps skill names to skill types.
type Registry struct {
	mu          sync.RWMutex
	types       map[string]skilltypes.Type
	builtinOnce sync.Once
	builtinErr  error
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]skilltypes.Type)}
}

// Register adds a skill type under its name.
func (r *Registry) Register(t skilltypes.Type) error {
	if t.Name == "" {
		return skilltypes.NewError(skilltypes.KindInvalidInstruction, "skill type has no name")
	}
	if t.New == nil {
		return skilltypes.NewError(skilltypes.KindInvalidInstruction, "skill %q has no constructor", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.Name]; exists {
		return skilltypes.NewError(skilltypes.KindDuplicateSkill, "skill %q is already registered", t.Name)
	}
	r.types[t.Name] = t
	return nil
}

// Get returns the skill type registered under name.
func (r *Registry) Get(name string) (skilltypes.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Create instantiates the named skill with sc and executes it with kwargs.
func (r *Registry) Create(ctx context.Context, name string, sc skilltypes.Context, kwargs map[string]any) (*skilltypes.Result, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, skilltypes.NewError(skilltypes.KindUnknownSkill, "unknown skill %q", name)
	}
	return t.Execute(ctx, sc, kwargs)
}

// List returns every registered skill type sorted by name.
func (r *Registry) List() []skilltypes.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]skilltypes.Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EnsureBuiltinLoaded registers the built-in skills. Only the first call has
// an effect; later calls return its result.
func (r *Registry) EnsureBuiltinLoaded() error {
	r.builtinOnce.Do(func() {
		for _, t := range builtin.All() {
			if err := r.Register(t); err != nil {
				r.builtinErr = err
				return
			}
		}
	})
	return r.builtinErr
}
