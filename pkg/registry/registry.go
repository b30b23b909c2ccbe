package registry

import (
	"fmt"
	"sync"

	"github.com/aretw0/rootcause/pkg/rule"
)

// Registry manages the available rules.
// Rules are registered explicitly at startup and listed in registration order.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]rule.Rule
	order []string
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules: make(map[string]rule.Rule),
	}
}

// Register adds rules to the registry.
// Returns an error if a rule with the same name is already registered.
func (r *Registry) Register(rules ...rule.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rl := range rules {
		if rl == nil {
			return fmt.Errorf("cannot register nil rule")
		}
		name := rl.Name()
		if _, exists := r.rules[name]; exists {
			return fmt.Errorf("rule already registered: %s", name)
		}
		r.rules[name] = rl
		r.order = append(r.order, name)
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(rules ...rule.Rule) {
	if err := r.Register(rules...); err != nil {
		panic(err)
	}
}

// Lookup returns a rule by name.
func (r *Registry) Lookup(name string) (rule.Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rl, ok := r.rules[name]
	return rl, ok
}

// Rules returns the registered rules in registration order.
func (r *Registry) Rules() []rule.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]rule.Rule, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.rules[name])
	}
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
