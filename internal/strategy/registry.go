package strategy

import "github.com/yanun0323/errors"

var (
	ErrUnknownStrategy   = errors.New("unknown strategy id")
	ErrDuplicateStrategy = errors.New("strategy id already registered")
	ErrEmptyStrategySet  = errors.New("strategy set is empty")
)

// Constructor builds a fresh strategy instance.
type Constructor func() Strategy

// Registry maps string identifiers to strategy constructors. It is
// populated at startup and validated eagerly: an unknown id fails the
// process before the first cycle, never lazily per call.
type Registry struct {
	names  []string
	byName map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Constructor)}
}

// Register adds a constructor under an identifier.
func (r *Registry) Register(name string, ctor Constructor) error {
	if name == "" || ctor == nil {
		return ErrUnknownStrategy
	}
	if _, ok := r.byName[name]; ok {
		return errors.Wrap(ErrDuplicateStrategy, name)
	}
	r.names = append(r.names, name)
	r.byName[name] = ctor
	return nil
}

// Names returns registered identifiers in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Build instantiates the given strategy set, preserving the order of ids.
// That order is load-bearing: the runner invokes strategies in exactly this
// order every cycle.
func (r *Registry) Build(ids []string) ([]Strategy, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyStrategySet
	}
	out := make([]Strategy, 0, len(ids))
	for _, id := range ids {
		ctor, ok := r.byName[id]
		if !ok {
			return nil, errors.Wrap(ErrUnknownStrategy, id)
		}
		out = append(out, ctor())
	}
	return out, nil
}

// Default returns a registry with the built-in strategy variants.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register("ehma", func() Strategy { return EHMA{} })
	_ = r.Register("confluence", func() Strategy { return Confluence{} })
	_ = r.Register("regime-adaptive", func() Strategy { return RegimeAdaptive{} })
	return r
}
