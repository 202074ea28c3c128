package entity

// State is the generic, named-variable bag an entity's user-defined
// quantities live in. The concrete storage layout of any particular model's
// state variables is explicitly out of scope for the core (spec-opaque);
// State only needs to support get/set/clone by name, the same way the
// original implementation drove state off `setattr`/`getattr` over a list
// of variable names supplied by the model.
type State struct {
	names  []string
	values map[string]any
}

// NewState allocates a state bag with the given variable names, all
// initialized to nil.
func NewState(names []string) *State {
	values := make(map[string]any, len(names))
	for _, n := range names {
		values[n] = nil
	}
	return &State{names: append([]string(nil), names...), values: values}
}

// Names returns the variable names this state was declared with.
func (s *State) Names() []string { return s.names }

// Get returns the current value of a named variable (nil if unset or
// unknown).
func (s *State) Get(name string) any { return s.values[name] }

// Set assigns a named variable.
func (s *State) Set(name string, v any) { s.values[name] = v }

// Clone returns a new State with the same variable names and a shallow copy
// of each value — matching the original's `copy(getattr(self, name))` per
// field. Deep-copying a particular value, if its type demands it, is the
// model author's responsibility (the core never inspects state contents).
func (s *State) Clone() *State {
	values := make(map[string]any, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return &State{names: s.names, values: values}
}
