package checkpoint

// State is the accumulated workflow configuration carried between steps
// and persisted inside every checkpoint. Values must be representable as
// nested maps, lists, and scalars so that every store backend can encode
// them; the persisted form is stable across versions to support resume.
type State map[string]any

// Merge returns a new State with the entries of other layered over s.
// Top-level keys in other win. Neither input is modified.
func (s State) Merge(other State) State {
	merged := make(State, len(s)+len(other))
	for k, v := range s {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Clone returns a shallow copy of s. Nested containers are shared;
// steps treat state values as immutable once returned.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	cp := make(State, len(s))
	for k, v := range s {
		cp[k] = v
	}
	return cp
}

// String returns the string value for key, or "" if absent or not a string.
func (s State) String(key string) string {
	v, _ := s[key].(string)
	return v
}
