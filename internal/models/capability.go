package models

import "slices"

// Capability is a mutation kind an origin may or may not accept.
type Capability string

const (
	CapUpdateStatus   Capability = "updateStatus"
	CapUpdateFields   Capability = "updateFields"
	CapCreate         Capability = "create"
	CapDelete         Capability = "delete"
	CapMutateSubtasks Capability = "mutateSubtasks"
	CapComment        Capability = "comment"
	CapAttach         Capability = "attach"
	CapImport         Capability = "import"
)

// CapabilitySet is the declared set of mutation kinds for an adapter.
type CapabilitySet map[Capability]struct{}

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Missing returns the kinds in required that s does not contain, in order.
func (s CapabilitySet) Missing(required []Capability) []Capability {
	var missing []Capability
	for _, c := range required {
		if !s.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// List returns the set sorted by name.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
