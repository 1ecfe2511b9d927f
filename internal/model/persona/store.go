package persona

import "sort"

// Store exposes read-only persona retrieval.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore holds the descriptor set loaded at startup. Lookups go through
// an id index; List returns descriptors in id order so the HTTP listing is
// stable across requests.
type MemoryStore struct {
	ordered []Persona
	byID    map[string]Persona
}

// NewMemoryStore indexes a copy of the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{
		ordered: append([]Persona(nil), items...),
		byID:    make(map[string]Persona, len(items)),
	}
	sort.Slice(s.ordered, func(i, j int) bool { return s.ordered[i].ID < s.ordered[j].ID })
	for _, p := range s.ordered {
		s.byID[p.ID] = p
	}
	return s
}

// List returns the registered personas in id order.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.ordered...)
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	p, ok := s.byID[id]
	return p, ok
}
