package persona

// Store exposes persona retrieval for handlers and the session registry.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore implements Store over a fixed, ordered set of personas indexed by id.
// Later entries with a duplicate id are ignored.
type MemoryStore struct {
	order []Persona
	byID  map[string]int
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]int, len(items))}
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, dup := s.byID[item.ID]; dup {
			continue
		}
		s.byID[item.ID] = len(s.order)
		s.order = append(s.order, item)
	}
	return s
}

// List returns a copy of the personas in insertion order.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.order...)
}

// FindByID looks up a persona by identifier. An empty id selects DefaultID.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	if id == "" {
		id = DefaultID
	}
	idx, ok := s.byID[id]
	if !ok {
		return Persona{}, false
	}
	return s.order[idx], true
}
