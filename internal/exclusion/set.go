// Package exclusion tracks the content ids a run must not pick: ids already
// published and ids rejected during the current session.
package exclusion

// Set is a grow-only set of content ids. It is owned by a single run and is
// not safe for concurrent use.
type Set struct {
	ids     map[string]struct{}
	ignored []string
}

// New seeds the set with the ids from the publication history
func New(history []string) *Set {
	s := &Set{ids: make(map[string]struct{}, len(history))}
	for _, id := range history {
		s.Add(id)
	}
	return s
}

// Contains reports whether id is excluded
func (s *Set) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Add excludes id. Adding an existing id is a no-op.
func (s *Set) Add(id string) {
	s.ids[id] = struct{}{}
}

// Ignore excludes id and records it on the session ignore list
func (s *Set) Ignore(id string) {
	if s.Contains(id) {
		return
	}
	s.Add(id)
	s.ignored = append(s.ignored, id)
}

// Ignored returns the session ignore list in insertion order
func (s *Set) Ignored() []string {
	out := make([]string, len(s.ignored))
	copy(out, s.ignored)
	return out
}

// Len returns the number of excluded ids
func (s *Set) Len() int {
	return len(s.ids)
}
