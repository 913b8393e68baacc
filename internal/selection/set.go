// Package selection implements the working-set editor used for bulk
// membership edits (permissions on a group or role, users for a role). The
// editor may only see part of the overall selection at a time, so select-all
// and clear-all operate strictly within the visible universe.
package selection

import "sort"

// Set is a transient selection working set keyed by id. It is owned by a
// single editor instance and reconciled against the authoritative membership
// only on save.
type Set struct {
	members map[string]struct{}
	order   []string
}

// New builds a set seeded with the current membership, preserving order.
func New(ids ...string) *Set {
	s := &Set{members: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.add(id)
	}
	return s
}

// Toggle flips membership of a single id.
func (s *Set) Toggle(id string) {
	if _, ok := s.members[id]; ok {
		s.remove(id)
		return
	}
	s.add(id)
}

// Contains reports membership.
func (s *Set) Contains(id string) bool {
	_, ok := s.members[id]
	return ok
}

// SelectAll adds every id of the universe not already present. Selections
// outside the universe are untouched, so a partial view cannot clobber them.
func (s *Set) SelectAll(universe []string) {
	for _, id := range universe {
		if _, ok := s.members[id]; !ok {
			s.add(id)
		}
	}
}

// ClearAll removes only the universe's members, leaving unrelated selections
// in place.
func (s *Set) ClearAll(universe []string) {
	for _, id := range universe {
		s.remove(id)
	}
}

// Len returns the number of selected ids.
func (s *Set) Len() int {
	return len(s.members)
}

// Values returns the selection in insertion order. This is the list a save
// commits back as the authoritative membership.
func (s *Set) Values() []string {
	values := make([]string, len(s.order))
	copy(values, s.order)
	return values
}

// Sorted returns the selection in lexical order, for stable comparisons.
func (s *Set) Sorted() []string {
	values := s.Values()
	sort.Strings(values)
	return values
}

func (s *Set) add(id string) {
	if _, ok := s.members[id]; ok {
		return
	}
	s.members[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *Set) remove(id string) {
	if _, ok := s.members[id]; !ok {
		return
	}
	delete(s.members, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
