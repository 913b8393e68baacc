package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToggle(t *testing.T) {
	s := New("p1")

	s.Toggle("p2")
	assert.True(t, s.Contains("p2"))

	s.Toggle("p2")
	assert.False(t, s.Contains("p2"))
	assert.True(t, s.Contains("p1"))
}

func TestSelectAllIsIdempotentUnion(t *testing.T) {
	s := New("p1", "x9")

	s.SelectAll([]string{"p1", "p2", "p3"})
	assert.Equal(t, []string{"p1", "p2", "p3", "x9"}, s.Sorted())

	// Repeating changes nothing.
	s.SelectAll([]string{"p1", "p2", "p3"})
	assert.Equal(t, []string{"p1", "p2", "p3", "x9"}, s.Sorted())
}

func TestClearAllRemovesOnlyUniverseMembers(t *testing.T) {
	s := New("p1", "p2", "x9")

	s.ClearAll([]string{"p1", "p2", "p3"})
	assert.Equal(t, []string{"x9"}, s.Sorted())
}

func TestSelectAllClearAllRoundTrip(t *testing.T) {
	universe := []string{"p1", "p2", "p3"}

	cases := map[string][]string{
		"empty selection":        {},
		"partial overlap":        {"p2", "x9"},
		"full universe selected": {"p1", "p2", "p3"},
		"disjoint selection":     {"x1", "x2"},
	}

	for name, initial := range cases {
		t.Run(name, func(t *testing.T) {
			s := New(initial...)
			before := s.Sorted()

			s.SelectAll(universe)
			s.ClearAll(universe)

			// ClearAll removes everything SelectAll added plus any prior
			// universe members, so the round trip keeps only the selection
			// outside the universe.
			expected := New()
			for _, id := range before {
				inUniverse := false
				for _, u := range universe {
					if id == u {
						inUniverse = true
						break
					}
				}
				if !inUniverse {
					expected.Toggle(id)
				}
			}
			assert.Equal(t, expected.Sorted(), s.Sorted())
		})
	}
}

func TestValuesPreservesInsertionOrder(t *testing.T) {
	s := New("b", "a")
	s.Toggle("c")
	assert.Equal(t, []string{"b", "a", "c"}, s.Values())
}
