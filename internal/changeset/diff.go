// Package changeset implements the diff-and-comment mutation workflow: every
// role, permission and permission-group update surfaces a human-readable
// change list and an optional comment before anything is persisted.
package changeset

import "fmt"

// Change is one rendered line of a change list.
type Change struct {
	Field   string `json:"field"`
	Summary string `json:"summary"`
}

// Diff accumulates field-level changes between a loaded entity and its draft.
type Diff struct {
	changes []Change
}

// CompareString records a scalar change when old and new differ.
func (d *Diff) CompareString(field, label, oldValue, newValue string) {
	if oldValue == newValue {
		return
	}
	d.changes = append(d.changes, Change{
		Field:   field,
		Summary: fmt.Sprintf("%s: %s → %s", label, oldValue, newValue),
	})
}

// CompareState records a boolean state change rendered with the provided
// state labels (for example Active/Inactive in the caller's locale).
func (d *Diff) CompareState(field, label string, oldValue, newValue bool, activeLabel, inactiveLabel string) {
	if oldValue == newValue {
		return
	}
	d.changes = append(d.changes, Change{
		Field:   field,
		Summary: fmt.Sprintf("%s: %s → %s", label, stateLabel(oldValue, activeLabel, inactiveLabel), stateLabel(newValue, activeLabel, inactiveLabel)),
	})
}

// CompareSet records a set-valued change as addition/removal counts. The
// summary line never enumerates ids.
func (d *Diff) CompareSet(field, label string, oldValues, newValues []string) {
	oldSet := toSet(oldValues)
	newSet := toSet(newValues)

	added := 0
	for value := range newSet {
		if _, ok := oldSet[value]; !ok {
			added++
		}
	}
	removed := 0
	for value := range oldSet {
		if _, ok := newSet[value]; !ok {
			removed++
		}
	}
	if added == 0 && removed == 0 {
		return
	}
	d.changes = append(d.changes, Change{
		Field:   field,
		Summary: fmt.Sprintf("%s: %d added, %d removed", label, added, removed),
	})
}

// Empty reports whether no changes were recorded.
func (d *Diff) Empty() bool {
	return len(d.changes) == 0
}

// Changes returns the recorded change list in insertion order.
func (d *Diff) Changes() []Change {
	return d.changes
}

// Lines returns the rendered summaries, ready for display or audit.
func (d *Diff) Lines() []string {
	lines := make([]string, len(d.changes))
	for i, change := range d.changes {
		lines[i] = change.Summary
	}
	return lines
}

func stateLabel(value bool, activeLabel, inactiveLabel string) string {
	if value {
		return activeLabel
	}
	return inactiveLabel
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[value] = struct{}{}
	}
	return set
}
