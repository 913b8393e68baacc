package changeset

import (
	"errors"
	"fmt"
)

// State is the explicit lifecycle of an entity editor. Independent booleans
// (isEditing, isSaving) would allow illegal combinations; the enum does not.
type State int

const (
	StateViewing State = iota
	StateEditing
	StateCommentPending
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateViewing:
		return "viewing"
	case StateEditing:
		return "editing"
	case StateCommentPending:
		return "comment-pending"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned for calls that are not legal in the
// editor's current state.
var ErrInvalidTransition = errors.New("changeset: invalid transition")

// Editor drives the Viewing → Editing → CommentPending → Saving workflow for
// one entity. Loaded holds the last authoritative entity; Draft is the working
// copy mutated while editing. Draft survives a failed save so the user can
// retry.
type Editor[T any] struct {
	state   State
	loaded  T
	draft   T
	diff    *Diff
	comment string
}

// NewEditor returns an editor in the Viewing state holding the loaded entity.
func NewEditor[T any](loaded T) *Editor[T] {
	return &Editor[T]{state: StateViewing, loaded: loaded, draft: loaded}
}

// State returns the current lifecycle state.
func (e *Editor[T]) State() State { return e.state }

// Loaded returns the last authoritative entity.
func (e *Editor[T]) Loaded() T { return e.loaded }

// Draft returns the working copy.
func (e *Editor[T]) Draft() T { return e.draft }

// Edit snapshots the loaded entity into a draft and enters Editing. No
// network or database effect.
func (e *Editor[T]) Edit() error {
	if e.state != StateViewing {
		return fmt.Errorf("%w: edit from %s", ErrInvalidTransition, e.state)
	}
	e.draft = e.loaded
	e.state = StateEditing
	return nil
}

// SetDraft replaces the working copy while editing.
func (e *Editor[T]) SetDraft(draft T) error {
	if e.state != StateEditing {
		return fmt.Errorf("%w: set draft from %s", ErrInvalidTransition, e.state)
	}
	e.draft = draft
	return nil
}

// Review computes the save decision from the provided diff. An empty diff
// returns the editor straight to Viewing (idempotent no-op save); a non-empty
// diff enters CommentPending. The returned state tells the caller which
// happened.
func (e *Editor[T]) Review(diff *Diff) (State, error) {
	if e.state != StateEditing {
		return e.state, fmt.Errorf("%w: review from %s", ErrInvalidTransition, e.state)
	}
	if diff == nil || diff.Empty() {
		e.state = StateViewing
		e.diff = nil
		return StateViewing, nil
	}
	e.diff = diff
	e.state = StateCommentPending
	return StateCommentPending, nil
}

// Confirm accepts the (optional, possibly empty) comment and enters Saving.
func (e *Editor[T]) Confirm(comment string) error {
	if e.state != StateCommentPending {
		return fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, e.state)
	}
	e.comment = comment
	e.state = StateSaving
	return nil
}

// Diff returns the reviewed change list, or nil outside the save path.
func (e *Editor[T]) Diff() *Diff { return e.diff }

// Comment returns the confirmed comment.
func (e *Editor[T]) Comment() string { return e.comment }

// Complete records a successful save. The authoritative entity is reloaded
// from the backend rather than trusted from the draft.
func (e *Editor[T]) Complete(reloaded T) error {
	if e.state != StateSaving {
		return fmt.Errorf("%w: complete from %s", ErrInvalidTransition, e.state)
	}
	e.loaded = reloaded
	e.draft = reloaded
	e.diff = nil
	e.comment = ""
	e.state = StateViewing
	return nil
}

// Fail records a rejected save. The draft is preserved and the editor returns
// to Editing so the user may retry or cancel.
func (e *Editor[T]) Fail() error {
	if e.state != StateSaving {
		return fmt.Errorf("%w: fail from %s", ErrInvalidTransition, e.state)
	}
	e.diff = nil
	e.comment = ""
	e.state = StateEditing
	return nil
}

// Cancel discards the draft and reverts to the last-loaded entity. Legal in
// any state before Saving.
func (e *Editor[T]) Cancel() error {
	if e.state == StateSaving {
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, e.state)
	}
	e.draft = e.loaded
	e.diff = nil
	e.comment = ""
	e.state = StateViewing
	return nil
}
