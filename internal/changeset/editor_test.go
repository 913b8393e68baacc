package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleDraft struct {
	Name        string
	Description string
	IsActive    bool
}

func TestEditorHappyPath(t *testing.T) {
	editor := NewEditor(roleDraft{Name: "Editors", IsActive: true})
	require.Equal(t, StateViewing, editor.State())

	require.NoError(t, editor.Edit())
	require.Equal(t, StateEditing, editor.State())

	draft := editor.Draft()
	draft.Name = "Maintainers"
	require.NoError(t, editor.SetDraft(draft))

	var diff Diff
	diff.CompareString("name", "Name", editor.Loaded().Name, editor.Draft().Name)
	state, err := editor.Review(&diff)
	require.NoError(t, err)
	require.Equal(t, StateCommentPending, state)

	require.NoError(t, editor.Confirm("renamed for clarity"))
	require.Equal(t, StateSaving, editor.State())
	assert.Equal(t, "renamed for clarity", editor.Comment())
	assert.Equal(t, []string{"Name: Editors → Maintainers"}, editor.Diff().Lines())

	require.NoError(t, editor.Complete(roleDraft{Name: "Maintainers", IsActive: true}))
	assert.Equal(t, StateViewing, editor.State())
	assert.Equal(t, "Maintainers", editor.Loaded().Name)
}

func TestEditorEmptyDiffIsNoOp(t *testing.T) {
	editor := NewEditor(roleDraft{Name: "A"})
	require.NoError(t, editor.Edit())

	var diff Diff
	diff.CompareString("name", "Name", "A", "A")
	state, err := editor.Review(&diff)
	require.NoError(t, err)

	// Straight back to Viewing, never CommentPending: no save happens.
	assert.Equal(t, StateViewing, state)
	assert.Nil(t, editor.Diff())
}

func TestEditorEmptyCommentIsAccepted(t *testing.T) {
	editor := NewEditor(roleDraft{Name: "A"})
	require.NoError(t, editor.Edit())
	require.NoError(t, editor.SetDraft(roleDraft{Name: "B"}))

	var diff Diff
	diff.CompareString("name", "Name", "A", "B")
	_, err := editor.Review(&diff)
	require.NoError(t, err)

	// Comment is optional: empty string passes CommentPending.
	require.NoError(t, editor.Confirm(""))
	assert.Equal(t, StateSaving, editor.State())
}

func TestEditorFailPreservesDraft(t *testing.T) {
	editor := NewEditor(roleDraft{Name: "A"})
	require.NoError(t, editor.Edit())
	require.NoError(t, editor.SetDraft(roleDraft{Name: "B"}))

	var diff Diff
	diff.CompareString("name", "Name", "A", "B")
	_, err := editor.Review(&diff)
	require.NoError(t, err)
	require.NoError(t, editor.Confirm("change"))

	require.NoError(t, editor.Fail())
	assert.Equal(t, StateEditing, editor.State())
	assert.Equal(t, "B", editor.Draft().Name)
	assert.Equal(t, "A", editor.Loaded().Name)
}

func TestEditorCancelDiscardsDraft(t *testing.T) {
	editor := NewEditor(roleDraft{Name: "A"})
	require.NoError(t, editor.Edit())
	require.NoError(t, editor.SetDraft(roleDraft{Name: "B"}))

	require.NoError(t, editor.Cancel())
	assert.Equal(t, StateViewing, editor.State())
	assert.Equal(t, "A", editor.Draft().Name)
}

func TestEditorIllegalTransitions(t *testing.T) {
	editor := NewEditor(roleDraft{})

	// Saving while not editing is unrepresentable.
	assert.ErrorIs(t, editor.Confirm("x"), ErrInvalidTransition)
	assert.ErrorIs(t, editor.Complete(roleDraft{}), ErrInvalidTransition)
	assert.ErrorIs(t, editor.Fail(), ErrInvalidTransition)
	_, err := editor.Review(&Diff{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, editor.Edit())
	assert.ErrorIs(t, editor.Edit(), ErrInvalidTransition)

	var diff Diff
	diff.CompareString("name", "Name", "", "B")
	_, err = editor.Review(&diff)
	require.NoError(t, err)
	require.NoError(t, editor.Confirm(""))

	// In-flight save cannot be cancelled.
	assert.ErrorIs(t, editor.Cancel(), ErrInvalidTransition)
}
