package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/notely/internal/database/testutil"
	"github.com/charlesng35/notely/internal/models"
	appErrors "github.com/charlesng35/notely/pkg/errors"
)

func strPtr(value string) *string { return &value }

func newNoteFixture(t *testing.T) (*NoteService, string, string) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	owner := models.Account{Email: "owner@x.com", FullName: "Owner", Verified: true}
	other := models.Account{Email: "other@x.com", FullName: "Other", Verified: true}
	require.NoError(t, db.Create(&owner).Error)
	require.NoError(t, db.Create(&other).Error)

	svc, err := NewNoteService(db)
	require.NoError(t, err)
	return svc, owner.ID, other.ID
}

func TestNoteServiceCreateAndList(t *testing.T) {
	svc, owner, other := newNoteFixture(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, owner, NoteInput{Title: strPtr("First"), Content: strPtr("one")})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	second, err := svc.Create(ctx, owner, NoteInput{Title: strPtr(" Second "), Content: strPtr("two")})
	require.NoError(t, err)
	require.Equal(t, "Second", second.Title)

	_, err = svc.Create(ctx, other, NoteInput{Title: strPtr("Theirs"), Content: strPtr("x")})
	require.NoError(t, err)

	notes, err := svc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	require.Equal(t, second.ID, notes[0].ID)
	require.Equal(t, first.ID, notes[1].ID)
}

func TestNoteServiceCreateRequiresFields(t *testing.T) {
	svc, owner, _ := newNoteFixture(t)

	_, err := svc.Create(context.Background(), owner, NoteInput{Title: strPtr("Title")})
	require.ErrorIs(t, err, appErrors.ErrNoteInvalid)
	_, err = svc.Create(context.Background(), owner, NoteInput{Title: strPtr("  "), Content: strPtr("body")})
	require.ErrorIs(t, err, appErrors.ErrNoteInvalid)
}

func TestNoteServiceScopesByOwner(t *testing.T) {
	svc, owner, other := newNoteFixture(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, owner, NoteInput{Title: strPtr("Mine"), Content: strPtr("secret")})
	require.NoError(t, err)

	_, err = svc.Get(ctx, other, note.ID)
	require.ErrorIs(t, err, appErrors.ErrNoteNotFound)
	_, err = svc.Update(ctx, other, note.ID, NoteInput{Title: strPtr("Hijacked")})
	require.ErrorIs(t, err, appErrors.ErrNoteNotFound)
	_, err = svc.TogglePin(ctx, other, note.ID)
	require.ErrorIs(t, err, appErrors.ErrNoteNotFound)
	require.ErrorIs(t, svc.Delete(ctx, other, note.ID), appErrors.ErrNoteNotFound)

	got, err := svc.Get(ctx, owner, note.ID)
	require.NoError(t, err)
	require.Equal(t, "Mine", got.Title)
}

func TestNoteServiceUpdate(t *testing.T) {
	svc, owner, _ := newNoteFixture(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, owner, NoteInput{Title: strPtr("Draft"), Content: strPtr("body")})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, owner, note.ID, NoteInput{Title: strPtr("Final")})
	require.NoError(t, err)
	require.Equal(t, "Final", updated.Title)
	require.Equal(t, "body", updated.Content)

	_, err = svc.Update(ctx, owner, note.ID, NoteInput{Content: strPtr("")})
	require.ErrorIs(t, err, appErrors.ErrNoteInvalid)

	unchanged, err := svc.Update(ctx, owner, note.ID, NoteInput{})
	require.NoError(t, err)
	require.Equal(t, "Final", unchanged.Title)
}

func TestNoteServiceTogglePinAndDelete(t *testing.T) {
	svc, owner, _ := newNoteFixture(t)
	ctx := context.Background()

	note, err := svc.Create(ctx, owner, NoteInput{Title: strPtr("Pin me"), Content: strPtr("body")})
	require.NoError(t, err)
	require.False(t, note.Pinned)

	pinned, err := svc.TogglePin(ctx, owner, note.ID)
	require.NoError(t, err)
	require.True(t, pinned.Pinned)

	unpinned, err := svc.TogglePin(ctx, owner, note.ID)
	require.NoError(t, err)
	require.False(t, unpinned.Pinned)

	require.NoError(t, svc.Delete(ctx, owner, note.ID))
	_, err = svc.Get(ctx, owner, note.ID)
	require.ErrorIs(t, err, appErrors.ErrNoteNotFound)
}
