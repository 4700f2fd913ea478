package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewtec/demarcador/internal/domain"
)

type fakeStore struct {
	deleted   []domain.ClassID
	deleteErr error
	next      domain.ClassID
}

func (f *fakeStore) List(context.Context) ([]domain.Class, error) { return nil, nil }

func (f *fakeStore) Save(_ context.Context, classes []domain.Class) ([]domain.Class, error) {
	for i := range classes {
		if classes[i].ID == 0 {
			f.next++
			classes[i].ID = f.next
		}
	}
	return classes, nil
}

func (f *fakeStore) Delete(_ context.Context, id domain.ClassID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type recorder struct{ notices []domain.Notice }

func (r *recorder) Notify(_ context.Context, n domain.Notice) { r.notices = append(r.notices, n) }

func (r *recorder) last() string {
	if len(r.notices) == 0 {
		return ""
	}
	return r.notices[len(r.notices)-1].MessageID
}

func confirmWith(answer bool) domain.ConfirmFunc {
	return func(context.Context, string, map[string]any) (bool, error) { return answer, nil }
}

func TestSave_AssignsIDs(t *testing.T) {
	store := &fakeStore{}
	notes := &recorder{}
	r := New(Options{Store: store, Notifier: notes})

	require.NoError(t, r.Rename(r.AddBlank(), "Scratch"))
	require.NoError(t, r.Rename(r.AddBlank(), "Dent"))
	require.NoError(t, r.Save(context.Background()))

	assert.Equal(t, []domain.Class{{ID: 1, Name: "Scratch"}, {ID: 2, Name: "Dent"}}, r.Classes())
	assert.Equal(t, domain.MsgClassesSaved, notes.last())

	got, ok := r.Resolve(1)
	assert.True(t, ok)
	assert.Equal(t, "Scratch", got.Name)
	_, ok = r.Resolve(0)
	assert.False(t, ok)
}

func TestSave_CollectsAllErrors(t *testing.T) {
	called := false
	notes := &recorder{}
	r := New(Options{
		Notifier: notes,
		OnSave: func(_ context.Context, c []domain.Class) ([]domain.Class, error) {
			called = true
			return c, nil
		},
	})
	r.Load([]domain.Class{{ID: 1, Name: ""}, {ID: 2, Name: "Dent"}, {Name: "  "}})

	err := r.Save(context.Background())

	require.Error(t, err)
	assert.False(t, called, "no partial commit")
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 2)
	var verr *ValidationError
	require.True(t, errors.As(merr.Errors[1], &verr))
	assert.Equal(t, 2, verr.Index)
	assert.Equal(t, map[int]string{0: "name is required", 2: "name is required"}, r.Errors())
	assert.Equal(t, domain.MsgClassesInvalid, notes.last())

	require.NoError(t, r.Rename(0, "Scratch"))
	assert.Equal(t, map[int]string{2: "name is required"}, r.Errors())
}

func TestSave_FailureKeepsList(t *testing.T) {
	r := New(Options{
		OnSave: func(context.Context, []domain.Class) ([]domain.Class, error) {
			return nil, errors.New("offline")
		},
	})
	r.Load([]domain.Class{{Name: "Scratch"}})

	require.Error(t, r.Save(context.Background()))
	assert.Equal(t, []domain.Class{{Name: "Scratch"}}, r.Classes())
}

func TestRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("declined", func(t *testing.T) {
		store := &fakeStore{}
		r := New(Options{Store: store, Confirmer: confirmWith(false)})
		r.Load([]domain.Class{{ID: 1, Name: "Scratch"}})

		removed, err := r.Remove(ctx, 0)
		require.NoError(t, err)
		assert.False(t, removed)
		assert.Len(t, r.Classes(), 1)
		assert.Empty(t, store.deleted)
	})

	t.Run("persisted", func(t *testing.T) {
		store := &fakeStore{}
		r := New(Options{Store: store, Confirmer: confirmWith(true)})
		r.Load([]domain.Class{{ID: 1, Name: "Scratch"}, {ID: 2, Name: "Dent"}})

		removed, err := r.Remove(ctx, 0)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Equal(t, []domain.ClassID{1}, store.deleted)
		assert.Equal(t, []domain.Class{{ID: 2, Name: "Dent"}}, r.Classes())
	})

	t.Run("unsaved skips store", func(t *testing.T) {
		store := &fakeStore{}
		r := New(Options{Store: store, Confirmer: confirmWith(true)})
		r.AddBlank()

		removed, err := r.Remove(ctx, 0)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Empty(t, store.deleted)
		assert.Empty(t, r.Classes())
	})

	t.Run("store failure leaves state", func(t *testing.T) {
		notes := &recorder{}
		store := &fakeStore{deleteErr: errors.New("boom")}
		r := New(Options{Store: store, Confirmer: confirmWith(true), Notifier: notes})
		r.Load([]domain.Class{{ID: 1, Name: "Scratch"}})

		removed, err := r.Remove(ctx, 0)
		require.Error(t, err)
		assert.False(t, removed)
		assert.Len(t, r.Classes(), 1)
		assert.Equal(t, domain.MsgClassDeleteFailed, notes.last())
	})

	t.Run("out of range", func(t *testing.T) {
		r := New(Options{})
		_, err := r.Remove(ctx, 3)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		assert.ErrorIs(t, r.Rename(-1, "x"), ErrIndexOutOfRange)
	})
}

func TestRemove_ShiftsErrors(t *testing.T) {
	r := New(Options{Confirmer: confirmWith(true)})
	r.Load([]domain.Class{{Name: ""}, {Name: "ok"}, {Name: ""}})
	require.Error(t, r.Save(context.Background()))

	_, err := r.Remove(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, map[int]string{1: "name is required"}, r.Errors())
}
