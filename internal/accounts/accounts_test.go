package accounts

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartattend/internal/i18n"
	"smartattend/internal/store"
)

func setup() *Service {
	s := NewService(store.NewMemory())
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}
	return s
}

func TestLoginUnknownName(t *testing.T) {
	s := setup()
	_, err := s.Login(context.Background(), "Nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, ok := s.Current(context.Background())
	assert.False(t, ok)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s := setup()

	reg, err := s.Register(ctx, Teacher{Name: "  Sonia Ben Ali ", Email: "s@school.test", Classes: []string{"C1", "C1", "C2"}})
	require.NoError(t, err)
	assert.Equal(t, "t1", reg.ID)
	assert.Equal(t, "Sonia Ben Ali", reg.Name)
	assert.Equal(t, []string{"C1", "C2"}, reg.Classes)

	cur, ok := s.Current(ctx)
	require.True(t, ok)
	assert.Equal(t, reg, cur)

	require.NoError(t, s.Logout(ctx))
	_, ok = s.Current(ctx)
	assert.False(t, ok)

	got, err := s.Login(ctx, "sonia ben ALI")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)
	cur, _ = s.Current(ctx)
	assert.Equal(t, reg.ID, cur.ID)
}

func TestRegisterRequiresName(t *testing.T) {
	_, err := setup().Register(context.Background(), Teacher{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidTeacher)
}

func TestClassesAndRename(t *testing.T) {
	ctx := context.Background()
	s := setup()
	reg, err := s.Register(ctx, Teacher{Name: "Karim"})
	require.NoError(t, err)

	tch, err := s.AddClass(ctx, reg.ID, "bac Lettres 1")
	require.NoError(t, err)
	tch, err = s.AddClass(ctx, reg.ID, "bac Lettres 1")
	require.NoError(t, err)
	tch, err = s.AddClass(ctx, reg.ID, "1ére s2")
	require.NoError(t, err)
	assert.Equal(t, []string{"bac Lettres 1", "1ére s2"}, tch.Classes)

	tch, err = s.RemoveClass(ctx, reg.ID, "bac Lettres 1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1ére s2"}, tch.Classes)

	_, err = s.Rename(ctx, reg.ID, "   ")
	assert.ErrorIs(t, err, ErrInvalidTeacher)
	tch, err = s.Rename(ctx, reg.ID, " Karim H. ")
	require.NoError(t, err)
	assert.Equal(t, "Karim H.", tch.Name)

	cur, _ := s.Current(ctx)
	assert.Equal(t, tch, cur)
	stored, err := s.Get(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, tch, stored)

	_, err = s.AddClass(ctx, "missing", "C1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	s := setup()

	assert.Equal(t, Preferences{DarkMode: false, Language: i18n.French}, s.Preferences(ctx))

	require.NoError(t, s.SetTheme(ctx, true))
	require.NoError(t, s.SetLanguage(ctx, i18n.Arabic))
	assert.Equal(t, Preferences{DarkMode: true, Language: i18n.Arabic}, s.Preferences(ctx))

	require.NoError(t, s.SetLanguage(ctx, i18n.Language("klingon")))
	assert.Equal(t, i18n.French, s.Preferences(ctx).Language)
}
