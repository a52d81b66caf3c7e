// Package accounts manages teacher profiles and the current session teacher.
// There are no credentials: a teacher logs in by name.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"smartattend/internal/store"
)

var (
	// ErrNotFound is returned when no teacher matches a login name.
	ErrNotFound = errors.New("teacher not found")
	// ErrInvalidTeacher is returned for profiles missing required fields.
	ErrInvalidTeacher = errors.New("invalid teacher")
)

// Teacher is a registered teacher profile.
type Teacher struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Subjects []string `json:"subjects"`
	Classes  []string `json:"classes"`
}

// Service reads and writes teacher profiles in the store.
type Service struct {
	store store.Store
	newID func() string
}

// NewService creates a service over s.
func NewService(s store.Store) *Service {
	return &Service{store: s, newID: uuid.NewString}
}

// Teachers returns every registered teacher.
func (s *Service) Teachers(ctx context.Context) []Teacher {
	var out []Teacher
	store.GetJSON(ctx, s.store, store.KeyTeachers, &out)
	return out
}

// Get returns the teacher with id.
func (s *Service) Get(ctx context.Context, id string) (Teacher, error) {
	for _, t := range s.Teachers(ctx) {
		if t.ID == id {
			return t, nil
		}
	}
	return Teacher{}, ErrNotFound
}

// Login finds the teacher whose name matches case-insensitively and makes
// them the current teacher.
func (s *Service) Login(ctx context.Context, name string) (Teacher, error) {
	name = strings.TrimSpace(name)
	for _, t := range s.Teachers(ctx) {
		if strings.EqualFold(t.Name, name) {
			if err := s.setCurrent(ctx, t); err != nil {
				return Teacher{}, err
			}
			return t, nil
		}
	}
	return Teacher{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Register stores a new teacher with a fresh id and makes them current.
func (s *Service) Register(ctx context.Context, t Teacher) (Teacher, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return Teacher{}, fmt.Errorf("%w: name required", ErrInvalidTeacher)
	}
	t.ID = s.newID()
	t.Classes = dedupe(t.Classes)
	t.Subjects = dedupe(t.Subjects)

	teachers := append(s.Teachers(ctx), t)
	if err := store.SetJSON(ctx, s.store, store.KeyTeachers, teachers); err != nil {
		return Teacher{}, err
	}
	if err := s.setCurrent(ctx, t); err != nil {
		return Teacher{}, err
	}
	return t, nil
}

// Update replaces the stored profile with the same id and refreshes the
// current teacher.
func (s *Service) Update(ctx context.Context, t Teacher) (Teacher, error) {
	if strings.TrimSpace(t.Name) == "" {
		return Teacher{}, fmt.Errorf("%w: name required", ErrInvalidTeacher)
	}
	teachers := s.Teachers(ctx)
	i := slices.IndexFunc(teachers, func(x Teacher) bool { return x.ID == t.ID })
	if i < 0 {
		return Teacher{}, ErrNotFound
	}
	teachers[i] = t
	b := store.Batch{}
	if err := b.Put(store.KeyTeachers, teachers); err != nil {
		return Teacher{}, err
	}
	if err := b.Put(store.KeyCurrentTeacher, t); err != nil {
		return Teacher{}, err
	}
	if err := s.store.SetMany(ctx, b); err != nil {
		return Teacher{}, err
	}
	return t, nil
}

// Rename sets a new, trimmed name on teacher id.
func (s *Service) Rename(ctx context.Context, id, name string) (Teacher, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return Teacher{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Teacher{}, fmt.Errorf("%w: name required", ErrInvalidTeacher)
	}
	t.Name = name
	return s.Update(ctx, t)
}

// AddClass appends classID to the teacher's classes unless already present.
func (s *Service) AddClass(ctx context.Context, id, classID string) (Teacher, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return Teacher{}, err
	}
	if slices.Contains(t.Classes, classID) {
		return t, nil
	}
	t.Classes = append(t.Classes, classID)
	return s.Update(ctx, t)
}

// RemoveClass drops classID from the teacher's classes.
func (s *Service) RemoveClass(ctx context.Context, id, classID string) (Teacher, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return Teacher{}, err
	}
	t.Classes = slices.DeleteFunc(t.Classes, func(c string) bool { return c == classID })
	return s.Update(ctx, t)
}

// Current returns the teacher of the current session.
func (s *Service) Current(ctx context.Context) (Teacher, bool) {
	var t Teacher
	ok := store.GetJSON(ctx, s.store, store.KeyCurrentTeacher, &t)
	return t, ok && t.ID != ""
}

// Logout ends the current session.
func (s *Service) Logout(ctx context.Context) error {
	return s.store.Remove(ctx, store.KeyCurrentTeacher)
}

func (s *Service) setCurrent(ctx context.Context, t Teacher) error {
	return store.SetJSON(ctx, s.store, store.KeyCurrentTeacher, t)
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
