package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// Key names one logical table in the persistent store.
type Key string

// Stable key namespace. Every value the application persists lives under one of these.
const (
	KeyTeachers       Key = "smartattend_teachers"
	KeyCurrentTeacher Key = "smartattend_session"
	KeyTheme          Key = "smartattend_theme"
	KeyLanguage       Key = "smartattend_lang"
	KeyLastSummary    Key = "smartattend_last_summary"
	KeyAbsences       Key = "smartattend_global_absences"
	KeySessions       Key = "smartattend_class_sessions"

	draftPrefix = "attendance_draft_"
)

// DraftKey returns the key holding the in-progress attendance draft of one class.
func DraftKey(classID string) Key {
	return Key(draftPrefix + classID)
}

// Store is a durable key/value store. Values are opaque JSON documents.
type Store interface {
	// Get returns the value under key. ok is false when nothing is stored.
	Get(ctx context.Context, key Key) (value []byte, ok bool, err error)
	Set(ctx context.Context, key Key, value []byte) error
	Remove(ctx context.Context, key Key) error
	// SetMany writes every entry or none of them. Readers never observe
	// a subset of the batch.
	SetMany(ctx context.Context, entries map[Key][]byte) error
}

// GetJSON decodes the value under key into v. It reports false when the key
// is missing, unreadable or holds malformed JSON; those cases are logged and
// never returned to the caller.
func GetJSON(ctx context.Context, s Store, key Key, v any) bool {
	ok, err := ReadJSON(ctx, s, key, v)
	if err != nil {
		log.Printf("store: read %s failed, treating as empty: %v", key, err)
		return false
	}
	return ok
}

// ReadJSON is GetJSON for writers: a failed read is returned so the caller
// never overwrites a value it could not see. Malformed JSON is still logged
// and reported as missing.
func ReadJSON(ctx context.Context, s Store, key Key, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("store: read %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		log.Printf("store: malformed value under %s, treating as empty: %v", key, err)
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key Key, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// Batch collects JSON values for a single SetMany call.
type Batch map[Key][]byte

// Put encodes v into the batch under key.
func (b Batch) Put(key Key, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	b[key] = raw
	return nil
}
