// Package bookmark keeps one set of bookmarked story ids per browsing identity.
package bookmark

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"failboard/internal/infra/cache"
	"failboard/internal/models"
)

type Set map[string]struct{}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Toggle flips membership of id and reports whether it is now present.
func (s Set) Toggle(id string) bool {
	if s.Has(id) {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

// IDs returns the members sorted, so the stored form is stable.
func (s Set) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Lookup is the shape feed.Compose wants.
func (s Set) Lookup() map[string]bool {
	m := make(map[string]bool, len(s))
	for id := range s {
		m[id] = true
	}
	return m
}

type Store struct {
	mu sync.Mutex
	kv cache.KV
}

func NewStore(kv cache.KV) *Store {
	return &Store{kv: kv}
}

func key(identity string) string {
	return "bookmarks:" + identity
}

func (s *Store) Get(ctx context.Context, identity string) (Set, error) {
	raw, ok, err := s.kv.Load(ctx, key(identity))
	if err != nil {
		return nil, fmt.Errorf("%w: load bookmarks: %v", models.ErrRemoteUnavailable, err)
	}
	set := Set{}
	if !ok || raw == "" {
		return set, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode bookmarks: %w", err)
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// Toggle flips one story in the identity's set and persists it. Toggles are
// serialised so concurrent requests from one identity cannot lose an update.
func (s *Store) Toggle(ctx context.Context, identity, storyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := s.Get(ctx, identity)
	if err != nil {
		return false, err
	}
	present := set.Toggle(storyID)

	payload, err := json.Marshal(set.IDs())
	if err != nil {
		return false, err
	}
	if err := s.kv.Store(ctx, key(identity), string(payload)); err != nil {
		return false, fmt.Errorf("%w: persist bookmarks: %v", models.ErrRemoteUnavailable, err)
	}
	return present, nil
}
