package story

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"failboard/internal/infra/cache"
	"failboard/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	storageKey       = "stories"
	defaultAuthor    = "Anonymous"
	DefaultMaxLength = 500
)

// Repository owns the story collection in newest-first order. Every mutation
// works on a copy, is persisted to the KV, and only then becomes visible, so
// a failed write leaves the collection as it was.
type Repository struct {
	mu      sync.RWMutex
	kv      cache.KV
	stories []models.Story
	maxLen  int

	now   func() time.Time
	newID func() string
}

type Option func(*Repository)

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(r *Repository) { r.newID = f }
}

func NewRepository(kv cache.KV, maxLen int, opts ...Option) *Repository {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	r := &Repository{
		kv:      kv,
		stories: []models.Story{},
		maxLen:  maxLen,
		now:     time.Now,
		newID:   newUUID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Load replaces the in-memory collection with the persisted one. A missing
// key means an empty board.
func (r *Repository) Load(ctx context.Context) error {
	raw, ok, err := r.kv.Load(ctx, storageKey)
	if err != nil {
		return fmt.Errorf("%w: load stories: %v", models.ErrRemoteUnavailable, err)
	}

	stories := []models.Story{}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &stories); err != nil {
			return fmt.Errorf("decode stories: %w", err)
		}
	}
	if stories == nil {
		stories = []models.Story{}
	}
	for i := range stories {
		normalize(&stories[i])
	}

	r.mu.Lock()
	r.stories = stories
	r.mu.Unlock()
	zap.L().Info("stories loaded", zap.Int("count", len(stories)))
	return nil
}

// normalize fills nil collections left by older or hand-edited payloads.
func normalize(s *models.Story) {
	if s.Comments == nil {
		s.Comments = []models.Comment{}
	}
	for i := range s.Comments {
		if s.Comments[i].Replies == nil {
			s.Comments[i].Replies = []models.Reply{}
		}
	}
	if s.Reactions == nil {
		s.Reactions = map[string]int{}
	}
	if s.Hashtags == nil {
		s.Hashtags = ExtractHashtags(s.Text)
	}
	if s.Category == "" {
		s.Category = models.CategoryGeneral
	}
}

func (r *Repository) Stories() []models.Story {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Story, len(r.stories))
	for i, s := range r.stories {
		out[i] = s.Clone()
	}
	return out
}

func (r *Repository) Get(id string) (models.Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.indexOf(id)
	if idx < 0 {
		return models.Story{}, fmt.Errorf("%w: story %s", models.ErrNotFound, id)
	}
	return r.stories[idx].Clone(), nil
}

func (r *Repository) indexOf(id string) int {
	for i := range r.stories {
		if r.stories[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: text is empty", models.ErrValidation)
	}
	if n := utf8.RuneCountInString(text); n > r.maxLen {
		return "", fmt.Errorf("%w: text is %d characters, max %d", models.ErrValidation, n, r.maxLen)
	}
	return text, nil
}

func authorOrDefault(author string) string {
	if a := strings.TrimSpace(author); a != "" {
		return a
	}
	return defaultAuthor
}

type NewStory struct {
	Text             string
	Category         models.Category
	Author           string
	AuthorID         *string
	IsSupportRequest bool
}

func (r *Repository) Create(ctx context.Context, in NewStory) (models.Story, error) {
	text, err := r.validateText(in.Text)
	if err != nil {
		return models.Story{}, err
	}
	category := in.Category
	if category == "" {
		category = models.CategoryGeneral
	}
	if !category.Valid() {
		return models.Story{}, fmt.Errorf("%w: unknown category %q", models.ErrValidation, category)
	}

	s := models.Story{
		ID:               r.newID(),
		Text:             text,
		Category:         category,
		Author:           authorOrDefault(in.Author),
		AuthorID:         in.AuthorID,
		CreatedAt:        r.now().UTC(),
		Comments:         []models.Comment{},
		Reactions:        map[string]int{},
		Hashtags:         ExtractHashtags(text),
		IsSupportRequest: in.IsSupportRequest,
	}

	err = r.mutate(ctx, func(stories []models.Story) ([]models.Story, error) {
		return append([]models.Story{s}, stories...), nil
	})
	if err != nil {
		return models.Story{}, err
	}
	return s.Clone(), nil
}

// Vote adds exactly one vote. Repeated calls from the same caller all count.
func (r *Repository) Vote(ctx context.Context, id string) (models.Story, error) {
	return r.update(ctx, id, func(s *models.Story) error {
		s.Votes++
		return nil
	})
}

// React accepts any non-empty label; the vocabulary belongs to the client.
func (r *Repository) React(ctx context.Context, id, label string) (models.Story, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return models.Story{}, fmt.Errorf("%w: reaction label is empty", models.ErrValidation)
	}
	return r.update(ctx, id, func(s *models.Story) error {
		s.Reactions[label]++
		return nil
	})
}

func (r *Repository) Comment(ctx context.Context, storyID, text, author string, authorID *string) (models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, fmt.Errorf("%w: comment is empty", models.ErrValidation)
	}
	c := models.Comment{
		ID:       r.newID(),
		Text:     text,
		Author:   authorOrDefault(author),
		AuthorID: authorID,
		Replies:  []models.Reply{},
	}
	_, err := r.update(ctx, storyID, func(s *models.Story) error {
		s.Comments = append(s.Comments, c)
		return nil
	})
	if err != nil {
		return models.Comment{}, err
	}
	return c, nil
}

// Reply appends to a comment's replies and returns the reply together with
// the parent comment so callers can notify its author. An unknown comment id
// is ErrNotFound and leaves the story untouched.
func (r *Repository) Reply(ctx context.Context, storyID, commentID, text, author string) (models.Reply, models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Reply{}, models.Comment{}, fmt.Errorf("%w: reply is empty", models.ErrValidation)
	}
	rep := models.Reply{ID: r.newID(), Text: text, Author: authorOrDefault(author)}

	var parent models.Comment
	_, err := r.update(ctx, storyID, func(s *models.Story) error {
		for i := range s.Comments {
			if s.Comments[i].ID == commentID {
				s.Comments[i].Replies = append(s.Comments[i].Replies, rep)
				parent = s.Comments[i]
				return nil
			}
		}
		return fmt.Errorf("%w: comment %s", models.ErrNotFound, commentID)
	})
	if err != nil {
		return models.Reply{}, models.Comment{}, err
	}
	return rep, parent, nil
}

// Edit replaces the text and re-derives hashtags. Author and category stay as they are.
func (r *Repository) Edit(ctx context.Context, id, text string) (models.Story, error) {
	text, err := r.validateText(text)
	if err != nil {
		return models.Story{}, err
	}
	return r.update(ctx, id, func(s *models.Story) error {
		s.Text = text
		s.Hashtags = ExtractHashtags(text)
		return nil
	})
}

// Delete removes the story with all of its comments and returns what was removed.
func (r *Repository) Delete(ctx context.Context, id string) (models.Story, error) {
	var removed models.Story
	err := r.mutate(ctx, func(stories []models.Story) ([]models.Story, error) {
		for i := range stories {
			if stories[i].ID == id {
				removed = stories[i]
				return append(stories[:i:i], stories[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%w: story %s", models.ErrNotFound, id)
	})
	if err != nil {
		return models.Story{}, err
	}
	return removed.Clone(), nil
}

// Restore puts a deleted story back at its creation-time position. Restoring
// a story that is still present is a no-op.
func (r *Repository) Restore(ctx context.Context, s models.Story) error {
	s = s.Clone()
	normalize(&s)
	return r.mutate(ctx, func(stories []models.Story) ([]models.Story, error) {
		pos := len(stories)
		for i := range stories {
			if stories[i].ID == s.ID {
				return stories, nil
			}
			if pos == len(stories) && stories[i].CreatedAt.Before(s.CreatedAt) {
				pos = i
			}
		}
		out := make([]models.Story, 0, len(stories)+1)
		out = append(out, stories[:pos]...)
		out = append(out, s)
		return append(out, stories[pos:]...), nil
	})
}

// update clones the addressed story, applies fn to the clone and swaps it in.
func (r *Repository) update(ctx context.Context, id string, fn func(*models.Story) error) (models.Story, error) {
	var updated models.Story
	err := r.mutate(ctx, func(stories []models.Story) ([]models.Story, error) {
		for i := range stories {
			if stories[i].ID != id {
				continue
			}
			s := stories[i].Clone()
			if err := fn(&s); err != nil {
				return nil, err
			}
			stories[i] = s
			updated = s
			return stories, nil
		}
		return nil, fmt.Errorf("%w: story %s", models.ErrNotFound, id)
	})
	if err != nil {
		return models.Story{}, err
	}
	return updated.Clone(), nil
}

// mutate hands fn a shallow copy of the collection. Stored stories are never
// modified in place, so sharing elements with the live slice is safe.
func (r *Repository) mutate(ctx context.Context, fn func([]models.Story) ([]models.Story, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := fn(append([]models.Story(nil), r.stories...))
	if err != nil {
		return err
	}

	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode stories: %w", err)
	}
	if err := r.kv.Store(ctx, storageKey, string(payload)); err != nil {
		zap.L().Warn("persist stories failed, rolling back", zap.Error(err))
		return fmt.Errorf("%w: persist stories: %v", models.ErrRemoteUnavailable, err)
	}

	r.stories = next
	return nil
}
