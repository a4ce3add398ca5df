package story

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"failboard/internal/infra/cache"
	"failboard/internal/models"
)

// flakyKV fails every Store once fail is set.
type flakyKV struct {
	*cache.Memory
	fail bool
}

func (f *flakyKV) Store(ctx context.Context, key, value string) error {
	if f.fail {
		return errors.New("quota exceeded")
	}
	return f.Memory.Store(ctx, key, value)
}

func newTestRepo(t *testing.T) (*Repository, *flakyKV) {
	t.Helper()
	kv := &flakyKV{Memory: cache.NewMemory()}
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick, seq := 0, 0
	repo := NewRepository(kv, 500,
		WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Minute)
		}),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	return repo, kv
}

func mustCreate(t *testing.T, repo *Repository, text string) models.Story {
	t.Helper()
	s, err := repo.Create(context.Background(), NewStory{Text: text})
	if err != nil {
		t.Fatalf("create %q: %v", text, err)
	}
	return s
}

func TestCreate_Defaults(t *testing.T) {
	repo, _ := newTestRepo(t)
	s := mustCreate(t, repo, "Deployed on Friday")

	if s.Category != models.CategoryGeneral {
		t.Errorf("want category General, got %q", s.Category)
	}
	if s.Votes != 0 {
		t.Errorf("want 0 votes, got %d", s.Votes)
	}
	if len(s.Comments) != 0 || s.Comments == nil {
		t.Errorf("want empty non-nil comments, got %#v", s.Comments)
	}
	if s.Author != "Anonymous" || s.AuthorID != nil {
		t.Errorf("want anonymous author, got %q %v", s.Author, s.AuthorID)
	}
}

func TestCreate_Validation(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewStory
	}{
		{"empty", NewStory{Text: ""}},
		{"whitespace", NewStory{Text: "   \n\t"}},
		{"too long", NewStory{Text: strings.Repeat("x", 501)}},
		{"unknown category", NewStory{Text: "ok", Category: "Sports"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(ctx, tt.in)
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("want ErrValidation, got %v", err)
			}
		})
	}
	if n := len(repo.Stories()); n != 0 {
		t.Errorf("want no stories after rejected input, got %d", n)
	}

	if _, err := repo.Create(ctx, NewStory{Text: strings.Repeat("é", 500)}); err != nil {
		t.Errorf("500 runes should be accepted: %v", err)
	}
}

func TestCreate_PrependsNewestFirst(t *testing.T) {
	repo, _ := newTestRepo(t)
	a := mustCreate(t, repo, "first")
	b := mustCreate(t, repo, "second")

	got := repo.Stories()
	if len(got) != 2 || got[0].ID != b.ID || got[1].ID != a.ID {
		t.Errorf("want [%s %s], got %v", b.ID, a.ID, ids(got))
	}
}

func TestVote(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	s := mustCreate(t, repo, "abc #tag")

	for i := 0; i < 3; i++ {
		if _, err := repo.Vote(ctx, s.ID); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := repo.Get(s.ID)
	if got.Votes != 3 {
		t.Errorf("want 3 votes, got %d", got.Votes)
	}

	// only the counter changes
	got.Votes = s.Votes
	if !reflect.DeepEqual(got, s) {
		t.Errorf("vote changed other fields:\nwant %+v\ngot  %+v", s, got)
	}

	before := repo.Stories()
	if _, err := repo.Vote(ctx, "zzz"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
	if !reflect.DeepEqual(before, repo.Stories()) {
		t.Error("collection changed after vote on missing story")
	}
}

// Repeated votes by one caller are not suppressed; see DESIGN.md on duplicate votes.
func TestVote_NoDuplicateSuppression(t *testing.T) {
	repo, _ := newTestRepo(t)
	s := mustCreate(t, repo, "click me")
	for i := 0; i < 10; i++ {
		repo.Vote(context.Background(), s.ID)
	}
	got, _ := repo.Get(s.ID)
	if got.Votes != 10 {
		t.Errorf("want 10 votes, got %d", got.Votes)
	}
}

func TestReact(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	s := mustCreate(t, repo, "oops")

	repo.React(ctx, s.ID, "hug")
	repo.React(ctx, s.ID, "hug")
	got, err := repo.React(ctx, s.ID, "made-up")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int{"hug": 2, "made-up": 1}
	if !reflect.DeepEqual(got.Reactions, want) {
		t.Errorf("want %v, got %v", want, got.Reactions)
	}

	if _, err := repo.React(ctx, s.ID, " "); !errors.Is(err, models.ErrValidation) {
		t.Errorf("want ErrValidation for empty label, got %v", err)
	}
}

func TestCommentThenReply(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	s := mustCreate(t, repo, "broke prod")
	uid := "u-1"

	c, err := repo.Comment(ctx, s.ID, "nice job", "Bob", &uid)
	if err != nil {
		t.Fatal(err)
	}
	_, parent, err := repo.Reply(ctx, s.ID, c.ID, "thanks", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if parent.AuthorID == nil || *parent.AuthorID != uid {
		t.Errorf("want parent author %s, got %v", uid, parent.AuthorID)
	}

	got, _ := repo.Get(s.ID)
	if got.Comments[0].Text != "nice job" {
		t.Errorf("comment text changed: %q", got.Comments[0].Text)
	}
	if got.Comments[0].Replies[0].Text != "thanks" {
		t.Errorf("want reply thanks, got %q", got.Comments[0].Replies[0].Text)
	}
}

func TestComment_PreservesOrder(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	s := mustCreate(t, repo, "story")

	for _, text := range []string{"one", "two", "three"} {
		repo.Comment(ctx, s.ID, text, "", nil)
	}
	got, _ := repo.Get(s.ID)
	var texts []string
	for _, c := range got.Comments {
		texts = append(texts, c.Text)
	}
	if !reflect.DeepEqual(texts, []string{"one", "two", "three"}) {
		t.Errorf("want insertion order, got %v", texts)
	}

	if _, err := repo.Comment(ctx, s.ID, "  ", "", nil); !errors.Is(err, models.ErrValidation) {
		t.Errorf("want ErrValidation, got %v", err)
	}
	if _, err := repo.Comment(ctx, "missing", "hi", "", nil); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestReply_UnknownCommentLeavesStory(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	s := mustCreate(t, repo, "story")
	repo.Comment(ctx, s.ID, "first", "", nil)
	before, _ := repo.Get(s.ID)

	_, _, err := repo.Reply(ctx, s.ID, "no-such-comment", "hello", "")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
	after, _ := repo.Get(s.ID)
	if !reflect.DeepEqual(before, after) {
		t.Error("story changed after reply to unknown comment")
	}
}

func TestEdit_RecomputesHashtags(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	uid := "u-1"
	s, _ := repo.Create(ctx, NewStory{Text: "#old story", Category: models.CategoryWork, Author: "Ann", AuthorID: &uid})

	got, err := repo.Edit(ctx, s.ID, "new #Story #fresh")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Hashtags, []string{"story", "fresh"}) {
		t.Errorf("want [story fresh], got %v", got.Hashtags)
	}
	if got.Category != models.CategoryWork || got.Author != "Ann" {
		t.Errorf("edit changed author or category: %+v", got)
	}
}

func TestDeleteAndRestore(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	a := mustCreate(t, repo, "a")
	b := mustCreate(t, repo, "b")
	c := mustCreate(t, repo, "c")

	removed, err := repo.Delete(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Get(b.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("want deleted story gone, got %v", err)
	}
	if _, err := repo.Delete(ctx, b.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("want ErrNotFound on second delete, got %v", err)
	}

	if err := repo.Restore(ctx, removed); err != nil {
		t.Fatal(err)
	}
	want := []string{c.ID, b.ID, a.ID}
	if got := ids(repo.Stories()); !reflect.DeepEqual(got, want) {
		t.Errorf("want %v, got %v", want, got)
	}

	if err := repo.Restore(ctx, removed); err != nil {
		t.Fatal(err)
	}
	if n := len(repo.Stories()); n != 3 {
		t.Errorf("restore of present story duplicated it: %d stories", n)
	}
}

func TestMutation_RollsBackOnPersistFailure(t *testing.T) {
	repo, kv := newTestRepo(t)
	ctx := context.Background()
	s := mustCreate(t, repo, "persisted")
	before := repo.Stories()

	kv.fail = true
	if _, err := repo.Vote(ctx, s.ID); !errors.Is(err, models.ErrRemoteUnavailable) {
		t.Errorf("want ErrRemoteUnavailable, got %v", err)
	}
	if _, err := repo.Create(ctx, NewStory{Text: "lost"}); !errors.Is(err, models.ErrRemoteUnavailable) {
		t.Errorf("want ErrRemoteUnavailable, got %v", err)
	}
	if _, err := repo.Delete(ctx, s.ID); !errors.Is(err, models.ErrRemoteUnavailable) {
		t.Errorf("want ErrRemoteUnavailable, got %v", err)
	}
	if !reflect.DeepEqual(before, repo.Stories()) {
		t.Error("in-memory collection changed despite failed persist")
	}

	kv.fail = false
	if _, err := repo.Vote(ctx, s.ID); err != nil {
		t.Errorf("want retry to succeed, got %v", err)
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	repo, kv := newTestRepo(t)
	ctx := context.Background()
	s := mustCreate(t, repo, "survives #restart")
	repo.Vote(ctx, s.ID)

	reloaded := NewRepository(kv, 500)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(repo.Stories(), reloaded.Stories()) {
		t.Errorf("want identical collections after reload")
	}
}

func TestLoad_NormalizesSparsePayload(t *testing.T) {
	kv := cache.NewMemory()
	payload, _ := json.Marshal([]map[string]any{{"id": "x", "text": "legacy #Post"}})
	kv.Store(context.Background(), storageKey, string(payload))

	repo := NewRepository(kv, 500)
	if err := repo.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Get("x")
	if err != nil {
		t.Fatal(err)
	}
	if got.Category != models.CategoryGeneral || got.Reactions == nil || got.Comments == nil {
		t.Errorf("sparse story not normalized: %+v", got)
	}
	if !reflect.DeepEqual(got.Hashtags, []string{"post"}) {
		t.Errorf("want derived hashtags [post], got %v", got.Hashtags)
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	repo, _ := newTestRepo(t)
	s := mustCreate(t, repo, "#a")
	snap := repo.Stories()
	snap[0].Hashtags[0] = "mutated"
	snap[0].Reactions["x"] = 9

	got, _ := repo.Get(s.ID)
	if got.Hashtags[0] != "a" || len(got.Reactions) != 0 {
		t.Errorf("caller mutation leaked into repository: %+v", got)
	}
}

func ids(stories []models.Story) []string {
	out := make([]string, len(stories))
	for i, s := range stories {
		out[i] = s.ID
	}
	return out
}
