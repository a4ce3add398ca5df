package moderation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"failboard/internal/infra/cache"
	"failboard/internal/models"
	"failboard/internal/story"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&models.Report{}, &models.Profile{}); err != nil {
		t.Fatal(err)
	}
	return db
}

func newRepoWithStory(t *testing.T, text string) (*story.Repository, models.Story) {
	t.Helper()
	repo := story.NewRepository(cache.NewMemory(), 500)
	s, err := repo.Create(context.Background(), story.NewStory{Text: text})
	if err != nil {
		t.Fatal(err)
	}
	return repo, s
}

// brokenDeleter fails Delete and records Restore calls.
type brokenDeleter struct {
	*story.Repository
	deleteErr error
	restored  int
}

func (b *brokenDeleter) Delete(ctx context.Context, id string) (models.Story, error) {
	if b.deleteErr != nil {
		return models.Story{}, b.deleteErr
	}
	return b.Repository.Delete(ctx, id)
}

func (b *brokenDeleter) Restore(ctx context.Context, s models.Story) error {
	b.restored++
	return b.Repository.Restore(ctx, s)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	repo, s := newRepoWithStory(t, strings.Repeat("b", 150))
	q := NewQueue(newTestDB(t), repo)

	r, err := q.Submit(ctx, SubmitInput{StoryID: s.ID, Reason: "Spam"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != models.ReportPending || r.Reason != models.ReasonSpam {
		t.Errorf("want pending spam report, got %+v", r)
	}
	if r.ReporterID != models.AnonymousReporter {
		t.Errorf("want anonymous reporter, got %q", r.ReporterID)
	}
	if len([]rune(r.StoryText)) != 100 {
		t.Errorf("want 100 character snapshot, got %d", len([]rune(r.StoryText)))
	}

	if _, err := q.Submit(ctx, SubmitInput{StoryID: s.ID, Reason: "boring"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("want ErrValidation for unknown reason, got %v", err)
	}
	if _, err := q.Submit(ctx, SubmitInput{StoryID: "nope", Reason: "spam"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("want ErrNotFound for unknown story, got %v", err)
	}
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()
	repo, s := newRepoWithStory(t, "reported")
	q := NewQueue(newTestDB(t), repo)

	tests := []struct {
		name   string
		first  func(string) (Result, error)
		second func(string) (Result, error)
		want   models.ReportStatus
	}{
		{"resolve then dismiss", func(id string) (Result, error) { return q.Resolve(ctx, id) }, func(id string) (Result, error) { return q.Dismiss(ctx, id) }, models.ReportResolved},
		{"dismiss then resolve", func(id string) (Result, error) { return q.Dismiss(ctx, id) }, func(id string) (Result, error) { return q.Resolve(ctx, id) }, models.ReportDismissed},
		{"resolve twice", func(id string) (Result, error) { return q.Resolve(ctx, id) }, func(id string) (Result, error) { return q.Resolve(ctx, id) }, models.ReportResolved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := q.Submit(ctx, SubmitInput{StoryID: s.ID, Reason: "other"})
			if err != nil {
				t.Fatal(err)
			}
			res, err := tt.first(r.ID)
			if err != nil || res.AlreadyFinalized || res.Report.Status != tt.want {
				t.Fatalf("first transition: got %+v err=%v", res, err)
			}
			res, err = tt.second(r.ID)
			if err != nil {
				t.Fatalf("re-finalizing must not error: %v", err)
			}
			if !res.AlreadyFinalized || res.Report.Status != tt.want {
				t.Errorf("want AlreadyFinalized with status %s, got %+v", tt.want, res)
			}
		})
	}

	if _, err := q.Resolve(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestResolveWithDeletion(t *testing.T) {
	ctx := context.Background()
	repo, s := newRepoWithStory(t, "bad story")
	q := NewQueue(newTestDB(t), repo)

	r, _ := q.Submit(ctx, SubmitInput{StoryID: s.ID, Reason: "Spam"})
	res, err := q.ResolveWithDeletion(ctx, r.ID, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Get(s.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("want story removed, got %v", err)
	}
	if res.Report.Status != models.ReportResolved || !res.Report.StoryDeleted {
		t.Errorf("want resolved with deletion, got %+v", res.Report)
	}

	again, err := q.ResolveWithDeletion(ctx, r.ID, s.ID)
	if err != nil || !again.AlreadyFinalized {
		t.Errorf("want AlreadyFinalized on repeat, got %+v err=%v", again, err)
	}
}

func TestResolveWithDeletion_DeleteFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	repo, s := newRepoWithStory(t, "bad story")
	deleter := &brokenDeleter{Repository: repo, deleteErr: models.ErrRemoteUnavailable}
	q := NewQueue(newTestDB(t), deleter)

	r, _ := q.Submit(ctx, SubmitInput{StoryID: s.ID, Reason: "Spam"})
	if _, err := q.ResolveWithDeletion(ctx, r.ID, s.ID); !errors.Is(err, models.ErrRemoteUnavailable) {
		t.Fatalf("want ErrRemoteUnavailable, got %v", err)
	}

	got, _ := q.Get(ctx, r.ID)
	if got.Status != models.ReportPending || got.StoryDeleted {
		t.Errorf("want report still pending, got %+v", got)
	}
	if _, err := repo.Get(s.ID); err != nil {
		t.Errorf("want story kept, got %v", err)
	}
}

func TestResolveWithDeletion_RestoresStoryWhenReportUpdateFails(t *testing.T) {
	ctx := context.Background()
	repo, s := newRepoWithStory(t, "bad story")
	deleter := &brokenDeleter{Repository: repo}
	db := newTestDB(t)
	q := NewQueue(db, deleter)

	r, _ := q.Submit(ctx, SubmitInput{StoryID: s.ID, Reason: "hate"})
	db.Callback().Update().Before("gorm:update").Register("fail_reports", func(tx *gorm.DB) {
		tx.AddError(errors.New("connection reset"))
	})

	if _, err := q.ResolveWithDeletion(ctx, r.ID, s.ID); !errors.Is(err, models.ErrRemoteUnavailable) {
		t.Fatalf("want ErrRemoteUnavailable, got %v", err)
	}
	if deleter.restored != 1 {
		t.Errorf("want one restore, got %d", deleter.restored)
	}
	if _, err := repo.Get(s.ID); err != nil {
		t.Errorf("want story restored, got %v", err)
	}
}

func TestBulkAndPendingCount(t *testing.T) {
	ctx := context.Background()
	repo, s := newRepoWithStory(t, "reported a lot")
	q := NewQueue(newTestDB(t), repo)

	var ids []string
	for i := 0; i < 3; i++ {
		r, _ := q.Submit(ctx, SubmitInput{StoryID: s.ID, Reason: "spam"})
		ids = append(ids, r.ID)
	}
	q.Dismiss(ctx, ids[0])

	if n, _ := q.PendingCount(ctx); n != 2 {
		t.Errorf("want 2 pending, got %d", n)
	}

	res, err := q.Bulk(ctx, append(ids, "missing"), BulkResolve)
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded != 2 || res.AlreadyFinalized != 1 || res.Failed != 1 {
		t.Errorf("unexpected bulk result %+v", res)
	}

	if _, err := q.Bulk(ctx, ids, "explode"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("want ErrValidation, got %v", err)
	}

	pending, _ := q.List(ctx, models.ReportPending)
	if len(pending) != 0 {
		t.Errorf("want no pending reports, got %d", len(pending))
	}
	all, _ := q.List(ctx, "")
	if len(all) != 3 {
		t.Errorf("want 3 reports, got %d", len(all))
	}
}
