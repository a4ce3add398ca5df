// Package moderation records reports against stories and lets admins
// finalize them exactly once.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"failboard/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const snapshotLength = 100

// Stories is the part of the story repository moderation needs.
type Stories interface {
	Get(id string) (models.Story, error)
	Delete(ctx context.Context, id string) (models.Story, error)
	Restore(ctx context.Context, s models.Story) error
}

type Queue struct {
	db      *gorm.DB
	stories Stories
	now     func() time.Time
}

func NewQueue(db *gorm.DB, stories Stories) *Queue {
	return &Queue{db: db, stories: stories, now: time.Now}
}

// Result carries the report after a transition. AlreadyFinalized means the
// report was not pending and nothing changed; it is not an error.
type Result struct {
	Report           models.Report `json:"report"`
	AlreadyFinalized bool          `json:"already_finalized"`
}

type SubmitInput struct {
	StoryID    string
	ReporterID *string
	Reason     string
	Detail     *string
}

func (q *Queue) Submit(ctx context.Context, in SubmitInput) (models.Report, error) {
	reason := models.ReportReason(strings.ToLower(strings.TrimSpace(in.Reason)))
	if !reason.Valid() {
		return models.Report{}, fmt.Errorf("%w: unknown reason %q", models.ErrValidation, in.Reason)
	}
	story, err := q.stories.Get(in.StoryID)
	if err != nil {
		return models.Report{}, err
	}

	reporter := models.AnonymousReporter
	if in.ReporterID != nil && *in.ReporterID != "" {
		reporter = *in.ReporterID
	}
	var detail *string
	if in.Detail != nil {
		if d := strings.TrimSpace(*in.Detail); d != "" {
			detail = &d
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return models.Report{}, err
	}
	r := models.Report{
		ID:         id.String(),
		StoryID:    story.ID,
		StoryText:  snapshot(story.Text),
		ReporterID: reporter,
		Reason:     reason,
		Detail:     detail,
		Status:     models.ReportPending,
		CreatedAt:  q.now().UTC(),
	}
	if err := q.db.WithContext(ctx).Create(&r).Error; err != nil {
		return models.Report{}, fmt.Errorf("%w: create report: %v", models.ErrRemoteUnavailable, err)
	}
	zap.L().Info("report submitted", zap.String("report_id", r.ID), zap.String("story_id", r.StoryID), zap.String("reason", string(reason)))
	return r, nil
}

func snapshot(text string) string {
	r := []rune(text)
	if len(r) > snapshotLength {
		return string(r[:snapshotLength])
	}
	return text
}

func (q *Queue) Resolve(ctx context.Context, reportID string) (Result, error) {
	return q.transition(ctx, reportID, models.ReportResolved, false)
}

func (q *Queue) Dismiss(ctx context.Context, reportID string) (Result, error) {
	return q.transition(ctx, reportID, models.ReportDismissed, false)
}

// ResolveWithDeletion deletes the reported story and resolves the report.
// If the deletion fails the report stays pending. If the report can no longer
// be resolved after the deletion, the story is put back.
func (q *Queue) ResolveWithDeletion(ctx context.Context, reportID, storyID string) (Result, error) {
	r, err := q.Get(ctx, reportID)
	if err != nil {
		return Result{}, err
	}
	if r.Status != models.ReportPending {
		return Result{Report: r, AlreadyFinalized: true}, nil
	}
	if storyID == "" {
		storyID = r.StoryID
	}

	removed, err := q.stories.Delete(ctx, storyID)
	if err != nil {
		return Result{Report: r}, fmt.Errorf("delete reported story: %w", err)
	}

	res, err := q.transition(ctx, reportID, models.ReportResolved, true)
	if err != nil || res.AlreadyFinalized {
		if rerr := q.stories.Restore(ctx, removed); rerr != nil {
			zap.L().Error("restore after failed resolution",
				zap.String("report_id", reportID), zap.String("story_id", storyID), zap.Error(rerr))
		}
	}
	return res, err
}

func (q *Queue) transition(ctx context.Context, reportID string, to models.ReportStatus, storyDeleted bool) (Result, error) {
	res := q.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND status = ?", reportID, models.ReportPending).
		Updates(map[string]interface{}{
			"status":        to,
			"story_deleted": storyDeleted,
			"updated_at":    q.now().UTC(),
		})
	if res.Error != nil {
		return Result{}, fmt.Errorf("%w: update report: %v", models.ErrRemoteUnavailable, res.Error)
	}

	r, err := q.Get(ctx, reportID)
	if err != nil {
		return Result{}, err
	}
	if res.RowsAffected == 0 {
		return Result{Report: r, AlreadyFinalized: true}, nil
	}
	zap.L().Info("report finalized", zap.String("report_id", reportID), zap.String("status", string(to)), zap.Bool("story_deleted", storyDeleted))
	return Result{Report: r}, nil
}

func (q *Queue) Get(ctx context.Context, id string) (models.Report, error) {
	var r models.Report
	err := q.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Report{}, fmt.Errorf("%w: report %s", models.ErrNotFound, id)
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("%w: get report: %v", models.ErrRemoteUnavailable, err)
	}
	return r, nil
}

// List returns reports newest first; an empty status means all.
func (q *Queue) List(ctx context.Context, status models.ReportStatus) ([]models.Report, error) {
	tx := q.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	var out []models.Report
	if err := tx.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%w: list reports: %v", models.ErrRemoteUnavailable, err)
	}
	return out, nil
}

func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.WithContext(ctx).Model(&models.Report{}).Where("status = ?", models.ReportPending).Count(&n).Error
	return n, err
}

type BulkAction string

const (
	BulkResolve BulkAction = "resolve"
	BulkDismiss BulkAction = "dismiss"
	BulkDelete  BulkAction = "delete"
)

type BulkResult struct {
	Succeeded        int               `json:"succeeded"`
	AlreadyFinalized int               `json:"already_finalized"`
	Failed           int               `json:"failed"`
	Errors           map[string]string `json:"errors,omitempty"`
}

// Bulk applies action to every report and counts the outcomes; one failure
// does not stop the rest.
func (q *Queue) Bulk(ctx context.Context, ids []string, action BulkAction) (BulkResult, error) {
	var apply func(string) (Result, error)
	switch action {
	case BulkResolve:
		apply = func(id string) (Result, error) { return q.Resolve(ctx, id) }
	case BulkDismiss:
		apply = func(id string) (Result, error) { return q.Dismiss(ctx, id) }
	case BulkDelete:
		apply = func(id string) (Result, error) { return q.ResolveWithDeletion(ctx, id, "") }
	default:
		return BulkResult{}, fmt.Errorf("%w: unknown action %q", models.ErrValidation, action)
	}

	out := BulkResult{Errors: map[string]string{}}
	for _, id := range ids {
		res, err := apply(id)
		switch {
		case err != nil:
			out.Failed++
			out.Errors[id] = err.Error()
		case res.AlreadyFinalized:
			out.AlreadyFinalized++
		default:
			out.Succeeded++
		}
	}
	return out, nil
}
