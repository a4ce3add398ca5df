package gamify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"failboard/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var counters = map[Action]string{
	ShareStory:   "story_count",
	ReceiveVote:  "votes_received",
	GiveVote:     "votes_given",
	WriteComment: "comments_written",
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Record credits userID for action and bumps the matching activity counter
// in one statement. Unknown users are ignored.
func (s *Service) Record(ctx context.Context, userID string, action Action) error {
	pts, ok := Points[action]
	if !ok || userID == "" {
		return nil
	}
	updates := map[string]interface{}{"points": gorm.Expr("points + ?", pts)}
	if col, ok := counters[action]; ok {
		updates[col] = gorm.Expr(col+" + ?", 1)
	}
	return s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", userID).UpdateColumns(updates).Error
}

// RecordAsync is for request paths where a failed award must not fail the request.
func (s *Service) RecordAsync(userID string, action Action) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Record(ctx, userID, action); err != nil {
			zap.L().Warn("award points failed", zap.String("user_id", userID), zap.String("action", string(action)), zap.Error(err))
		}
	}()
}

// CheckDailyLogin awards the daily login points once per UTC day and returns
// the resulting progress.
func (s *Service) CheckDailyLogin(ctx context.Context, userID string) (Progress, error) {
	var out Progress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Profile
		if err := tx.Where("id = ?", userID).First(&p).Error; err != nil {
			return err
		}
		now := s.now().UTC()
		streak, pts, due := NextStreak(p.LastLoginDate, p.Streak, now)
		if due {
			err := tx.Model(&models.Profile{}).Where("id = ?", userID).UpdateColumns(map[string]interface{}{
				"points":          gorm.Expr("points + ?", pts),
				"streak":          streak,
				"last_login_date": now,
			}).Error
			if err != nil {
				return err
			}
			p.Points += pts
		}
		out = ProgressFor(p.Points, streak)
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Progress{}, fmt.Errorf("%w: profile %s", models.ErrNotFound, userID)
	}
	return out, err
}
