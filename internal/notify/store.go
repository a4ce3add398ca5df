package notify

import (
	"context"
	"errors"
	"fmt"

	"failboard/internal/models"

	"gorm.io/gorm"
)

// Store is the remote notification collection.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, recipient string, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, recipient string) (int64, error)
	MarkRead(ctx context.Context, recipient, id string) error
	MarkAllRead(ctx context.Context, recipient string) (int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, n *models.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *GormStore) List(ctx context.Context, recipient string, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", recipient).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *GormStore) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", recipient, false).
		Count(&n).Error
	return n, err
}

// MarkRead is idempotent: an already-read notification is not an error.
func (s *GormStore) MarkRead(ctx context.Context, recipient, id string) error {
	var n models.Notification
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, recipient).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: notification %s", models.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	if n.Read {
		return nil
	}
	return s.db.WithContext(ctx).Model(&n).Update("is_read", true).Error
}

// MarkAllRead flips every unread notification of recipient in one transaction.
func (s *GormStore) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	var changed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Notification{}).
			Where("user_id = ? AND is_read = ?", recipient, false).
			Update("is_read", true)
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected
		return nil
	})
	return changed, err
}
