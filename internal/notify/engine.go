// Package notify creates one notification per qualifying interaction and
// keeps subscribers informed of each recipient's list.
package notify

import (
	"context"
	"fmt"
	"time"

	"failboard/internal/models"
	"failboard/internal/pubsub"
	"failboard/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	PreviewLength = 50
	listLimit     = 50

	// matches the from_user_name column width
	fromNameLength = 100
)

// Mailer queues the notification e-mail; the consumer checks preferences.
type Mailer interface {
	Dispatch(ctx context.Context, msg models.EmailMsg) error
}

type Engine struct {
	store  Store
	hub    *pubsub.Hub[models.NotificationSnapshot]
	mailer Mailer
	now    func() time.Time
}

func NewEngine(store Store, hub *pubsub.Hub[models.NotificationSnapshot], mailer Mailer) *Engine {
	return &Engine{store: store, hub: hub, mailer: mailer, now: time.Now}
}

type Input struct {
	Recipient string
	Type      models.NotificationType
	FromID    string
	FromName  string
	StoryID   string
	StoryText string
}

// Notify stores a notification for in.Recipient. It returns nil, nil without
// writing anything when there is no recipient or the recipient is the originator.
func (e *Engine) Notify(ctx context.Context, in Input) (*models.Notification, error) {
	if in.Recipient == "" || in.Recipient == in.FromID {
		return nil, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	n := &models.Notification{
		ID:           id.String(),
		UserID:       in.Recipient,
		Type:         in.Type,
		FromUserID:   in.FromID,
		FromUserName: clip(in.FromName, fromNameLength),
		Read:         false,
		CreatedAt:    e.now().UTC(),
	}
	if in.StoryID != "" {
		sid := in.StoryID
		preview := utils.Truncate(in.StoryText, PreviewLength)
		n.StoryID = &sid
		n.StoryText = &preview
	}

	if err := e.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("%w: create notification: %v", models.ErrRemoteUnavailable, err)
	}

	e.publish(ctx, in.Recipient)
	e.email(ctx, n)
	return n, nil
}

func clip(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}

func (e *Engine) OnVote(ctx context.Context, story models.Story, voterID, voterName string) (*models.Notification, error) {
	if story.AuthorID == nil || voterID == "" {
		return nil, nil
	}
	return e.Notify(ctx, Input{
		Recipient: *story.AuthorID, Type: models.NotificationVote,
		FromID: voterID, FromName: voterName,
		StoryID: story.ID, StoryText: story.Text,
	})
}

func (e *Engine) OnComment(ctx context.Context, story models.Story, commenterID, commenterName string) (*models.Notification, error) {
	if story.AuthorID == nil || commenterID == "" {
		return nil, nil
	}
	return e.Notify(ctx, Input{
		Recipient: *story.AuthorID, Type: models.NotificationComment,
		FromID: commenterID, FromName: commenterName,
		StoryID: story.ID, StoryText: story.Text,
	})
}

// OnReply notifies the author of the comment being replied to, if known.
func (e *Engine) OnReply(ctx context.Context, story models.Story, parent models.Comment, replierID, replierName string) (*models.Notification, error) {
	if parent.AuthorID == nil || replierID == "" {
		return nil, nil
	}
	return e.Notify(ctx, Input{
		Recipient: *parent.AuthorID, Type: models.NotificationReply,
		FromID: replierID, FromName: replierName,
		StoryID: story.ID, StoryText: parent.Text,
	})
}

func (e *Engine) OnFollow(ctx context.Context, followerID, followerName, followeeID string) (*models.Notification, error) {
	return e.Notify(ctx, Input{
		Recipient: followeeID, Type: models.NotificationFollow,
		FromID: followerID, FromName: followerName,
	})
}

func (e *Engine) Snapshot(ctx context.Context, recipient string) (models.NotificationSnapshot, error) {
	list, err := e.store.List(ctx, recipient, listLimit)
	if err != nil {
		return models.NotificationSnapshot{}, fmt.Errorf("%w: list notifications: %v", models.ErrRemoteUnavailable, err)
	}
	unread, err := e.store.UnreadCount(ctx, recipient)
	if err != nil {
		return models.NotificationSnapshot{}, fmt.Errorf("%w: count unread: %v", models.ErrRemoteUnavailable, err)
	}
	if list == nil {
		list = []models.Notification{}
	}
	return models.NotificationSnapshot{Notifications: list, UnreadCount: int(unread)}, nil
}

func (e *Engine) MarkRead(ctx context.Context, recipient, id string) error {
	if err := e.store.MarkRead(ctx, recipient, id); err != nil {
		return err
	}
	e.publish(ctx, recipient)
	return nil
}

// MarkAllRead is all-or-nothing and returns how many notifications changed.
func (e *Engine) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	n, err := e.store.MarkAllRead(ctx, recipient)
	if err != nil {
		return 0, fmt.Errorf("%w: mark all read: %v", models.ErrRemoteUnavailable, err)
	}
	if n > 0 {
		e.publish(ctx, recipient)
	}
	return n, nil
}

// Subscribe streams snapshots for recipient; call cancel to stop.
func (e *Engine) Subscribe(recipient string) (<-chan models.NotificationSnapshot, func()) {
	return e.hub.Subscribe(recipient)
}

func (e *Engine) publish(ctx context.Context, recipient string) {
	if e.hub == nil || e.hub.Subscribers(recipient) == 0 {
		return
	}
	snap, err := e.Snapshot(ctx, recipient)
	if err != nil {
		zap.L().Warn("notification snapshot failed", zap.String("recipient", recipient), zap.Error(err))
		return
	}
	e.hub.Publish(recipient, snap)
}

func (e *Engine) email(ctx context.Context, n *models.Notification) {
	if e.mailer == nil {
		return
	}
	vars := map[string]any{
		"type":     string(n.Type),
		"fromName": n.FromUserName,
		"message":  describe(n),
	}
	if n.StoryText != nil {
		vars["storyText"] = *n.StoryText
	}
	msg := models.EmailMsg{Template: models.TemplateNotification, RecipientID: n.UserID, Vars: vars}
	if err := e.mailer.Dispatch(ctx, msg); err != nil {
		zap.L().Warn("notification email dispatch failed", zap.String("notification_id", n.ID), zap.Error(err))
	}
}

func describe(n *models.Notification) string {
	switch n.Type {
	case models.NotificationVote:
		return n.FromUserName + " voted on your story"
	case models.NotificationComment:
		return n.FromUserName + " commented on your story"
	case models.NotificationReply:
		return n.FromUserName + " replied to your comment"
	case models.NotificationFollow:
		return n.FromUserName + " started following you"
	}
	return n.FromUserName + " interacted with you"
}
