package models

import "time"

type NotificationType string

const (
	NotificationVote    NotificationType = "vote"
	NotificationComment NotificationType = "comment"
	NotificationReply   NotificationType = "reply"
	NotificationFollow  NotificationType = "follow"
)

type Notification struct {
	ID           string           `json:"id" gorm:"primaryKey;size:36"`
	UserID       string           `json:"userId" gorm:"size:36;index:idx_notifications_user_read"` // recipient
	Type         NotificationType `json:"type" gorm:"size:16"`
	FromUserID   string           `json:"fromUserId" gorm:"size:36"`
	FromUserName string           `json:"fromUserName" gorm:"size:100"`
	StoryID      *string          `json:"storyId" gorm:"size:36"`
	StoryText    *string          `json:"storyText" gorm:"size:255"`
	Read         bool             `json:"read" gorm:"column:is_read;index:idx_notifications_user_read"`
	CreatedAt    time.Time        `json:"createdAt" gorm:"index"`
}

// NotificationSnapshot is what subscribers receive on every change.
type NotificationSnapshot struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}
