package models

import "time"

type ReportReason string

const (
	ReasonSpam       ReportReason = "spam"
	ReasonHarassment ReportReason = "harassment"
	ReasonHate       ReportReason = "hate"
	ReasonHarmful    ReportReason = "harmful"
	ReasonOther      ReportReason = "other"
)

func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonHarassment, ReasonHate, ReasonHarmful, ReasonOther:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

const AnonymousReporter = "anonymous"

type Report struct {
	ID           string       `json:"id" gorm:"primaryKey;size:36"`
	StoryID      string       `json:"storyId" gorm:"size:36;index"`
	StoryText    string       `json:"storyText" gorm:"size:512"`
	ReporterID   string       `json:"reporterId" gorm:"size:36"`
	Reason       ReportReason `json:"reason" gorm:"size:16"`
	Detail       *string      `json:"detail,omitempty" gorm:"type:text"`
	Status       ReportStatus `json:"status" gorm:"size:16;index"`
	StoryDeleted bool         `json:"storyDeleted"`
	CreatedAt    time.Time    `json:"createdAt" gorm:"index"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
