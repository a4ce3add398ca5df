package models

import "time"

// Profile is the remote user document. Following and Followers are the two
// redundant sides of every follow edge.
type Profile struct {
	ID               string   `json:"id" gorm:"primaryKey;size:36"`
	DisplayName      string   `json:"displayName" gorm:"size:100"`
	DisplayNameLower string   `json:"-" gorm:"size:100;index"`
	Email            string   `json:"email,omitempty" gorm:"size:255;uniqueIndex"`
	PasswordHash     string   `json:"-" gorm:"size:255"`
	PhotoURL         string   `json:"photoURL,omitempty" gorm:"size:512"`
	Bio              string   `json:"bio" gorm:"size:300"`
	Following        []string `json:"following" gorm:"serializer:json;type:text"`
	Followers        []string `json:"followers" gorm:"serializer:json;type:text"`
	Badges           []string `json:"badges" gorm:"serializer:json;type:text"`

	IsAdmin            bool `json:"isAdmin"`
	IsBanned           bool `json:"isBanned"`
	EmailNotifications bool `json:"emailNotifications"`
	DigestEmails       bool `json:"digestEmails"`

	Points          int        `json:"points"`
	Streak          int        `json:"streak"`
	LastLoginDate   *time.Time `json:"lastLoginDate,omitempty"`
	StoryCount      int        `json:"storyCount"`
	VotesReceived   int        `json:"totalVotesReceived"`
	VotesGiven      int        `json:"votesGiven"`
	CommentsWritten int        `json:"commentsWritten"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Identity is what the identity provider hands to the rest of the service.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

type UserBrief struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Bio         string `json:"bio"`
	IsFollowing bool   `json:"isFollowing"`
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	VotesReceived int    `json:"totalVotesReceived"`
	StoryCount    int    `json:"storyCount"`
}
