package models

import (
	"time"
)

type Category string

const (
	CategoryGeneral Category = "General"
	CategoryCoding  Category = "Coding"
	CategoryWork    Category = "Work"
	CategoryLife    Category = "Life"
	CategoryLove    Category = "Love"
	CategoryCooking Category = "Cooking"
)

// Categories lists every valid story category in display order.
var Categories = []Category{
	CategoryGeneral, CategoryCoding, CategoryWork, CategoryLife, CategoryLove, CategoryCooking,
}

func (c Category) Valid() bool {
	for _, cat := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// Story is a single failure post. AuthorID is nil for anonymous posts.
type Story struct {
	ID               string         `json:"id"`
	Text             string         `json:"text"`
	Category         Category       `json:"category"`
	Author           string         `json:"author"`
	AuthorID         *string        `json:"authorId,omitempty"`
	CreatedAt        time.Time      `json:"timestamp"`
	Votes            int            `json:"votes"`
	Comments         []Comment      `json:"comments"`
	Reactions        map[string]int `json:"reactions"`
	Hashtags         []string       `json:"hashtags"`
	IsSupportRequest bool           `json:"isSupportRequest"`
}

// Comment can be replied to once; replies cannot be replied to.
type Comment struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Author   string  `json:"author"`
	AuthorID *string `json:"authorId,omitempty"`
	Replies  []Reply `json:"replies"`
}

type Reply struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Author string `json:"author"`
}

// Clone returns a deep copy so callers never share slices or maps with the repository.
func (s Story) Clone() Story {
	out := s
	if s.AuthorID != nil {
		id := *s.AuthorID
		out.AuthorID = &id
	}
	out.Comments = make([]Comment, len(s.Comments))
	for i, c := range s.Comments {
		cc := c
		if c.AuthorID != nil {
			id := *c.AuthorID
			cc.AuthorID = &id
		}
		cc.Replies = append([]Reply{}, c.Replies...)
		out.Comments[i] = cc
	}
	out.Reactions = make(map[string]int, len(s.Reactions))
	for k, v := range s.Reactions {
		out.Reactions[k] = v
	}
	out.Hashtags = append([]string{}, s.Hashtags...)
	return out
}

// HasHashtag reports whether tag (already lower-cased) is in the story's hashtag set.
func (s Story) HasHashtag(tag string) bool {
	for _, h := range s.Hashtags {
		if h == tag {
			return true
		}
	}
	return false
}

// AITaskMsg asks the AI consumer to work on a story.
type AITaskMsg struct {
	StoryID string `json:"story_id"`
	Task    string `json:"task"` // "support_reply"
}
