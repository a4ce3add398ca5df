package feed

import (
	"sort"
	"time"

	"failboard/internal/models"
)

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TrendingHashtags counts stories per tag among stories created at or after
// since. Ties are ordered by tag name.
func TrendingHashtags(stories []models.Story, since time.Time, limit int) []TagCount {
	counts := make(map[string]int)
	for _, s := range stories {
		if s.CreatedAt.Before(since) {
			continue
		}
		for _, tag := range s.Hashtags {
			counts[tag]++
		}
	}

	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TopStories returns up to n stories by votes, newest first among equals.
func TopStories(stories []models.Story, n int) []models.Story {
	top := Compose(stories, nil, Filters{}, SortVotes)
	if n >= 0 && len(top) > n {
		top = top[:n]
	}
	return top
}

type Stats struct {
	NewStories    int            `json:"newStories"`
	TotalStories  int            `json:"totalStories"`
	TotalVotes    int            `json:"totalVotes"`
	TotalComments int            `json:"totalComments"`
	ByCategory    map[string]int `json:"byCategory"`
}

// CommunityStats summarises the whole board; NewStories and TotalVotes cover
// only stories created at or after since.
func CommunityStats(stories []models.Story, since time.Time) Stats {
	st := Stats{TotalStories: len(stories), ByCategory: make(map[string]int)}
	for _, s := range stories {
		st.ByCategory[string(s.Category)]++
		st.TotalComments += len(s.Comments)
		if !s.CreatedAt.Before(since) {
			st.NewStories++
			st.TotalVotes += s.Votes
		}
	}
	return st
}

type AuthorSummary struct {
	Stories         int `json:"stories"`
	StoriesThisWeek int `json:"storiesThisWeek"`
	VotesReceived   int `json:"votesReceived"`
	CommentsOnMine  int `json:"commentsReceived"`
}

func AuthorStats(stories []models.Story, authorID string, now time.Time) AuthorSummary {
	weekAgo := now.AddDate(0, 0, -7)
	var sum AuthorSummary
	for _, s := range stories {
		if s.AuthorID == nil || *s.AuthorID != authorID {
			continue
		}
		sum.Stories++
		sum.VotesReceived += s.Votes
		sum.CommentsOnMine += len(s.Comments)
		if !s.CreatedAt.Before(weekAgo) {
			sum.StoriesThisWeek++
		}
	}
	return sum
}
