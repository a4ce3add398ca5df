// Package feed turns the story collection into the list a client renders.
// Everything here is a pure function of its arguments.
package feed

import (
	"sort"
	"strings"

	"failboard/internal/models"
)

type Sort string

const (
	SortNewest Sort = "newest"
	SortVotes  Sort = "votes"
)

// ParseSort maps the query parameter to a Sort; anything unknown is newest.
func ParseSort(s string) Sort {
	switch strings.ToLower(s) {
	case "votes", "mostvoted", "most_voted", "top":
		return SortVotes
	}
	return SortNewest
}

type Filters struct {
	Search       string
	Hashtag      string
	BookmarkOnly bool
	Category     models.Category
}

// Compose filters by search term, hashtag, bookmarks and category, in that
// order, then sorts newest first by CreatedAt, or by votes with CreatedAt
// breaking ties. Equal keys keep their input order. The input slice is not
// modified.
func Compose(stories []models.Story, bookmarked map[string]bool, f Filters, by Sort) []models.Story {
	out := make([]models.Story, 0, len(stories))

	term := strings.ToLower(strings.TrimSpace(f.Search))
	tag := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f.Hashtag), "#"))
	category := f.Category
	if category == "All" {
		category = ""
	}

	for _, s := range stories {
		if term != "" &&
			!strings.Contains(strings.ToLower(s.Text), term) &&
			!strings.Contains(strings.ToLower(s.Author), term) {
			continue
		}
		if tag != "" && !s.HasHashtag(tag) {
			continue
		}
		if f.BookmarkOnly && !bookmarked[s.ID] {
			continue
		}
		if category != "" && s.Category != category {
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if by == SortVotes && out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
