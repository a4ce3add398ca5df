package story

import (
	"net/http"
	"strconv"
	"time"

	"failboard/internal/feed"
	"failboard/internal/models"
	"failboard/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	defaultTrendingDays  = 7
	defaultTrendingLimit = 10
	topStoriesLimit      = 5
)

func (h *StoryHandler) ListStories(c *gin.Context) {
	f := feed.Filters{
		Search:       c.Query("q"),
		Hashtag:      c.Query("hashtag"),
		BookmarkOnly: c.Query("bookmarked") == "true",
		Category:     models.Category(c.Query("category")),
	}

	var bookmarked map[string]bool
	if identity, ok := utils.BrowsingIdentity(c); ok {
		set, err := h.bookmarks.Get(c.Request.Context(), identity)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		bookmarked = set.Lookup()
	}

	utils.Success(c, feed.Compose(h.repo.Stories(), bookmarked, f, feed.ParseSort(c.Query("sort"))))
}

func (h *StoryHandler) GetStory(c *gin.Context) {
	s, err := h.repo.Get(c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, s)
}

func (h *StoryHandler) SimilarStories(c *gin.Context) {
	if h.assistant == nil {
		if _, err := h.repo.Get(c.Param("id")); err != nil {
			utils.RespondError(c, err)
			return
		}
		utils.Success(c, []models.Story{})
		return
	}
	similar, err := h.assistant.Similar(c.Request.Context(), c.Param("id"), SimilarLimit)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, similar)
}

// Trending reports hashtag counts and the most voted stories over the last
// ?days (default 7).
func (h *StoryHandler) Trending(c *gin.Context) {
	days := queryInt(c, "days", defaultTrendingDays)
	limit := queryInt(c, "limit", defaultTrendingLimit)
	since := time.Now().Add(-time.Duration(days) * 24 * time.Hour)

	stories := h.repo.Stories()
	var recent []models.Story
	for _, s := range stories {
		if !s.CreatedAt.Before(since) {
			recent = append(recent, s)
		}
	}

	utils.Success(c, gin.H{
		"hashtags": feed.TrendingHashtags(stories, since, limit),
		"stories":  feed.TopStories(recent, topStoriesLimit),
	})
}

func (h *StoryHandler) Stats(c *gin.Context) {
	since := time.Now().Add(-time.Duration(defaultTrendingDays) * 24 * time.Hour)
	utils.Success(c, feed.CommunityStats(h.repo.Stories(), since))
}

func queryInt(c *gin.Context, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (h *StoryHandler) requireIdentity(c *gin.Context) (string, bool) {
	identity, ok := utils.BrowsingIdentity(c)
	if !ok {
		utils.Error(c, http.StatusBadRequest, "log in or send an X-Device-Id header")
		return "", false
	}
	return identity, true
}
