package story

import (
	"failboard/internal/feed"
	"failboard/internal/utils"

	"github.com/gin-gonic/gin"
)

func (h *StoryHandler) ToggleBookmark(c *gin.Context) {
	identity, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if _, err := h.repo.Get(id); err != nil {
		utils.RespondError(c, err)
		return
	}
	bookmarked, err := h.bookmarks.Toggle(c.Request.Context(), identity, id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, gin.H{"id": id, "bookmarked": bookmarked})
}

// ListBookmarks returns the caller's bookmarked stories still present, newest first.
func (h *StoryHandler) ListBookmarks(c *gin.Context) {
	identity, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	set, err := h.bookmarks.Get(c.Request.Context(), identity)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, feed.Compose(h.repo.Stories(), set.Lookup(), feed.Filters{BookmarkOnly: true}, feed.SortNewest))
}
