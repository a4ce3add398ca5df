package story

import (
	"net/http"

	"failboard/internal/gamify"
	"failboard/internal/utils"
	"failboard/internal/validators"

	"github.com/gin-gonic/gin"
)

// VoteStory counts every call; there is no per-user vote limit.
func (h *StoryHandler) VoteStory(c *gin.Context) {
	s, err := h.repo.Vote(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	if voterID := utils.OptionalUserID(c); voterID != nil {
		h.award(*voterID, gamify.GiveVote)
		if s.AuthorID != nil && *s.AuthorID != *voterID {
			h.award(*s.AuthorID, gamify.ReceiveVote)
		}
		n, err := h.notifier.OnVote(c.Request.Context(), s, *voterID, utils.GetUsername(c))
		notified("vote", n, err)
	}

	utils.Success(c, gin.H{"id": s.ID, "votes": s.Votes})
}

func (h *StoryHandler) ReactStory(c *gin.Context) {
	var req validators.ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusUnprocessableEntity, "invalid reaction")
		return
	}
	s, err := h.repo.React(c.Request.Context(), c.Param("id"), req.Reaction)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, gin.H{"id": s.ID, "reactions": s.Reactions})
}

func (h *StoryHandler) AddComment(c *gin.Context) {
	var req validators.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusUnprocessableEntity, "invalid comment")
		return
	}

	ctx := c.Request.Context()
	authorID := utils.OptionalUserID(c)
	comment, err := h.repo.Comment(ctx, c.Param("id"), req.Text, displayName(c, req.Author), authorID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	if authorID != nil {
		h.award(*authorID, gamify.WriteComment)
		if s, err := h.repo.Get(c.Param("id")); err == nil {
			n, err := h.notifier.OnComment(ctx, s, *authorID, actorName(c, comment.Author))
			notified("comment", n, err)
		}
	}

	utils.Created(c, comment)
}

func (h *StoryHandler) AddReply(c *gin.Context) {
	var req validators.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusUnprocessableEntity, "invalid reply")
		return
	}

	ctx := c.Request.Context()
	storyID := c.Param("id")
	reply, parent, err := h.repo.Reply(ctx, storyID, c.Param("commentId"), req.Text, displayName(c, req.Author))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	if replierID := utils.OptionalUserID(c); replierID != nil {
		if s, err := h.repo.Get(storyID); err == nil {
			n, err := h.notifier.OnReply(ctx, s, parent, *replierID, actorName(c, reply.Author))
			notified("reply", n, err)
		}
	}

	utils.Created(c, reply)
}
