package validators

// Text length is checked by the story repository against STORY_MAX_LENGTH,
// so only presence is validated here.
type CreateStoryRequest struct {
	Text             string `json:"text" binding:"required"`
	Category         string `json:"category" binding:"omitempty,oneof=General Coding Work Life Love Cooking"`
	Author           string `json:"author" binding:"omitempty,max=100"`
	IsSupportRequest bool   `json:"isSupportRequest"`
}

type UpdateStoryRequest struct {
	Text string `json:"text" binding:"required"`
}

type ReactRequest struct {
	Reaction string `json:"reaction" binding:"required,max=32"`
}

type CommentRequest struct {
	Text   string `json:"text" binding:"required,max=1000"`
	Author string `json:"author" binding:"omitempty,max=100"`
}

type ReportRequest struct {
	Reason string  `json:"reason" binding:"required"`
	Detail *string `json:"detail,omitempty" binding:"omitempty,max=1000"`
}

type BulkReportRequest struct {
	IDs    []string `json:"ids" binding:"required,min=1,max=100"`
	Action string   `json:"action" binding:"required,oneof=resolve dismiss delete"`
}

type DigestRequest struct {
	Recipients []string `json:"recipients" binding:"omitempty,dive,email"`
}
