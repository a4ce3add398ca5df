package story

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"failboard/internal/models"
	"failboard/internal/utils"

	"go.uber.org/zap"
)

const (
	AssistantName = "FailBoard Assistant"
	TaskSupport   = "support_reply"
	SimilarLimit  = 5
)

// AI is the subset of the model client stories need.
type AI interface {
	Enabled() bool
	SupportReply(ctx context.Context, story string) (string, error)
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

type VectorIndex interface {
	Upsert(ctx context.Context, storyID string, vector []float32, category string) error
	Search(ctx context.Context, vector []float32, limit uint64, excludeID string) ([]string, error)
	Delete(ctx context.Context, storyID string) error
}

// Assistant indexes stories for similarity search and answers support requests.
// Both the model client and the index are optional.
type Assistant struct {
	repo  *Repository
	ai    AI
	index VectorIndex
}

func NewAssistant(repo *Repository, ai AI, index VectorIndex) *Assistant {
	return &Assistant{repo: repo, ai: ai, index: index}
}

func (a *Assistant) canIndex() bool {
	return a != nil && a.ai != nil && a.ai.Enabled() && a.index != nil
}

// Index embeds the story text and stores it in the vector index.
func (a *Assistant) Index(ctx context.Context, s models.Story) error {
	if !a.canIndex() {
		return nil
	}
	vec, err := a.ai.GetEmbedding(ctx, s.Text)
	if err != nil {
		return fmt.Errorf("embed story %s: %w", s.ID, err)
	}
	return a.index.Upsert(ctx, s.ID, vec, string(s.Category))
}

func (a *Assistant) IndexAsync(s models.Story) {
	if !a.canIndex() {
		return
	}
	go func() {
		if err := a.Index(context.Background(), s); err != nil {
			zap.L().Warn("index story failed", zap.String("story_id", s.ID), zap.Error(err))
		}
	}()
}

func (a *Assistant) Forget(ctx context.Context, storyID string) {
	if !a.canIndex() {
		return
	}
	if err := a.index.Delete(ctx, storyID); err != nil {
		zap.L().Warn("remove story from index failed", zap.String("story_id", storyID), zap.Error(err))
	}
}

// Similar returns up to limit stories close to id. Hits that were deleted
// since indexing are dropped.
func (a *Assistant) Similar(ctx context.Context, id string, limit int) ([]models.Story, error) {
	s, err := a.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if !a.canIndex() {
		return []models.Story{}, nil
	}
	vec, err := a.ai.GetEmbedding(ctx, s.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed story: %v", models.ErrRemoteUnavailable, err)
	}
	ids, err := a.index.Search(ctx, vec, uint64(limit), id)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", models.ErrRemoteUnavailable, err)
	}

	out := make([]models.Story, 0, len(ids))
	for _, hit := range ids {
		if found, err := a.repo.Get(hit); err == nil {
			out = append(out, found)
		}
	}
	return out, nil
}

// HandleTask consumes ai_queue messages. A deleted story is not an error.
func (a *Assistant) HandleTask(ctx context.Context, body []byte) error {
	var msg models.AITaskMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode ai task: %w", err)
	}
	if msg.Task != TaskSupport {
		zap.L().Warn("unknown ai task", zap.String("task", msg.Task))
		return nil
	}
	if a.ai == nil || !a.ai.Enabled() {
		return nil
	}

	s, err := a.repo.Get(msg.StoryID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	reply, err := a.ai.SupportReply(ctx, s.Text)
	if err != nil {
		return fmt.Errorf("support reply for %s: %w", s.ID, err)
	}
	_, err = a.repo.Comment(ctx, s.ID, utils.Truncate(reply, a.repo.maxLen), AssistantName, nil)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}
