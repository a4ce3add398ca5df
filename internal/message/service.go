// Package message implements one-to-one conversations between users.
package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"failboard/internal/models"
	"failboard/internal/pubsub"
	"failboard/internal/utils"

	"github.com/google/uuid"
)

const (
	MaxMessageLength = 1000
	HistoryLimit     = 100
	previewLength    = 50
)

type Participant struct {
	ID   string
	Name string
}

type Service struct {
	store Store
	hub   *pubsub.Hub[models.Message]
	now   func() time.Time
}

func NewService(store Store, hub *pubsub.Hub[models.Message]) *Service {
	return &Service{store: store, hub: hub, now: time.Now}
}

// Start returns the conversation between from and to, creating it when the
// pair has never talked before.
func (s *Service) Start(ctx context.Context, from, to Participant) (models.Conversation, error) {
	if to.ID == "" || from.ID == "" {
		return models.Conversation{}, fmt.Errorf("%w: participant required", models.ErrValidation)
	}
	if from.ID == to.ID {
		return models.Conversation{}, fmt.Errorf("%w: cannot message yourself", models.ErrValidation)
	}

	conv, err := s.store.FindConversation(ctx, from.ID, to.ID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.Conversation{}, err
	}

	now := s.now().UTC()
	conv = models.Conversation{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Participants: []string{from.ID, to.ID},
		ParticipantNames: map[string]string{
			from.ID: from.Name,
			to.ID:   to.Name,
		},
		UpdatedAt: now,
		CreatedAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

// Conversation returns the conversation if userID takes part in it.
func (s *Service) Conversation(ctx context.Context, userID, conversationID string) (models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !conv.HasParticipant(userID) {
		return models.Conversation{}, fmt.Errorf("%w: not a participant", models.ErrForbidden)
	}
	return conv, nil
}

func (s *Service) Messages(ctx context.Context, userID, conversationID string) ([]models.Message, error) {
	if _, err := s.Conversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID, HistoryLimit)
}

func (s *Service) Send(ctx context.Context, sender Participant, conversationID, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, fmt.Errorf("%w: message text is empty", models.ErrValidation)
	}
	if len([]rune(text)) > MaxMessageLength {
		return models.Message{}, fmt.Errorf("%w: message longer than %d characters", models.ErrValidation, MaxMessageLength)
	}
	if _, err := s.Conversation(ctx, sender.ID, conversationID); err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		SenderID:       sender.ID,
		SenderName:     sender.Name,
		Text:           text,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return models.Message{}, err
	}
	if err := s.store.TouchConversation(ctx, conversationID, utils.Truncate(text, previewLength), msg.CreatedAt); err != nil {
		return models.Message{}, err
	}

	s.hub.Publish(conversationID, msg)
	return msg, nil
}

// Subscribe streams new messages of a conversation the user belongs to.
func (s *Service) Subscribe(ctx context.Context, userID, conversationID string) (<-chan models.Message, func(), error) {
	if _, err := s.Conversation(ctx, userID, conversationID); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(conversationID)
	return ch, cancel, nil
}
