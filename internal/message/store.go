package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"failboard/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store interface {
	FindConversation(ctx context.Context, a, b string) (models.Conversation, error)
	GetConversation(ctx context.Context, id string) (models.Conversation, error)
	CreateConversation(ctx context.Context, conv models.Conversation) error
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	InsertMessage(ctx context.Context, msg models.Message) error
	ListMessages(ctx context.Context, conversationID string, limit int64) ([]models.Message, error)
	TouchConversation(ctx context.Context, id, lastMessage string, at time.Time) error
}

type MongoStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewMongoStore(conversations, messages *mongo.Collection) *MongoStore {
	return &MongoStore{conversations: conversations, messages: messages}
}

func (s *MongoStore) FindConversation(ctx context.Context, a, b string) (models.Conversation, error) {
	var conv models.Conversation
	filter := bson.M{"participants": bson.M{"$all": bson.A{a, b}, "$size": 2}}
	err := s.conversations.FindOne(ctx, filter).Decode(&conv)
	return conv, translate(err)
}

func (s *MongoStore) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	var conv models.Conversation
	err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	return conv, translate(err)
}

func (s *MongoStore) CreateConversation(ctx context.Context, conv models.Conversation) error {
	_, err := s.conversations.InsertOne(ctx, conv)
	return translate(err)
}

func (s *MongoStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := s.conversations.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, translate(err)
	}
	convs := []models.Conversation{}
	if err := cur.All(ctx, &convs); err != nil {
		return nil, translate(err)
	}
	return convs, nil
}

func (s *MongoStore) InsertMessage(ctx context.Context, msg models.Message) error {
	_, err := s.messages.InsertOne(ctx, msg)
	return translate(err)
}

// ListMessages returns the latest limit messages in chronological order.
func (s *MongoStore) ListMessages(ctx context.Context, conversationID string, limit int64) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := s.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, translate(err)
	}
	msgs := []models.Message{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, translate(err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *MongoStore) TouchConversation(ctx context.Context, id, lastMessage string, at time.Time) error {
	res, err := s.conversations.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"last_message": lastMessage, "updated_at": at},
	})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: conversation %s", models.ErrNotFound, id)
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.ErrNotFound
	default:
		return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}
}
