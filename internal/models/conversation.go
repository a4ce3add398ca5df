package models

import "time"

type Conversation struct {
	ID               string            `json:"id" bson:"_id"`
	Participants     []string          `json:"participants" bson:"participants"`
	ParticipantNames map[string]string `json:"participantNames" bson:"participant_names"`
	LastMessage      string            `json:"lastMessage" bson:"last_message"`
	UpdatedAt        time.Time         `json:"updatedAt" bson:"updated_at"`
	CreatedAt        time.Time         `json:"createdAt" bson:"created_at"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

type Message struct {
	ID             string    `json:"id" bson:"_id"`
	ConversationID string    `json:"conversationId" bson:"conversation_id"`
	SenderID       string    `json:"senderId" bson:"sender_id"`
	SenderName     string    `json:"senderName" bson:"sender_name"`
	Text           string    `json:"text" bson:"text"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
}
