package conversation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var ErrNotFound = errors.New("conversation not found")

type Conversation struct {
	ID             string    `json:"conversation_id"`
	ParticipantIDs []string  `json:"participants"`
	CreatedAt      time.Time `json:"created_at"`
}

// Participants returns the ids allowed to see the conversation.
func (c Conversation) Participants() []string {
	return c.ParticipantIDs
}

func (c Conversation) HasParticipant(userID string) bool {
	return lo.Contains(c.ParticipantIDs, userID)
}

type CreateConversationRequest struct {
	Participants []string `json:"participants" binding:"omitempty,max=100,dive,uuid"`
}

type AddParticipantRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

// with pointers if optional, it will be nil
type ListFilter struct {
	Participant *string
}

// New creates a conversation whose participant set is the creator plus others,
// deduplicated. The creator is always first.
func New(creatorID string, others []string, now time.Time) Conversation {
	ids := lo.Uniq(append([]string{creatorID}, others...))

	return Conversation{
		ID:             uuid.NewString(),
		ParticipantIDs: ids,
		CreatedAt:      now.UTC().Truncate(time.Microsecond),
	}
}
