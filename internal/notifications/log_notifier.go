package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier records deliveries in the log. It is the fallback when the
// realtime feed is disabled.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) MessageCreated(ctx context.Context, in MessageCreatedInput) error {
	n.log.InfoContext(ctx, "notification.message_created",
		"message_id", in.Message.ID,
		"conversation_id", in.Message.ConversationID,
		"sender_id", in.Message.SenderID,
		"recipients", len(in.Recipients),
	)
	return nil
}
