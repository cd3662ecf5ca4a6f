package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/chathub/internal/access"
	"github.com/geocoder89/chathub/internal/chat"
	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/geocoder89/chathub/internal/domain/message"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/geocoder89/chathub/internal/http/middlewares"
	"github.com/geocoder89/chathub/internal/query"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	if id := ctx.GetString(middlewares.CtxRequestID); id != "" {
		return id
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusUnauthorized, "unauthorized", message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// respondServiceError maps a service error onto the envelope. Anything it
// does not recognise is logged and hidden behind a 500.
func respondServiceError(ctx *gin.Context, err error, fallback string) {
	var filterErr *query.FilterError

	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		RespondUnauthorized(ctx, "Authentication credentials were not provided or are invalid.")
	case errors.Is(err, access.ErrForbidden):
		RespondForbidden(ctx, "You are not a participant of this conversation.")
	case errors.Is(err, user.ErrEmailTaken):
		RespondError(ctx, http.StatusBadRequest, "email_taken", "A user with this email already exists.", nil)
	case errors.As(err, &filterErr):
		RespondError(ctx, http.StatusBadRequest, "invalid_filter", "Invalid filter value.", gin.H{filterErr.Param: filterErr.Reason})
	case errors.Is(err, chat.ErrInvalidConversation):
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": []FieldError{{
			Field: "conversation", Rule: "exists", Message: "conversation does not exist",
		}}})
	case errors.Is(err, chat.ErrInvalidParticipant):
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": []FieldError{{
			Field: "participants", Rule: "exists", Message: "participant does not exist",
		}}})
	case errors.Is(err, query.ErrInvalidPage):
		RespondNotFound(ctx, "Invalid page.")
	case errors.Is(err, conversation.ErrNotFound):
		RespondNotFound(ctx, "Conversation not found")
	case errors.Is(err, message.ErrNotFound):
		RespondNotFound(ctx, "Message not found")
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), fallback,
			"err", err,
			"request_id", requestIDFrom(ctx),
		)
		RespondInternal(ctx, fallback)
	}
}
