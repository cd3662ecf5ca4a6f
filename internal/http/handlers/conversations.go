package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/chathub/internal/access"
	"github.com/geocoder89/chathub/internal/chat"
	"github.com/geocoder89/chathub/internal/config"
	"github.com/geocoder89/chathub/internal/domain/conversation"
	"github.com/geocoder89/chathub/internal/domain/message"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/geocoder89/chathub/internal/http/middlewares"
	"github.com/geocoder89/chathub/internal/query"
	"github.com/gin-gonic/gin"
)

type ConversationsService interface {
	CreateConversation(ctx context.Context, caller access.Caller, req conversation.CreateConversationRequest) (conversation.Conversation, error)
	ListConversations(ctx context.Context, caller access.Caller, f conversation.ListFilter) ([]conversation.Conversation, error)
	GetConversation(ctx context.Context, caller access.Caller, id string) (chat.ConversationDetail, error)
	ListParticipants(ctx context.Context, caller access.Caller, id string) ([]user.User, error)
	AddParticipant(ctx context.Context, caller access.Caller, conversationID, userID string) error
	SendMessage(ctx context.Context, caller access.Caller, conversationID, body string) (message.Message, error)
	ConversationMessages(ctx context.Context, caller access.Caller, conversationID string) ([]message.Message, error)
}

type ConversationsHandler struct {
	svc ConversationsService
}

func NewConversationsHandler(svc ConversationsService) *ConversationsHandler {
	return &ConversationsHandler{svc: svc}
}

func (h *ConversationsHandler) Create(ctx *gin.Context) {
	var req conversation.CreateConversationRequest
	if !BindOptionalJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	c, err := h.svc.CreateConversation(cctx, middlewares.CallerFromContext(ctx), req)
	if err != nil {
		respondServiceError(ctx, err, "Could not create conversation")
		return
	}

	ctx.JSON(http.StatusCreated, c)
}

func (h *ConversationsHandler) List(ctx *gin.Context) {
	participant, err := query.UUIDParam("participant", ctx.Query("participant"))
	if err != nil {
		respondServiceError(ctx, err, "Could not list conversations")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	items, err := h.svc.ListConversations(cctx, middlewares.CallerFromContext(ctx), conversation.ListFilter{Participant: participant})
	if err != nil {
		respondServiceError(ctx, err, "Could not list conversations")
		return
	}

	ctx.JSON(http.StatusOK, conversationList{Count: len(items), Results: nonNil(items)})
}

func (h *ConversationsHandler) Get(ctx *gin.Context) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	d, err := h.svc.GetConversation(cctx, middlewares.CallerFromContext(ctx), id)
	if err != nil {
		respondServiceError(ctx, err, "Could not load conversation")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, toConversationDetail(d))
}

func (h *ConversationsHandler) Participants(ctx *gin.Context) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	users, err := h.svc.ListParticipants(cctx, middlewares.CallerFromContext(ctx), id)
	if err != nil {
		respondServiceError(ctx, err, "Could not list participants")
		return
	}

	ctx.JSON(http.StatusOK, nonNil(users))
}

func (h *ConversationsHandler) SendMessage(ctx *gin.Context) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	var req message.SendMessageRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	m, err := h.svc.SendMessage(cctx, middlewares.CallerFromContext(ctx), id, *req.Body)
	if err != nil {
		respondServiceError(ctx, err, "Could not send message")
		return
	}

	ctx.JSON(http.StatusCreated, m)
}

func (h *ConversationsHandler) AddParticipant(ctx *gin.Context) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	var req conversation.AddParticipantRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.svc.AddParticipant(cctx, middlewares.CallerFromContext(ctx), id, req.UserID); err != nil {
		respondServiceError(ctx, err, "Could not add participant")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "participant added"})
}

func (h *ConversationsHandler) Messages(ctx *gin.Context) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	msgs, err := h.svc.ConversationMessages(cctx, middlewares.CallerFromContext(ctx), id)
	if err != nil {
		respondServiceError(ctx, err, "Could not list messages")
		return
	}

	ctx.JSON(http.StatusOK, nonNil(msgs))
}
