package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/chathub/internal/access"
	"github.com/geocoder89/chathub/internal/chat"
	"github.com/geocoder89/chathub/internal/config"
	"github.com/geocoder89/chathub/internal/domain/message"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/geocoder89/chathub/internal/http/middlewares"
	"github.com/geocoder89/chathub/internal/query"
	"github.com/gin-gonic/gin"
)

type MessagesService interface {
	ListMessages(ctx context.Context, caller access.Caller, f message.ListFilter, page query.PageRequest) (chat.MessageList, error)
	CreateMessage(ctx context.Context, caller access.Caller, req message.CreateMessageRequest) (message.Message, error)
	GetMessage(ctx context.Context, caller access.Caller, id string) (message.Message, user.User, error)
}

type MessagesHandler struct {
	svc MessagesService
}

func NewMessagesHandler(svc MessagesService) *MessagesHandler {
	return &MessagesHandler{svc: svc}
}

func parseMessageFilter(ctx *gin.Context) (message.ListFilter, error) {
	var (
		f   message.ListFilter
		err error
	)

	if f.Sender, err = query.UUIDParam("sender", ctx.Query("sender")); err != nil {
		return f, err
	}
	if f.Conversation, err = query.UUIDParam("conversation", ctx.Query("conversation")); err != nil {
		return f, err
	}
	if f.SentAfter, err = query.TimeParam("sent_at_after", ctx.Query("sent_at_after")); err != nil {
		return f, err
	}
	if f.SentBefore, err = query.TimeParam("sent_at_before", ctx.Query("sent_at_before")); err != nil {
		return f, err
	}

	return f, nil
}

func (h *MessagesHandler) List(ctx *gin.Context) {
	f, err := parseMessageFilter(ctx)
	if err != nil {
		respondServiceError(ctx, err, "Could not list messages")
		return
	}

	page, err := query.ParsePage(ctx.Query("page"), ctx.Query("page_size"))
	if err != nil {
		respondServiceError(ctx, err, "Could not list messages")
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	res, err := h.svc.ListMessages(cctx, middlewares.CallerFromContext(ctx), f, page)
	if err != nil {
		respondServiceError(ctx, err, "Could not list messages")
		return
	}

	ctx.JSON(http.StatusOK, query.NewPage(toMessageDetails(res.Items, res.Senders), res.Total, res.Page, absoluteURL(ctx)))
}

func (h *MessagesHandler) Create(ctx *gin.Context) {
	var req message.CreateMessageRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	m, err := h.svc.CreateMessage(cctx, middlewares.CallerFromContext(ctx), req)
	if err != nil {
		respondServiceError(ctx, err, "Could not create message")
		return
	}

	ctx.JSON(http.StatusCreated, m)
}

func (h *MessagesHandler) Get(ctx *gin.Context) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	m, sender, err := h.svc.GetMessage(cctx, middlewares.CallerFromContext(ctx), id)
	if err != nil {
		respondServiceError(ctx, err, "Could not load message")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, toMessageDetail(m, sender))
}
