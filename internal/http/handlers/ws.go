package handlers

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/geocoder89/chathub/internal/http/middlewares"
	"github.com/geocoder89/chathub/internal/realtime"
	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
)

type RealtimeHub interface {
	Subscribe(userID string) *realtime.Subscription
	Serve(ctx context.Context, conn *websocket.Conn, sub *realtime.Subscription) error
}

type RealtimeHandler struct {
	hub            RealtimeHub
	originPatterns []string
}

// NewRealtimeHandler accepts upgrades from the same host plus the CORS
// allow-list.
func NewRealtimeHandler(hub RealtimeHub, allowedOrigins []string) *RealtimeHandler {
	patterns := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, strings.TrimSpace(origin))
	}

	return &RealtimeHandler{hub: hub, originPatterns: patterns}
}

func (h *RealtimeHandler) Connect(ctx *gin.Context) {
	caller := middlewares.CallerFromContext(ctx)
	if !caller.Authenticated() {
		RespondUnauthorized(ctx, "Authentication credentials were not provided or are invalid.")
		return
	}

	conn, err := websocket.Accept(ctx.Writer, ctx.Request, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept already wrote the failure response
		return
	}
	defer conn.CloseNow()

	sub := h.hub.Subscribe(caller.UserID)

	err = h.hub.Serve(ctx.Request.Context(), conn, sub)

	slog.Default().DebugContext(ctx.Request.Context(), "realtime feed closed",
		"user_id", caller.UserID,
		"err", err,
	)

	_ = conn.Close(websocket.StatusNormalClosure, "")
}
