package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/chathub/internal/access"
	"github.com/geocoder89/chathub/internal/config"
	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/geocoder89/chathub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type UsersService interface {
	Me(ctx context.Context, caller access.Caller) (user.User, error)
	GetUser(ctx context.Context, caller access.Caller, id string) (user.User, error)
	ListUsers(ctx context.Context, caller access.Caller) ([]user.User, error)
	CreateUser(ctx context.Context, caller access.Caller, req user.CreateUserRequest) (user.User, error)
	UpdateUser(ctx context.Context, caller access.Caller, id string, req user.UpdateUserRequest) (user.User, error)
	DeleteUser(ctx context.Context, caller access.Caller, id string) error
}

type UsersHandler struct {
	svc UsersService
}

func NewUsersHandler(svc UsersService) *UsersHandler {
	return &UsersHandler{svc: svc}
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.svc.Me(cctx, middlewares.CallerFromContext(ctx))
	if err != nil {
		respondServiceError(ctx, err, "Could not load user")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, u)
}

func (h *UsersHandler) UpdateMe(ctx *gin.Context) {
	var req user.UpdateUserRequest
	if !BindJSON(ctx, &req) {
		return
	}

	caller := middlewares.CallerFromContext(ctx)

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.svc.UpdateUser(cctx, caller, caller.UserID, req)
	if err != nil {
		respondServiceError(ctx, err, "Could not update user")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) GetUser(ctx *gin.Context) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.svc.GetUser(cctx, middlewares.CallerFromContext(ctx), id)
	if err != nil {
		respondServiceError(ctx, err, "Could not load user")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, u)
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	items, err := h.svc.ListUsers(cctx, middlewares.CallerFromContext(ctx))
	if err != nil {
		respondServiceError(ctx, err, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, userList{Count: len(items), Results: nonNil(items)})
}

// UpdateUser edits the user named in the path. Only admins may edit someone
// other than themselves.
func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	var req user.UpdateUserRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.svc.UpdateUser(cctx, middlewares.CallerFromContext(ctx), id, req)
	if err != nil {
		respondServiceError(ctx, err, "Could not update user")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var req user.CreateUserRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.svc.CreateUser(cctx, middlewares.CallerFromContext(ctx), req)
	if err != nil {
		respondServiceError(ctx, err, "Could not create user")
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	id, ok := pathUUID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.svc.DeleteUser(cctx, middlewares.CallerFromContext(ctx), id); err != nil {
		respondServiceError(ctx, err, "Could not delete user")
		return
	}

	ctx.Status(http.StatusNoContent)
}
