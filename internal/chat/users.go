package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/chathub/internal/access"
	"github.com/geocoder89/chathub/internal/domain/user"
)

// Me returns the caller's own record. A token for a deleted user is treated
// as unauthenticated.
func (s *Service) Me(ctx context.Context, caller access.Caller) (user.User, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return user.User{}, err
	}

	u, err := s.users.GetByID(ctx, caller.UserID)
	if errors.Is(err, user.ErrNotFound) {
		return user.User{}, access.ErrUnauthenticated
	}

	return u, err
}

func (s *Service) GetUser(ctx context.Context, caller access.Caller, id string) (user.User, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return user.User{}, err
	}

	return s.users.GetByID(ctx, id)
}

// ListUsers returns the directory of users, oldest first.
func (s *Service) ListUsers(ctx context.Context, caller access.Caller) ([]user.User, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return nil, err
	}

	return s.users.List(ctx)
}

// CreateUser is the admin path for adding users.
func (s *Service) CreateUser(ctx context.Context, caller access.Caller, req user.CreateUserRequest) (user.User, error) {
	if err := access.RequireRole(caller, user.RoleAdmin); err != nil {
		return user.User{}, err
	}

	return s.createUser(ctx, req)
}

func (s *Service) createUser(ctx context.Context, req user.CreateUserRequest) (user.User, error) {
	hash, err := s.hash(req.Password)
	if err != nil {
		return user.User{}, err
	}

	return s.users.Create(ctx, user.New(req, hash, s.now()))
}

// UpdateUser lets a user edit themselves; admins may edit anyone. A supplied
// password is re-hashed before it is stored.
func (s *Service) UpdateUser(ctx context.Context, caller access.Caller, id string, req user.UpdateUserRequest) (user.User, error) {
	if err := access.RequireAuthenticated(caller); err != nil {
		return user.User{}, err
	}

	if caller.UserID != id && caller.Role != user.RoleAdmin {
		return user.User{}, access.ErrForbidden
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if req.FirstName != nil {
		u.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		u.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		u.Email = user.NormalizeEmail(*req.Email)
	}
	if req.PhoneNumber != nil {
		u.PhoneNumber = req.PhoneNumber
	}
	if req.Password != nil {
		hash, err := s.hash(*req.Password)
		if err != nil {
			return user.User{}, err
		}
		u.PasswordHash = hash
	}

	return s.users.Update(ctx, u)
}

func (s *Service) DeleteUser(ctx context.Context, caller access.Caller, id string) error {
	if err := access.RequireRole(caller, user.RoleAdmin); err != nil {
		return err
	}

	return s.users.Delete(ctx, id)
}
