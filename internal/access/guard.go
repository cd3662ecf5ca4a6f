// Package access decides whether a caller may touch a conversation or message.
//
// Membership in a conversation's participant set is the only basis for
// object-level access. Collection-level operations only need an authenticated
// caller; the query layer scopes their results.
package access

import (
	"errors"

	"github.com/geocoder89/chathub/internal/domain/user"
	"github.com/samber/lo"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("you are not a participant of this conversation")
)

// Caller is the authenticated identity behind a request. The zero value is an
// anonymous caller.
type Caller struct {
	UserID string
	Role   user.Role
}

func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// Protected is anything whose visibility is decided by a participant set.
type Protected interface {
	Participants() []string
}

func RequireAuthenticated(c Caller) error {
	if !c.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

// Authorize is the object-level check shared by conversations and messages.
func Authorize(c Caller, obj Protected) error {
	if err := RequireAuthenticated(c); err != nil {
		return err
	}

	if obj == nil || !lo.Contains(obj.Participants(), c.UserID) {
		return ErrForbidden
	}

	return nil
}

// RequireRole gates user management. A wrong role is forbidden, not
// unauthenticated.
func RequireRole(c Caller, role user.Role) error {
	if err := RequireAuthenticated(c); err != nil {
		return err
	}
	if c.Role != role {
		return ErrForbidden
	}
	return nil
}
