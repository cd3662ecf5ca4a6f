package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleGuest, RoleHost, RoleAdmin:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type User struct {
	ID           string    `json:"user_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	PhoneNumber  *string   `json:"phone_number"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateUserRequest struct {
	FirstName   string  `json:"first_name" binding:"required,max=100"`
	LastName    string  `json:"last_name" binding:"required,max=100"`
	Email       string  `json:"email" binding:"required,email,max=255"`
	Password    string  `json:"password" binding:"required,min=8,max=72"`
	PhoneNumber *string `json:"phone_number" binding:"omitempty,max=20"`
	Role        Role    `json:"role" binding:"required,oneof=guest host admin"`
}

// UpdateUserRequest is a partial update; nil fields are left untouched.
type UpdateUserRequest struct {
	FirstName   *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName    *string `json:"last_name" binding:"omitempty,min=1,max=100"`
	Email       *string `json:"email" binding:"omitempty,email,max=255"`
	Password    *string `json:"password" binding:"omitempty,min=8,max=72"`
	PhoneNumber *string `json:"phone_number" binding:"omitempty,max=20"`
}

// New builds a user from the request. passwordHash must already be hashed.
func New(req CreateUserRequest, passwordHash string, now time.Time) User {
	return User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        NormalizeEmail(req.Email),
		PasswordHash: passwordHash,
		PhoneNumber:  req.PhoneNumber,
		Role:         req.Role,
		CreatedAt:    now.UTC().Truncate(time.Microsecond),
	}
}

func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func (u User) String() string {
	return u.FirstName + " " + u.LastName + " (" + u.Email + ")"
}
