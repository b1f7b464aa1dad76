package user

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user account (pure domain model).
type User struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Email       string     `json:"email"`
	Password    string     `json:"-"` // never expose in JSON
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CreateUserRequest is the registration request body.
type CreateUserRequest struct {
	DisplayName string `json:"displayName" binding:"required,min=2,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is a user without sensitive information.
type UserResponse struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Email       string     `json:"email"`
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ToResponse strips sensitive data from a User.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		LastSeenAt:  u.LastSeenAt,
		CreatedAt:   u.CreatedAt,
	}
}

// NewUser creates a user with a generated id.
func NewUser(req CreateUserRequest, hashedPassword string) *User {
	return &User{
		ID:          uuid.New().String(),
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    hashedPassword,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(user *User) error
	GetByID(id string) (*User, error)
	GetByEmail(email string) (*User, error)
	EmailExists(email string) (bool, error)

	// UpdateLastSeen stamps the user's last-seen marker with the current
	// time. Callers on the disconnect path swallow failures.
	UpdateLastSeen(id string) error
}
