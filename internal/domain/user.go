package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user entity.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateUserRequest represents a create user request. Active defaults to true.
type CreateUserRequest struct {
	Email  string `json:"email" binding:"required,email,max=255"`
	Name   string `json:"name" binding:"required,max=255"`
	Active *bool  `json:"active"`
}

// UpdateUserRequest represents an update user request.
type UpdateUserRequest struct {
	Name   *string `json:"name" binding:"omitempty,min=1,max=255"`
	Active *bool   `json:"active"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToResponse converts User to UserResponse.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func UsersToResponse(users []*User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToResponse())
	}
	return out
}
