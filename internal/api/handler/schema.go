package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token       string    `json:"token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	SubjectID   string    `json:"subject_id"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
}

type policyEntry struct {
	Operation string   `json:"operation"`
	Roles     []string `json:"roles"`
}

type policyResponse struct {
	Operations []policyEntry `json:"operations"`
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role"     validate:"required,oneof=admin staff doctor"`
}

type updateIdentityRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,min=6,max=72"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type listUsersResponse struct {
	Users []userResponse `json:"users"`
	Total int            `json:"total"`
}

type profileResponse struct {
	SubjectID   string     `json:"subject_id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	Demo        bool       `json:"demo"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}
