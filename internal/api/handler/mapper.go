package handler

import (
	"github.com/clinicdesk/staff-portal/internal/core/domain"
	"github.com/clinicdesk/staff-portal/internal/core/ports"
)

// --- Request → Service input ---

func toCreateUserInput(req createUserRequest) ports.CreateUserInput {
	return ports.CreateUserInput{
		Identity: req.Username,
		Secret:   req.Password,
		Role:     req.Role,
	}
}

// --- Service output → Response ---

func toLoginResponse(res *ports.LoginResult) loginResponse {
	return loginResponse{
		Token:       res.Token,
		TokenType:   "Bearer",
		ExpiresAt:   res.ExpiresAt.UTC(),
		SubjectID:   res.SubjectID,
		Role:        res.Role.String(),
		DisplayName: res.DisplayName,
	}
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Identity,
		Role:      u.Role.String(),
		CreatedAt: u.CreatedAt.UTC(),
	}
}

func toListUsersResponse(users []*domain.User) listUsersResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return listUsersResponse{Users: out, Total: len(out)}
}

func toProfileResponse(p *ports.Profile) profileResponse {
	resp := profileResponse{
		SubjectID:   p.SubjectID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Role:        p.Role.String(),
		Demo:        p.Demo,
	}
	if !p.CreatedAt.IsZero() {
		created := p.CreatedAt.UTC()
		resp.CreatedAt = &created
	}
	return resp
}

func toPolicyResponse() policyResponse {
	ops := domain.AllOperations()
	entries := make([]policyEntry, 0, len(ops))
	for _, op := range ops {
		roles := domain.AllowedRoles(op)
		names := make([]string, 0, len(roles))
		for _, r := range roles {
			names = append(names, r.String())
		}
		entries = append(entries, policyEntry{Operation: string(op), Roles: names})
	}
	return policyResponse{Operations: entries}
}
