package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/safewatch/internal/domain"
)

type IdentityResponse struct {
	ID          uuid.UUID   `json:"id"`
	Role        domain.Role `json:"role"`
	Name        string      `json:"name"`
	Code        string      `json:"code,omitempty"`
	Contact     string      `json:"contact,omitempty"`
	WatchedCode string      `json:"watched_code,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type SessionResponse struct {
	Token    string            `json:"token"`
	Identity *IdentityResponse `json:"identity"`
}

func IdentityToApi(identity domain.Identity) *IdentityResponse {
	resp := &IdentityResponse{
		ID:   identity.ID(),
		Role: identity.Role,
	}
	switch {
	case identity.IsPrincipal():
		p := identity.Principal
		resp.Name = p.Name
		resp.Code = p.Code
		resp.Contact = p.Contact
		resp.CreatedAt = p.CreatedAt
	case identity.IsObserver():
		o := identity.Observer
		resp.Name = o.Name
		resp.WatchedCode = o.WatchedCode
		resp.CreatedAt = o.CreatedAt
	}
	return resp
}

func SessionToApi(identity domain.Identity, token string) *SessionResponse {
	return &SessionResponse{Token: token, Identity: IdentityToApi(identity)}
}
