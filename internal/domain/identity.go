package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePrincipal Role = "principal"
	RoleObserver  Role = "observer"
)

// Principal is the protected user. Contact is the phone number the
// escalation sequence reaches out to.
type Principal struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Contact   string    `json:"contact"`
	CreatedAt time.Time `json:"created_at"`
}

// Observer watches the principal whose code is WatchedCode. An empty
// WatchedCode means the link has not resolved yet.
type Observer struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	WatchedCode string    `json:"watched_code"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewPrincipal(name string, contact string) *Principal {
	return &Principal{
		ID:        uuid.New(),
		Name:      name,
		Code:      NewCode(),
		Contact:   contact,
		CreatedAt: time.Now().UTC(),
	}
}

func NewObserver(name string, watchedCode string) *Observer {
	return &Observer{
		ID:          uuid.New(),
		Name:        name,
		WatchedCode: watchedCode,
		CreatedAt:   time.Now().UTC(),
	}
}

// Identity is the authenticated party behind a connection. Exactly one of
// Principal and Observer is set, matching Role.
type Identity struct {
	Role      Role       `json:"role"`
	Principal *Principal `json:"principal,omitempty"`
	Observer  *Observer  `json:"observer,omitempty"`
}

func PrincipalIdentity(p *Principal) Identity {
	return Identity{Role: RolePrincipal, Principal: p}
}

func ObserverIdentity(o *Observer) Identity {
	return Identity{Role: RoleObserver, Observer: o}
}

func (i Identity) IsPrincipal() bool {
	return i.Role == RolePrincipal && i.Principal != nil
}

func (i Identity) IsObserver() bool {
	return i.Role == RoleObserver && i.Observer != nil
}

func (i Identity) ID() uuid.UUID {
	switch {
	case i.IsPrincipal():
		return i.Principal.ID
	case i.IsObserver():
		return i.Observer.ID
	}
	return uuid.Nil
}

// JoinCode is the room this identity belongs in: its own code for a
// principal, the watched code for an observer.
func (i Identity) JoinCode() (string, bool) {
	var code string
	switch {
	case i.IsPrincipal():
		code = i.Principal.Code
	case i.IsObserver():
		code = i.Observer.WatchedCode
	}
	return code, code != ""
}
