package service

import (
	"errors"

	"github.com/immxrtalbeast/safewatch/internal/domain"
)

var ErrForbidden = errors.New("identity is not linked to this code")

// LinkPolicy decides which codes an identity may join and publish to.
// With Open set, knowing a code is enough to join its room.
type LinkPolicy struct {
	Open bool
}

func (p LinkPolicy) CanJoin(identity domain.Identity, code string) error {
	if p.Open {
		return nil
	}
	linked, ok := identity.JoinCode()
	if !ok || linked != code {
		return ErrForbidden
	}
	return nil
}

// CanPublish only admits the principal that owns code, unless the policy
// is open.
func (p LinkPolicy) CanPublish(identity domain.Identity, code string) error {
	if p.Open {
		return nil
	}
	if !identity.IsPrincipal() || identity.Principal.Code != code {
		return ErrForbidden
	}
	return nil
}
