package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/safewatch/internal/domain"
)

type RelayInteractor interface {
	Connect(identity domain.Identity) *domain.Connection
	Disconnect(conn *domain.Connection)
	Leave(conn *domain.Connection) string
	Join(ctx context.Context, conn *domain.Connection, code string) error
	Handle(ctx context.Context, conn *domain.Connection, msg domain.Message) error
	PublishLocation(ctx context.Context, sender *domain.Connection, event domain.PresenceEvent) error
	PublishAlert(ctx context.Context, event domain.PresenceEvent) error
}

type DirectoryInteractor interface {
	RegisterPrincipal(ctx context.Context, name string, contact string) (*domain.Principal, error)
	LinkObserver(ctx context.Context, name string, code string) (*domain.Observer, error)
	RelinkObserver(ctx context.Context, observerID uuid.UUID, code string) (*domain.Observer, error)
	ResolveCode(ctx context.Context, code string) (*domain.Principal, error)
	CurrentCode(ctx context.Context, observerID uuid.UUID) (string, error)
	Identity(ctx context.Context, role domain.Role, id uuid.UUID) (domain.Identity, error)
}

type AlertInteractor interface {
	TriggerAlert(ctx context.Context, identity domain.Identity, req AlertRequest) (*AlertResult, error)
}

// CodeResolver is the part of the directory the relay depends on.
type CodeResolver interface {
	ResolveCode(ctx context.Context, code string) (*domain.Principal, error)
}
