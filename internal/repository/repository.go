package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/safewatch/internal/domain"
)

var (
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrCodeExists        = errors.New("principal code already exists")
	ErrObserverNotFound  = errors.New("observer not found")
)

type PrincipalRepository interface {
	Create(ctx context.Context, principal *domain.Principal) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Principal, error)
	GetByCode(ctx context.Context, code string) (*domain.Principal, error)
}

type ObserverRepository interface {
	Create(ctx context.Context, observer *domain.Observer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Observer, error)
	Update(ctx context.Context, observer *domain.Observer) error
}
