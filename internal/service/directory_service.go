package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/internal/repository"
	"github.com/immxrtalbeast/safewatch/lib/logger/sl"
)

var (
	ErrInvalidCode     = errors.New("invalid user code")
	ErrNameRequired    = errors.New("name is required")
	ErrContactRequired = errors.New("contact is required")
	ErrUnknownIdentity = errors.New("identity not found")
	ErrCodesExhausted  = errors.New("could not allocate a unique code")
)

const maxCodeAllocations = 8

type DirectoryService struct {
	principals repository.PrincipalRepository
	observers  repository.ObserverRepository
	log        *slog.Logger
}

func NewDirectoryService(principals repository.PrincipalRepository, observers repository.ObserverRepository, log *slog.Logger) *DirectoryService {
	if log == nil {
		log = slog.Default()
	}
	return &DirectoryService{
		principals: principals,
		observers:  observers,
		log:        log,
	}
}

func (s *DirectoryService) RegisterPrincipal(ctx context.Context, name string, contact string) (*domain.Principal, error) {
	const op = "service.directory.registerPrincipal"
	log := s.log.With(slog.String("op", op))

	name = strings.TrimSpace(name)
	contact = strings.TrimSpace(contact)
	if name == "" {
		return nil, ErrNameRequired
	}
	if contact == "" {
		return nil, ErrContactRequired
	}

	for attempt := 0; attempt < maxCodeAllocations; attempt++ {
		principal := domain.NewPrincipal(name, contact)
		err := s.principals.Create(ctx, principal)
		if errors.Is(err, repository.ErrCodeExists) {
			log.Debug("code collision, retrying", slog.String("code", principal.Code))
			continue
		}
		if err != nil {
			log.Error("failed to create principal", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		log.Info("principal registered",
			slog.String("principal_id", principal.ID.String()),
			slog.String("code", principal.Code),
		)
		return principal, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrCodesExhausted)
}

func (s *DirectoryService) LinkObserver(ctx context.Context, name string, code string) (*domain.Observer, error) {
	const op = "service.directory.linkObserver"
	log := s.log.With(slog.String("op", op))

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	principal, err := s.ResolveCode(ctx, code)
	if err != nil {
		log.Info("link rejected", slog.String("code", code), sl.Err(err))
		return nil, err
	}

	observer := domain.NewObserver(name, principal.Code)
	if err := s.observers.Create(ctx, observer); err != nil {
		log.Error("failed to create observer", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("observer linked",
		slog.String("observer_id", observer.ID.String()),
		slog.String("code", observer.WatchedCode),
	)
	return observer, nil
}

// ResolveCode returns the principal owning code, or ErrInvalidCode.
func (s *DirectoryService) ResolveCode(ctx context.Context, code string) (*domain.Principal, error) {
	const op = "service.directory.resolveCode"

	code = domain.NormalizeCode(code)
	if !domain.ValidCode(code) {
		return nil, ErrInvalidCode
	}

	principal, err := s.principals.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return principal, nil
}

func (s *DirectoryService) CurrentCode(ctx context.Context, observerID uuid.UUID) (string, error) {
	const op = "service.directory.currentCode"

	observer, err := s.observers.GetByID(ctx, observerID)
	if err != nil {
		if errors.Is(err, repository.ErrObserverNotFound) {
			return "", ErrUnknownIdentity
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return observer.WatchedCode, nil
}

// Identity loads the current record behind a role and id.
func (s *DirectoryService) Identity(ctx context.Context, role domain.Role, id uuid.UUID) (domain.Identity, error) {
	const op = "service.directory.identity"

	switch role {
	case domain.RolePrincipal:
		principal, err := s.principals.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrPrincipalNotFound) {
				return domain.Identity{}, ErrUnknownIdentity
			}
			return domain.Identity{}, fmt.Errorf("%s: %w", op, err)
		}
		return domain.PrincipalIdentity(principal), nil
	case domain.RoleObserver:
		observer, err := s.observers.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrObserverNotFound) {
				return domain.Identity{}, ErrUnknownIdentity
			}
			return domain.Identity{}, fmt.Errorf("%s: %w", op, err)
		}
		return domain.ObserverIdentity(observer), nil
	}
	return domain.Identity{}, ErrUnknownIdentity
}

// RelinkObserver points an existing observer at a different principal.
func (s *DirectoryService) RelinkObserver(ctx context.Context, observerID uuid.UUID, code string) (*domain.Observer, error) {
	const op = "service.directory.relinkObserver"
	log := s.log.With(slog.String("op", op), slog.String("observer_id", observerID.String()))

	principal, err := s.ResolveCode(ctx, code)
	if err != nil {
		log.Info("relink rejected", slog.String("code", code), sl.Err(err))
		return nil, err
	}

	observer, err := s.observers.GetByID(ctx, observerID)
	if err != nil {
		if errors.Is(err, repository.ErrObserverNotFound) {
			return nil, ErrUnknownIdentity
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	observer.WatchedCode = principal.Code
	if err := s.observers.Update(ctx, observer); err != nil {
		log.Error("failed to update observer", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("observer relinked", slog.String("code", observer.WatchedCode))
	return observer, nil
}
