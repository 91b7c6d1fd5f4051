package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/safewatch/internal/domain"
)

type InMemoryPrincipalRepository struct {
	mu         sync.RWMutex
	principals map[uuid.UUID]*domain.Principal
	codes      map[string]uuid.UUID
}

func NewInMemoryPrincipalRepository() *InMemoryPrincipalRepository {
	return &InMemoryPrincipalRepository{
		principals: make(map[uuid.UUID]*domain.Principal),
		codes:      make(map[string]uuid.UUID),
	}
}

func (r *InMemoryPrincipalRepository) Create(ctx context.Context, principal *domain.Principal) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.codes[principal.Code]; ok {
		return ErrCodeExists
	}

	stored := *principal
	r.principals[principal.ID] = &stored
	r.codes[principal.Code] = principal.ID
	return nil
}

func (r *InMemoryPrincipalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	principal, ok := r.principals[id]
	if !ok {
		return nil, ErrPrincipalNotFound
	}

	found := *principal
	return &found, nil
}

func (r *InMemoryPrincipalRepository) GetByCode(ctx context.Context, code string) (*domain.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.codes[code]
	if !ok {
		return nil, ErrPrincipalNotFound
	}

	principal, ok := r.principals[id]
	if !ok {
		return nil, ErrPrincipalNotFound
	}

	found := *principal
	return &found, nil
}

type InMemoryObserverRepository struct {
	mu        sync.RWMutex
	observers map[uuid.UUID]*domain.Observer
}

func NewInMemoryObserverRepository() *InMemoryObserverRepository {
	return &InMemoryObserverRepository{
		observers: make(map[uuid.UUID]*domain.Observer),
	}
}

func (r *InMemoryObserverRepository) Create(ctx context.Context, observer *domain.Observer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *observer
	r.observers[observer.ID] = &stored
	return nil
}

func (r *InMemoryObserverRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Observer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	observer, ok := r.observers[id]
	if !ok {
		return nil, ErrObserverNotFound
	}

	found := *observer
	return &found, nil
}

func (r *InMemoryObserverRepository) Update(ctx context.Context, observer *domain.Observer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.observers[observer.ID]; !ok {
		return ErrObserverNotFound
	}

	stored := *observer
	r.observers[observer.ID] = &stored
	return nil
}
