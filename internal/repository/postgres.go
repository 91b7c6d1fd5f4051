package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/internal/repository/model"
	"gorm.io/gorm"
)

type PostgresPrincipalRepository struct {
	db *gorm.DB
}

func NewPostgresPrincipalRepository(db *gorm.DB) *PostgresPrincipalRepository {
	return &PostgresPrincipalRepository{db: db}
}

func (r *PostgresPrincipalRepository) Create(ctx context.Context, principal *domain.Principal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if principal == nil {
		return errors.New("principal is nil")
	}

	if err := r.db.WithContext(ctx).Create(toModelPrincipal(principal)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrCodeExists
		}
		return err
	}
	return nil
}

func (r *PostgresPrincipalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Principal, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PostgresPrincipalRepository) GetByCode(ctx context.Context, code string) (*domain.Principal, error) {
	return r.first(ctx, "code = ?", code)
}

func (r *PostgresPrincipalRepository) first(ctx context.Context, query string, arg any) (*domain.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var principal model.Principal
	err := r.db.WithContext(ctx).First(&principal, query, arg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}

	return toDomainPrincipal(&principal), nil
}

type PostgresObserverRepository struct {
	db *gorm.DB
}

func NewPostgresObserverRepository(db *gorm.DB) *PostgresObserverRepository {
	return &PostgresObserverRepository{db: db}
}

func (r *PostgresObserverRepository) Create(ctx context.Context, observer *domain.Observer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if observer == nil {
		return errors.New("observer is nil")
	}

	return r.db.WithContext(ctx).Create(toModelObserver(observer)).Error
}

func (r *PostgresObserverRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Observer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var observer model.Observer
	err := r.db.WithContext(ctx).First(&observer, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrObserverNotFound
		}
		return nil, err
	}

	return toDomainObserver(&observer), nil
}

func (r *PostgresObserverRepository) Update(ctx context.Context, observer *domain.Observer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if observer == nil {
		return errors.New("observer is nil")
	}

	res := r.db.WithContext(ctx).Model(&model.Observer{}).Where("id = ?", observer.ID).Updates(map[string]any{
		"name":         observer.Name,
		"watched_code": observer.WatchedCode,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrObserverNotFound
	}
	return nil
}

func toModelPrincipal(p *domain.Principal) *model.Principal {
	return &model.Principal{
		ID:        p.ID,
		Name:      p.Name,
		Code:      p.Code,
		Contact:   p.Contact,
		CreatedAt: p.CreatedAt.UTC(),
	}
}

func toDomainPrincipal(p *model.Principal) *domain.Principal {
	return &domain.Principal{
		ID:        p.ID,
		Name:      p.Name,
		Code:      p.Code,
		Contact:   p.Contact,
		CreatedAt: p.CreatedAt.UTC(),
	}
}

func toModelObserver(o *domain.Observer) *model.Observer {
	return &model.Observer{
		ID:          o.ID,
		Name:        o.Name,
		WatchedCode: o.WatchedCode,
		CreatedAt:   o.CreatedAt.UTC(),
	}
}

func toDomainObserver(o *model.Observer) *domain.Observer {
	return &domain.Observer{
		ID:          o.ID,
		Name:        o.Name,
		WatchedCode: o.WatchedCode,
		CreatedAt:   o.CreatedAt.UTC(),
	}
}
