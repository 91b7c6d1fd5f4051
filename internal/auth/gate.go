package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/lib/logger/sl"
)

const issuer = "safewatch"

var ErrAuthRequired = errors.New("authentication required")

// IdentityLoader rebuilds an identity from the directory.
type IdentityLoader interface {
	Identity(ctx context.Context, role domain.Role, id uuid.UUID) (domain.Identity, error)
}

type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Gate issues and verifies session tokens.
type Gate struct {
	secret []byte
	ttl    time.Duration
	loader IdentityLoader
	log    *slog.Logger
}

func NewGate(secret string, ttl time.Duration, loader IdentityLoader, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		secret: []byte(secret),
		ttl:    ttl,
		loader: loader,
		log:    log,
	}
}

func (g *Gate) Issue(identity domain.Identity) (string, error) {
	const op = "auth.gate.issue"

	if !identity.IsPrincipal() && !identity.IsObserver() {
		return "", fmt.Errorf("%s: %w", op, ErrAuthRequired)
	}

	now := time.Now()
	claims := &Claims{
		Role: identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID().String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// Authenticate verifies token and loads the identity behind it. Every
// failure is reported as ErrAuthRequired.
func (g *Gate) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	const op = "auth.gate.authenticate"
	log := g.log.With(slog.String("op", op))

	if token == "" {
		return domain.Identity{}, ErrAuthRequired
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil || !parsed.Valid {
		log.Debug("token rejected", sl.Err(err))
		return domain.Identity{}, ErrAuthRequired
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		log.Debug("token subject is not an id", slog.String("sub", claims.Subject))
		return domain.Identity{}, ErrAuthRequired
	}

	identity, err := g.loader.Identity(ctx, claims.Role, id)
	if err != nil {
		log.Info("token identity not found", slog.String("sub", claims.Subject), sl.Err(err))
		return domain.Identity{}, ErrAuthRequired
	}
	return identity, nil
}
