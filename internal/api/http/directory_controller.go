package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/safewatch/internal/api/http/converter"
	"github.com/immxrtalbeast/safewatch/internal/auth"
	"github.com/immxrtalbeast/safewatch/internal/domain"
	"github.com/immxrtalbeast/safewatch/internal/service"
)

type TokenIssuer interface {
	Issue(identity domain.Identity) (string, error)
}

type DirectoryController struct {
	directory service.DirectoryInteractor
	tokens    TokenIssuer
}

func NewDirectoryController(directory service.DirectoryInteractor, tokens TokenIssuer) *DirectoryController {
	return &DirectoryController{directory: directory, tokens: tokens}
}

func (c *DirectoryController) RegisterPrincipal(ctx *gin.Context) {
	type request struct {
		Name    string `json:"name" binding:"required"`
		Contact string `json:"contact" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	principal, err := c.directory.RegisterPrincipal(ctx.Request.Context(), req.Name, req.Contact)
	if err != nil {
		ctx.JSON(directoryStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.respondWithSession(ctx, domain.PrincipalIdentity(principal))
}

func (c *DirectoryController) LinkObserver(ctx *gin.Context) {
	type request struct {
		Name string `json:"name" binding:"required"`
		Code string `json:"code" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	observer, err := c.directory.LinkObserver(ctx.Request.Context(), req.Name, req.Code)
	if err != nil {
		ctx.JSON(directoryStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.respondWithSession(ctx, domain.ObserverIdentity(observer))
}

// Relink moves the authenticated observer to another principal's code.
func (c *DirectoryController) Relink(ctx *gin.Context) {
	identity, ok := auth.IdentityFrom(ctx)
	if !ok || !identity.IsObserver() {
		ctx.JSON(http.StatusForbidden, gin.H{"error": service.ErrForbidden.Error()})
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	observer, err := c.directory.RelinkObserver(ctx.Request.Context(), identity.Observer.ID, req.Code)
	if err != nil {
		ctx.JSON(directoryStatus(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"identity": converter.IdentityToApi(domain.ObserverIdentity(observer))})
}

func (c *DirectoryController) Me(ctx *gin.Context) {
	identity, ok := auth.IdentityFrom(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrAuthRequired.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"identity": converter.IdentityToApi(identity)})
}

func (c *DirectoryController) respondWithSession(ctx *gin.Context, identity domain.Identity) {
	token, err := c.tokens.Issue(identity)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	ctx.JSON(http.StatusCreated, converter.SessionToApi(identity, token))
}

func directoryStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCode):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNameRequired), errors.Is(err, service.ErrContactRequired):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnknownIdentity):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
