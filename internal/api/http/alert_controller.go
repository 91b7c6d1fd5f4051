package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/safewatch/internal/auth"
	"github.com/immxrtalbeast/safewatch/internal/service"
)

type AlertController struct {
	alerts service.AlertInteractor
}

func NewAlertController(alerts service.AlertInteractor) *AlertController {
	return &AlertController{alerts: alerts}
}

func (c *AlertController) TriggerAlert(ctx *gin.Context) {
	identity, ok := auth.IdentityFrom(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrAuthRequired.Error()})
		return
	}

	var req service.AlertRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := c.alerts.TriggerAlert(ctx.Request.Context(), identity, req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrMalformedMessage):
			status = http.StatusBadRequest
		case errors.Is(err, service.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, service.ErrInvalidCode):
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, result)
}
