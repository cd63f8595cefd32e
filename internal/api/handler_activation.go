package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pikpakhelper/internal/service/activation"
)

type Activator interface {
	Activate(ctx context.Context, info json.RawMessage, key string) (any, error)
}

type ActivationHandler struct {
	svc Activator
}

func NewActivationHandler(svc Activator) *ActivationHandler {
	return &ActivationHandler{svc: svc}
}

// ActivateAccount handles POST /activate_account {info, key}
func (h *ActivationHandler) ActivateAccount(c *gin.Context) {
	var req struct {
		Info json.RawMessage `json:"info"`
		Key  string          `json:"key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid request"})
		return
	}

	result, err := h.svc.Activate(c.Request.Context(), req.Info, req.Key)
	if err != nil {
		var ue *activation.UpstreamError
		switch {
		case errors.Is(err, activation.ErrMissingInput):
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		case errors.As(err, &ue):
			c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": ue.Error(), "details": ue.Body})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "result": result})
}
