package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"pikpakhelper/internal/mailshop"
	"pikpakhelper/internal/service/extraction"
	"pikpakhelper/pkg/extractor"
)

type ExtractionService interface {
	Extract(ctx context.Context, req extractor.Request) *extractor.ExtractResponse
	Balance(ctx context.Context, card string) (json.RawMessage, error)
	Inventory(ctx context.Context) (map[string]any, error)
}

type ExtractionHandler struct {
	svc ExtractionService
}

func NewExtractionHandler(svc ExtractionService) *ExtractionHandler {
	return &ExtractionHandler{svc: svc}
}

// ExtractEmails handles GET /extract_emails?card=&shuliang=&leixing=&retry_count=
// 业务错误同样返回 200，由 status 字段区分
func (h *ExtractionHandler) ExtractEmails(c *gin.Context) {
	req, err := extraction.ParseRequest(
		c.Query("card"),
		c.Query("shuliang"),
		c.Query("leixing"),
		c.Query("retry_count"),
	)
	if err != nil {
		c.JSON(http.StatusOK, extractor.ExtractResponse{Status: extractor.StatusError, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.svc.Extract(c.Request.Context(), req))
}

// CheckBalance handles GET /check_balance?card=
func (h *ExtractionHandler) CheckBalance(c *gin.Context) {
	card := c.Query("card")
	if card == "" {
		c.JSON(http.StatusOK, gin.H{"status": extractor.StatusError, "message": "card parameter is required"})
		return
	}

	raw, err := h.svc.Balance(c.Request.Context(), card)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": extractor.StatusError, "message": upstreamMessage("failed to query balance", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": extractor.StatusSuccess, "balance": raw})
}

// CheckInventory handles GET /check_email_inventory
func (h *ExtractionHandler) CheckInventory(c *gin.Context) {
	inv, err := h.svc.Inventory(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": extractor.StatusError, "message": upstreamMessage("failed to query inventory", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": extractor.StatusSuccess, "inventory": inv})
}

func upstreamMessage(prefix string, err error) string {
	var se *mailshop.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s: HTTP %d", prefix, se.StatusCode)
	}
	return prefix + ": " + err.Error()
}
