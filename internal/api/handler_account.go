package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"pikpakhelper/internal/model"
	"pikpakhelper/internal/service/account"
)

type AccountService interface {
	List(ctx context.Context) ([]model.Account, error)
	Get(ctx context.Context, rawID string) (*model.Account, error)
	Save(ctx context.Context, data json.RawMessage) (*model.Account, error)
	Update(ctx context.Context, rawID string, data json.RawMessage) error
	Delete(ctx context.Context, rawID string) error
}

type AccountHandler struct {
	svc AccountService
}

func NewAccountHandler(svc AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// FetchAccounts handles GET /fetch_accounts
func (h *AccountHandler) FetchAccounts(c *gin.Context) {
	accounts, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "failed to load accounts", "accounts": []any{}})
		return
	}

	if len(accounts) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "info", "message": "no saved accounts", "accounts": []any{}})
		return
	}

	views := make([]map[string]any, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, a.View())
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"message":  fmt.Sprintf("found %d accounts", len(views)),
		"accounts": views,
	})
}

// GetAccount handles GET /get_account?id=，编辑前重新拉取单个账号
func (h *AccountHandler) GetAccount(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "account id is required"})
		return
	}

	a, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to load account")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "account": a.View()})
}

// SaveAccount handles POST /save_account {account_data}
func (h *AccountHandler) SaveAccount(c *gin.Context) {
	var req struct {
		AccountData json.RawMessage `json:"account_data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.AccountData) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "incomplete request"})
		return
	}

	a, err := h.svc.Save(c.Request.Context(), req.AccountData)
	if err != nil {
		h.writeError(c, err, "failed to save account")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "account saved", "account": a.View()})
}

// UpdateAccount handles POST /update_account {id, account_data}
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	var req struct {
		ID          string          `json:"id"`
		AccountData json.RawMessage `json:"account_data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" || len(req.AccountData) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "incomplete request"})
		return
	}

	if err := h.svc.Update(c.Request.Context(), req.ID, req.AccountData); err != nil {
		h.writeError(c, err, "failed to update account")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "account updated"})
}

// DeleteAccount handles POST /delete_account，id 可以是表单字段或 JSON
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	var req struct {
		ID string `json:"id" form:"id"`
	}
	if err := c.ShouldBind(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "account id is required"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), req.ID); err != nil {
		h.writeError(c, err, "failed to delete account")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "account deleted"})
}

func (h *AccountHandler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, account.ErrInvalidID), errors.Is(err, account.ErrInvalidData):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
	case errors.Is(err, account.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "account not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": fallback})
	}
}
