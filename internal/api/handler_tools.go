package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"pikpakhelper/internal/service/verification"
)

type VerificationFetcher interface {
	Fetch(ctx context.Context, email, password string) verification.Result
}

type ProxyChecker interface {
	Check(ctx context.Context, proxyURL string) error
}

// ToolsHandler 注册流程里的辅助接口：取验证码、测试代理
type ToolsHandler struct {
	verifier VerificationFetcher
	proxy    ProxyChecker
}

func NewToolsHandler(verifier VerificationFetcher, proxy ProxyChecker) *ToolsHandler {
	return &ToolsHandler{verifier: verifier, proxy: proxy}
}

// GetVerification handles POST /get_verification (form or JSON: email, password)
func (h *ToolsHandler) GetVerification(c *gin.Context) {
	var req struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := c.ShouldBind(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, verification.Result{Code: verification.CodeError, Msg: "email and password are required"})
		return
	}

	c.JSON(http.StatusOK, h.verifier.Fetch(c.Request.Context(), req.Email, req.Password))
}

// TestProxy handles POST /test_proxy (form or JSON: proxy_url)
func (h *ToolsHandler) TestProxy(c *gin.Context) {
	var req struct {
		ProxyURL string `json:"proxy_url" form:"proxy_url"`
	}
	_ = c.ShouldBind(&req)

	if err := h.proxy.Check(c.Request.Context(), req.ProxyURL); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "proxy test failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "proxy test succeeded"})
}
