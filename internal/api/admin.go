package api

import (
	"fmt"
	"net/http"
	"strconv"

	"registration-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) adminLogin(c *gin.Context) {
	var req service.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	token, err := h.admin.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.setCookie(c, AdminSessionCookie, token, h.admin.SessionTTL())
	c.JSON(http.StatusOK, gin.H{"status": "logged_in", "id": req.ID})
}

func (h *Handler) adminLogout(c *gin.Context) {
	token, _ := c.Cookie(AdminSessionCookie)
	if err := h.admin.Logout(c.Request.Context(), token); err != nil {
		h.writeError(c, err)
		return
	}
	h.setCookie(c, AdminSessionCookie, "", -1)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// requireAdmin resolves the admin cookie or aborts with 401.
func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(AdminSessionCookie)
		id, err := h.admin.Authorize(c.Request.Context(), token)
		if err != nil {
			h.writeError(c, err)
			c.Abort()
			return
		}
		c.Set(ctxAdminID, id)
		c.Next()
	}
}

func (h *Handler) adminStats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) adminListOrders(c *gin.Context) {
	var req service.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query",
			"details": err.Error(),
		})
		return
	}
	resp, err := h.admin.ListOrders(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) adminGetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.admin.OrderDetail(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) adminUpdateOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	order, err := h.admin.UpdateOrder(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) adminUpdateParticipant(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	p, err := h.admin.UpdateParticipant(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) adminCancelOrders(c *gin.Context) {
	var req service.CancelOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	results, err := h.admin.CancelOrders(c.Request.Context(), req.OrderIDs)
	if err != nil && len(results) > 0 && !service.IsValidation(err) {
		h.logger.Error("Bulk cancel stopped early", zap.Int("processed", len(results)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Cancellation stopped before every order was processed",
			"results": results,
		})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// adminExport streams the participant export as an attachment
func (h *Handler) adminExport(c *gin.Context) {
	file, err := h.admin.Export(c.Request.Context(), c.Query("filter"), c.Query("format"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Name))
	if file.ArchiveURL != "" {
		c.Header("X-Archive-URL", file.ArchiveURL)
	}
	c.Data(http.StatusOK, file.ContentType, file.Body)
}

func (h *Handler) adminAuditLog(c *gin.Context) {
	var orderID *int64
	if raw := c.Query("order_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order_id"})
			return
		}
		orderID = &id
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, err := h.admin.AuditLog(c.Request.Context(), orderID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
