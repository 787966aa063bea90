package handlers

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"drawwin/internal/models"
)

// SettingWinnerAmount is the default payout used when a selection does not
// specify one.
const SettingWinnerAmount = "winner_amount"

// AdminAuth gates every admin route on the shared token header. The core
// services never check credentials themselves; this middleware is the
// externally-verified "is admin" boolean they rely on.
func (h *HTTPHandler) AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Admin-Token")
		if h.cfg.AdminToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.AdminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (h *HTTPHandler) registerAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/entries", h.AdminListEntries)
	admin.DELETE("/entries/:id", h.AdminDeleteEntry)
	admin.POST("/reset", h.AdminMonthlyReset)
	admin.POST("/winners", h.AdminSelectWinner)
	admin.POST("/winners/:id/pay", h.AdminMarkWinnerPaid)
	admin.DELETE("/winners/:id", h.AdminDeleteWinner)
	admin.GET("/inquiries", h.AdminListInquiries)
	admin.POST("/inquiries/:id/reply", h.AdminReplyInquiry)
	admin.POST("/inquiries/:id/resolve", h.AdminResolveInquiry)
	admin.GET("/withdrawals", h.AdminListWithdrawals)
	admin.POST("/withdrawals/:id/review", h.AdminReviewWithdrawal)
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (h *HTTPHandler) AdminListEntries(c *gin.Context) {
	entries, err := h.ledger.ListEntries(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *HTTPHandler) AdminDeleteEntry(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.ledger.DeleteEntry(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) AdminMonthlyReset(c *gin.Context) {
	expired, err := h.ledger.MonthlyReset(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}

type selectWinnerRequest struct {
	EntryID uint   `json:"entry_id" binding:"required"`
	Amount  string `json:"amount"`
}

func (h *HTTPHandler) AdminSelectWinner(c *gin.Context) {
	var req selectWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	amountStr := req.Amount
	if amountStr == "" {
		var err error
		amountStr, err = h.ledger.GetSetting(c.Request.Context(), SettingWinnerAmount, "1000.00")
		if err != nil {
			respondError(c, err)
			return
		}
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid amount"})
		return
	}

	w, err := h.winners.Select(c.Request.Context(), req.EntryID, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *HTTPHandler) AdminMarkWinnerPaid(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	w, err := h.winners.MarkPaid(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *HTTPHandler) AdminDeleteWinner(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.winners.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) AdminListInquiries(c *gin.Context) {
	inqs, err := h.inquiries.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inquiries": inqs})
}

type replyInquiryRequest struct {
	Reply string `json:"reply" binding:"required"`
}

func (h *HTTPHandler) AdminReplyInquiry(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req replyInquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	inq, err := h.inquiries.Reply(c.Request.Context(), id, req.Reply)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inq)
}

func (h *HTTPHandler) AdminResolveInquiry(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	inq, err := h.inquiries.Resolve(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inq)
}

func (h *HTTPHandler) AdminListWithdrawals(c *gin.Context) {
	reqs, err := h.withdrawals.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": reqs})
}

type reviewWithdrawalRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

func (h *HTTPHandler) AdminReviewWithdrawal(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req reviewWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	switch req.Status {
	case models.WithdrawalStatusApproved, models.WithdrawalStatusRejected, models.WithdrawalStatusProcessed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "unknown status"})
		return
	}

	wr, err := h.withdrawals.Review(c.Request.Context(), id, req.Status, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wr)
}
