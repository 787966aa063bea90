package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"drawwin/internal/apperr"
	"drawwin/internal/config"
	"drawwin/internal/inquiry"
	"drawwin/internal/membership"
	"drawwin/internal/models"
	"drawwin/internal/payment"
	"drawwin/internal/utils"
	"drawwin/internal/winner"
	"drawwin/internal/withdrawal"
)

// HTTPHandler holds the dependencies for the HTTP handlers.
type HTTPHandler struct {
	cfg         *config.Config
	ledger      *membership.Ledger
	reconciler  *payment.Reconciler
	payClient   *payment.Client
	orders      *payment.OrderStore
	winners     *winner.Service
	withdrawals *withdrawal.Service
	inquiries   *inquiry.Service
}

func NewHTTPHandler(
	cfg *config.Config,
	ledger *membership.Ledger,
	reconciler *payment.Reconciler,
	payClient *payment.Client,
	orders *payment.OrderStore,
	winners *winner.Service,
	withdrawals *withdrawal.Service,
	inquiries *inquiry.Service,
) *HTTPHandler {
	return &HTTPHandler{
		cfg:         cfg,
		ledger:      ledger,
		reconciler:  reconciler,
		payClient:   payClient,
		orders:      orders,
		winners:     winners,
		withdrawals: withdrawals,
		inquiries:   inquiries,
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/orders", h.CreateOrder)
		api.GET("/winner", h.CurrentWinner)
		api.GET("/entries/:code", h.EntryByCode)
		api.GET("/withdrawals/eligibility", h.WithdrawalEligibility)
		api.POST("/withdrawals", h.SubmitWithdrawal)
		api.POST("/inquiries", h.SubmitInquiry)
	}

	router.POST("/webhook/payment", h.PaymentWebhook)

	admin := router.Group("/admin")
	admin.Use(h.AdminAuth())
	h.registerAdminRoutes(admin)
}

func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
		c.JSON(status, gin.H{"error": apperr.CodeOf(err), "message": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": apperr.CodeOf(err), "message": err.Error()})
}

type createOrderRequest struct {
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	ReferralCode  string `json:"referral_code"`
	TermsAccepted bool   `json:"terms_accepted"`
}

// CreateOrder opens a processor order for the fixed entry fee and stashes
// the enrollment form until the capture webhook arrives. The active-entry
// check here is a courtesy rejection before money moves; the reconciler
// rechecks it anyway.
func (h *HTTPHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if !req.TermsAccepted {
		respondError(c, apperr.ErrTermsNotAccepted)
		return
	}

	if entry, err := h.ledger.FindByEmail(c.Request.Context(), req.Email); err == nil && entry.Status == models.EntryStatusActive {
		respondError(c, apperr.ErrAlreadyActive)
		return
	}

	order, err := h.payClient.CreateOrder(
		h.cfg.EntryFee.StringFixed(2),
		h.cfg.FeeCurrency,
		"DrawWin monthly entry",
		h.cfg.ReturnURL,
		map[string]string{"email": req.Email},
	)
	if err != nil {
		respondError(c, err)
		return
	}

	form := payment.Enrollment{
		Name:          req.Name,
		Email:         req.Email,
		ReferralCode:  req.ReferralCode,
		TermsAccepted: req.TermsAccepted,
	}
	if err := h.orders.Stash(c.Request.Context(), order.ID, form); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id":         order.ID,
		"confirmation_url": order.Confirmation.ConfirmationURL,
	})
}

// PaymentWebhook consumes the processor's capture notification. Source IP
// is checked against the processor's published ranges, and the capture is
// re-verified against the processor API instead of trusting the body.
func (h *HTTPHandler) PaymentWebhook(c *gin.Context) {
	if !utils.IsAllowedIP(c.ClientIP(), h.cfg.AllowedPayIP) {
		log.WithField("ip", c.ClientIP()).Warn("Webhook call from disallowed IP")
		c.Status(http.StatusForbidden)
		return
	}

	var notification payment.WebhookNotification
	if err := c.ShouldBindJSON(&notification); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	if notification.Event != "payment.succeeded" {
		log.WithField("event", notification.Event).Info("Ignored webhook event")
		c.Status(http.StatusOK)
		return
	}

	confirmed, err := h.payClient.VerifyPayment(notification.Object.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	form, err := h.orders.Load(c.Request.Context(), confirmed.OrderID)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.reconciler.Reconcile(c.Request.Context(), *confirmed, *form)
	if err != nil {
		// A confirmed payment we could not reconcile must surface loudly;
		// the processor will retry, and conflicts are resolved manually.
		respondError(c, err)
		return
	}

	if err := h.orders.Delete(c.Request.Context(), confirmed.OrderID); err != nil {
		log.WithError(err).Warn("Failed to clear stashed enrollment")
	}

	c.JSON(http.StatusOK, result)
}

// CurrentWinner returns the pending winner, or the most recently paid one
// inside the display window, else null.
func (h *HTTPHandler) CurrentWinner(c *gin.Context) {
	w, err := h.winners.Current(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if w == nil {
		c.JSON(http.StatusOK, gin.H{"winner": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"winner": gin.H{
		"name":           w.Name,
		"reference_code": w.ReferenceCode,
		"amount":         w.Amount.StringFixed(2),
		"payment_status": w.PaymentStatus,
		"announced_at":   w.AnnouncedAt,
	}})
}

// EntryByCode is the member's own lookup: status and counters, no email.
func (h *HTTPHandler) EntryByCode(c *gin.Context) {
	entry, err := h.ledger.FindByReferenceCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reference_code": entry.ReferenceCode,
		"status":         entry.Status,
		"entry_count":    entry.EntryCount,
		"referral_count": entry.ReferralCount,
		"renewal_due":    entry.RenewalDue,
	})
}

func (h *HTTPHandler) WithdrawalEligibility(c *gin.Context) {
	entries, err := strconv.Atoi(c.Query("entries"))
	if err != nil || entries < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "entries must be a non-negative integer"})
		return
	}
	c.JSON(http.StatusOK, withdrawal.Compute(entries, h.cfg.EntryFee))
}

type submitWithdrawalRequest struct {
	ReferenceCode string `json:"reference_code" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
}

func (h *HTTPHandler) SubmitWithdrawal(c *gin.Context) {
	var req submitWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	wr, err := h.withdrawals.Submit(c.Request.Context(), req.ReferenceCode, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wr)
}

type submitInquiryRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject"`
	Message string `json:"message" binding:"required"`
}

func (h *HTTPHandler) SubmitInquiry(c *gin.Context) {
	var req submitInquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	inq, err := h.inquiries.Submit(c.Request.Context(), req.Name, req.Email, req.Subject, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": inq.ID, "status": inq.Status})
}
