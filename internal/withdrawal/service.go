package withdrawal

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"drawwin/internal/apperr"
	"drawwin/internal/mailer"
	"drawwin/internal/models"
)

// Service handles refund requests. Eligibility is always recomputed
// server-side; a client-supplied eligibility flag is never trusted.
type Service struct {
	DB     *gorm.DB
	Mailer mailer.Notifier
	Fee    decimal.Decimal
}

func NewService(db *gorm.DB, notifier mailer.Notifier, fee decimal.Decimal) *Service {
	return &Service{DB: db, Mailer: notifier, Fee: fee}
}

// Submit files a withdrawal request for the entry identified by reference
// code and email. At most one request may ever exist per entry; the unique
// index on entry_id backs the duplicate guard under concurrency.
func (s *Service) Submit(ctx context.Context, referenceCode, email string) (*models.WithdrawalRequest, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var req models.WithdrawalRequest

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.Entry
		err := tx.Where("reference_code = ? AND email = ?", referenceCode, email).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrEntryNotFound
		}
		if err != nil {
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to look up entry", err)
		}

		elig := Compute(entry.EntryCount, s.Fee)
		if !elig.Eligible {
			return apperr.ErrNotEligible
		}

		var existing int64
		if err := tx.Model(&models.WithdrawalRequest{}).Where("entry_id = ?", entry.ID).Count(&existing).Error; err != nil {
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to check existing requests", err)
		}
		if existing > 0 {
			return apperr.ErrDuplicateWithdrawal
		}

		req = models.WithdrawalRequest{
			EntryID:       entry.ID,
			Email:         entry.Email,
			Name:          entry.Name,
			EntryCount:    entry.EntryCount,
			TotalPaid:     elig.TotalPaid,
			ServiceCharge: elig.ServiceCharge,
			RefundAmount:  elig.RefundAmount,
			Status:        models.WithdrawalStatusPending,
		}
		if err := tx.Create(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.ErrDuplicateWithdrawal
			}
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to create withdrawal request", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"entry_id": req.EntryID,
		"refund":   req.RefundAmount.StringFixed(2),
	}).Info("Withdrawal request filed")

	if s.Mailer != nil {
		s.Mailer.Dispatch(mailer.WithdrawalReceived{
			To:           req.Email,
			Name:         req.Name,
			RefundAmount: req.RefundAmount,
		})
	}
	return &req, nil
}

func (s *Service) List(ctx context.Context) ([]models.WithdrawalRequest, error) {
	var reqs []models.WithdrawalRequest
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "db_error", "failed to list withdrawal requests", err)
	}
	return reqs, nil
}

// Review moves a request through its admin transitions:
// pending -> approved/rejected, approved -> processed.
func (s *Service) Review(ctx context.Context, requestID uint, status, notes string) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotFound, "withdrawal_not_found", "withdrawal request not found")
			}
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to look up withdrawal request", err)
		}

		if !validTransition(req.Status, status) {
			return apperr.New(apperr.KindValidation, "invalid_status_transition",
				"withdrawal request cannot move from "+req.Status+" to "+status)
		}

		req.Status = status
		req.AdminNotes = notes
		if status == models.WithdrawalStatusProcessed {
			now := time.Now()
			req.ProcessedAt = &now
		}
		if err := tx.Save(&req).Error; err != nil {
			return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to update withdrawal request", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func validTransition(from, to string) bool {
	switch from {
	case models.WithdrawalStatusPending:
		return to == models.WithdrawalStatusApproved || to == models.WithdrawalStatusRejected
	case models.WithdrawalStatusApproved:
		return to == models.WithdrawalStatusProcessed
	default:
		return false
	}
}
