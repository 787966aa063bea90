package payment

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
	"drawwin/internal/membership"
	"drawwin/internal/models"
	"drawwin/internal/refcode"
)

// renewalPeriod is how long a payment keeps an entry active.
const renewalPeriod = 30 * 24 * time.Hour

// ReconcileResult reports what a confirmed payment turned into.
type ReconcileResult struct {
	ReferenceCode string `json:"reference_code"`
	IsRenewal     bool   `json:"is_renewal"`
}

// Reconciler converts a confirmed external payment into exactly one entry
// mutation: a fresh entry or an in-place renewal, plus at most one referral
// counter increment. Entry upsert and counter move in a single
// transaction; the notification goes out only after commit.
type Reconciler struct {
	DB          *gorm.DB
	Mailer      mailer.Notifier
	Fee         decimal.Decimal
	FeeCurrency string

	Now func() time.Time
}

func NewReconciler(db *gorm.DB, notifier mailer.Notifier, fee decimal.Decimal, currency string) *Reconciler {
	return &Reconciler{
		DB:          db,
		Mailer:      notifier,
		Fee:         fee,
		FeeCurrency: currency,
		Now:         time.Now,
	}
}

// Reconcile applies a confirmed payment to the ledger.
//
// The amount/currency check is defensive: callers verify captures against
// the fixed fee before calling, but the reconciler does not trust
// caller-side ordering. Same for the active-entry recheck.
func (r *Reconciler) Reconcile(ctx context.Context, pay ConfirmedPayment, form Enrollment) (*ReconcileResult, error) {
	if !form.TermsAccepted {
		return nil, apperr.ErrTermsNotAccepted
	}

	amount, err := decimal.NewFromString(pay.Amount)
	if err != nil || !amount.Equal(r.Fee) || !strings.EqualFold(pay.Currency, r.FeeCurrency) {
		log.WithFields(log.Fields{
			"order_id": pay.OrderID,
			"amount":   pay.Amount,
			"currency": pay.Currency,
		}).Error("Confirmed payment does not match the entry fee")
		return nil, apperr.ErrPaymentMismatch
	}

	email := strings.ToLower(strings.TrimSpace(form.Email))
	now := r.Now()

	var (
		result ReconcileResult
		notice mailer.Notice
	)

	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Entry
		found := true
		if err := tx.Where("email = ?", email).First(&existing).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to look up entry", err)
			}
			found = false
		}

		if found && existing.Status == models.EntryStatusActive {
			return apperr.ErrAlreadyActive
		}

		var referrer *models.Entry
		if form.ReferralCode != "" {
			referrer, err = membership.ValidateReferral(tx, form.ReferralCode, email)
			if err != nil {
				return err
			}
		}

		termsAt := now
		attachedReferrer := false

		if found {
			// Renewal: update in place, keep the reference code. The
			// counter moves as a column expression so a parallel capture
			// for the same entry is still counted, not overwritten.
			err := tx.Model(&models.Entry{}).
				Where("id = ?", existing.ID).
				Updates(renewalColumns(now)).Error
			if err != nil {
				return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to renew entry", err)
			}

			// The referrer link, once set, is never overwritten; the
			// IS NULL guard keeps that holding across concurrent renewals.
			if referrer != nil && existing.ReferrerID == nil {
				res := tx.Model(&models.Entry{}).
					Where("id = ? AND referrer_id IS NULL", existing.ID).
					Updates(map[string]interface{}{
						"referrer_id":        referrer.ID,
						"referral_code_used": form.ReferralCode,
					})
				if res.Error != nil {
					return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to attach referrer", res.Error)
				}
				attachedReferrer = res.RowsAffected == 1
			}

			result = ReconcileResult{ReferenceCode: existing.ReferenceCode, IsRenewal: true}
			notice = mailer.RenewalConfirmation{
				To:            email,
				Name:          existing.Name,
				ReferenceCode: existing.ReferenceCode,
				RenewalDue:    now.Add(renewalPeriod),
				EntryCount:    existing.EntryCount + 1,
			}
		} else {
			entry := models.Entry{
				Name:            form.Name,
				Email:           email,
				Paid:            true,
				Status:          models.EntryStatusActive,
				LastPaymentDate: now,
				RenewalDue:      now.Add(renewalPeriod),
				EntryCount:      1,
				TermsAccepted:   true,
				TermsAcceptedAt: &termsAt,
			}
			if referrer != nil {
				entry.ReferrerID = &referrer.ID
				entry.ReferralCodeUsed = form.ReferralCode
				attachedReferrer = true
			}

			// Each insert attempt sits behind a savepoint so a code
			// collision can be retried without aborting the outer
			// transaction. A duplicate on the email column instead means
			// a concurrent enrollment won the race.
			code, err := refcode.Allocate(func(code string) error {
				tx.SavePoint("refalloc")
				entry.ID = 0
				entry.ReferenceCode = code
				if err := tx.Create(&entry).Error; err != nil {
					tx.RollbackTo("refalloc")
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						var n int64
						if cntErr := tx.Model(&models.Entry{}).Where("email = ?", email).Count(&n).Error; cntErr == nil && n > 0 {
							return apperr.ErrDuplicateEmail
						}
					}
					return err
				}
				return nil
			})
			if err != nil {
				return err
			}

			result = ReconcileResult{ReferenceCode: code, IsRenewal: false}
			notice = mailer.PaymentVerification{
				To:            email,
				Name:          entry.Name,
				ReferenceCode: code,
				RenewalDue:    entry.RenewalDue,
			}
		}

		if attachedReferrer {
			if err := membership.IncrementReferralCount(tx, referrer.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"order_id":       pay.OrderID,
		"email":          email,
		"reference_code": result.ReferenceCode,
		"renewal":        result.IsRenewal,
	}).Info("Payment reconciled")

	if r.Mailer != nil {
		r.Mailer.Dispatch(notice)
	}
	return &result, nil
}

// renewalColumns builds the update a renewal applies. entry_count is an
// SQL expression, not a value read in Go, so two renewals racing on the
// same row both land.
func renewalColumns(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"status":            models.EntryStatusActive,
		"paid":              true,
		"last_payment_date": now,
		"renewal_due":       now.Add(renewalPeriod),
		"entry_count":       gorm.Expr("entry_count + ?", 1),
		"terms_accepted":    true,
		"terms_accepted_at": now,
	}
}
