package membership

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"drawwin/internal/apperr"
	"drawwin/internal/models"
)

// ValidateReferral resolves a referral code to its owning entry. It runs
// inside the caller's transaction so the referrer's status cannot change
// between validation and commit.
func ValidateReferral(tx *gorm.DB, code, payerEmail string) (*models.Entry, error) {
	var referrer models.Entry
	err := tx.Where("reference_code = ?", code).First(&referrer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrInvalidReferral
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "db_error", "failed to look up referrer", err)
	}

	if strings.EqualFold(referrer.Email, payerEmail) {
		return nil, apperr.ErrSelfReferral
	}
	if referrer.Status != models.EntryStatusActive {
		return nil, apperr.ErrReferrerInactive
	}
	return &referrer, nil
}

// IncrementReferralCount bumps the running counter by one. It is an atomic
// SQL increment, not read-modify-write, so concurrent referrals of the
// same referrer cannot lose updates.
func IncrementReferralCount(tx *gorm.DB, referrerID uint) error {
	err := tx.Model(&models.Entry{}).
		Where("id = ?", referrerID).
		UpdateColumn("referral_count", gorm.Expr("referral_count + ?", 1)).Error
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "db_error", "failed to increment referral count", err)
	}
	return nil
}
