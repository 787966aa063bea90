package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation policy and HTTP mapping.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindExhausted
	KindExternal
	KindPersistence
)

// Error carries a stable machine-readable code alongside the kind and a
// human-readable message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by code, so a wrapped instance still compares equal
// to its sentinel under errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindUnknown for errors outside the
// taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the stable code of err, or "internal_error".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}

// HTTPStatus maps an error kind to an HTTP status class: validation,
// conflict and not-found are the caller's fault; everything else is ours.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindExhausted, KindExternal, KindPersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Reconciliation and enrollment.
var (
	ErrTermsNotAccepted   = New(KindValidation, "terms_not_accepted", "terms and conditions must be accepted")
	ErrPaymentMismatch    = New(KindExternal, "payment_mismatch", "payment amount or currency does not match the entry fee")
	ErrAlreadyActive      = New(KindConflict, "already_active", "an active entry already exists for this email")
	ErrDuplicateEmail     = New(KindConflict, "duplicate_email", "an entry already exists for this email")
	ErrInvalidReferral    = New(KindValidation, "invalid_referral_code", "referral code does not match any entry")
	ErrReferrerInactive   = New(KindValidation, "referrer_inactive", "the referring entry is not active")
	ErrSelfReferral       = New(KindValidation, "self_referral", "an entry cannot refer itself")
	ErrReferenceExhausted = New(KindExhausted, "reference_exhausted", "could not allocate a unique reference code")
)

// Winner lifecycle.
var (
	ErrEntryNotFound          = New(KindNotFound, "entry_not_found", "entry not found")
	ErrEntryNotActive         = New(KindValidation, "entry_not_active", "entry is not active")
	ErrWinnerNotFound         = New(KindNotFound, "winner_not_found", "winner not found")
	ErrWinnerAlreadyPending   = New(KindConflict, "winner_already_pending", "a pending winner already exists")
	ErrWinnerAlreadyPaid      = New(KindConflict, "winner_already_paid", "winner is already marked paid")
	ErrEntryReferencedByWinner = New(KindConflict, "entry_referenced_by_winner", "entry is referenced by a winner record")
)

// Withdrawals and inquiries.
var (
	ErrNotEligible         = New(KindValidation, "not_eligible", "entry does not meet the withdrawal eligibility threshold")
	ErrDuplicateWithdrawal = New(KindConflict, "duplicate_withdrawal_request", "a withdrawal request already exists for this entry")
	ErrInquiryNotFound     = New(KindNotFound, "inquiry_not_found", "inquiry not found")
)
