package inquiry

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"drawwin/internal/apperr"
	"drawwin/internal/mailer"
	"drawwin/internal/models"
)

// Service handles contact-form inquiries and their admin follow-up.
type Service struct {
	DB     *gorm.DB
	Mailer mailer.Notifier
}

func NewService(db *gorm.DB, notifier mailer.Notifier) *Service {
	return &Service{DB: db, Mailer: notifier}
}

func (s *Service) Submit(ctx context.Context, name, email, subject, message string) (*models.Inquiry, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || strings.TrimSpace(message) == "" {
		return nil, apperr.New(apperr.KindValidation, "missing_fields", "name, email and message are required")
	}

	inq := models.Inquiry{
		Name:    name,
		Email:   strings.ToLower(strings.TrimSpace(email)),
		Subject: subject,
		Message: message,
		Status:  models.InquiryStatusPending,
	}
	if err := s.DB.WithContext(ctx).Create(&inq).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "db_error", "failed to save inquiry", err)
	}
	return &inq, nil
}

func (s *Service) List(ctx context.Context) ([]models.Inquiry, error) {
	var inqs []models.Inquiry
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&inqs).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "db_error", "failed to list inquiries", err)
	}
	return inqs, nil
}

// Reply stores the admin's answer, marks the inquiry replied and emails the
// member.
func (s *Service) Reply(ctx context.Context, inquiryID uint, reply string) (*models.Inquiry, error) {
	if strings.TrimSpace(reply) == "" {
		return nil, apperr.New(apperr.KindValidation, "missing_fields", "reply text is required")
	}

	var inq models.Inquiry
	if err := s.DB.WithContext(ctx).First(&inq, inquiryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrInquiryNotFound
		}
		return nil, apperr.Wrap(apperr.KindPersistence, "db_error", "failed to look up inquiry", err)
	}

	now := time.Now()
	inq.AdminReply = reply
	inq.RepliedAt = &now
	inq.Status = models.InquiryStatusReplied
	if err := s.DB.WithContext(ctx).Save(&inq).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "db_error", "failed to update inquiry", err)
	}

	if s.Mailer != nil {
		s.Mailer.Dispatch(mailer.InquiryReply{
			To:      inq.Email,
			Name:    inq.Name,
			Topic:   inq.Subject,
			Message: reply,
		})
	}
	return &inq, nil
}

func (s *Service) Resolve(ctx context.Context, inquiryID uint) (*models.Inquiry, error) {
	var inq models.Inquiry
	if err := s.DB.WithContext(ctx).First(&inq, inquiryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrInquiryNotFound
		}
		return nil, apperr.Wrap(apperr.KindPersistence, "db_error", "failed to look up inquiry", err)
	}

	now := time.Now()
	inq.Status = models.InquiryStatusResolved
	inq.ResolvedAt = &now
	if err := s.DB.WithContext(ctx).Save(&inq).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "db_error", "failed to update inquiry", err)
	}
	return &inq, nil
}
