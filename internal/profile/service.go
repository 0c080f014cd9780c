// Package profile provides business operations over registered users:
// registration commit, edits, referral status and subscription bookkeeping.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/astroline/astroline-bot/internal/domain"
	"github.com/astroline/astroline-bot/internal/repository"
	"github.com/astroline/astroline-bot/pkg/metrics"
)

// recordReferralCredit is swapped out in tests.
var recordReferralCredit = metrics.RecordReferralCredit

// Registration carries the validated draft fields committed at confirmation.
type Registration struct {
	UserID       int64
	ChatID       int64
	Name         string
	BirthDate    string // ISO form
	BirthTime    string
	BirthPlace   string
	MessageTime  string
	ReferralCode string // the code the user signed up with, may be empty
}

// Service provides business operations over profiles.
type Service struct {
	repo          repository.ProfileRepository
	payments      repository.PaymentRepository
	log           *slog.Logger
	referralBonus int64
	now           func() time.Time
}

// NewService constructs a new Service instance.
func NewService(repo repository.ProfileRepository, payments repository.PaymentRepository, referralBonus int64, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		repo:          repo,
		payments:      payments,
		log:           log,
		referralBonus: referralBonus,
		now:           time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register persists the profile collected by the registration dialogue.
// The repository guarantees the insert, the referral edge and the referrer
// credit land in one transaction. Registering an existing user is an
// idempotent no-op and reports created=false.
func (s *Service) Register(ctx context.Context, reg Registration) (*domain.Profile, bool, error) {
	p := &domain.Profile{
		UserID:       reg.UserID,
		ChatID:       reg.ChatID,
		Name:         reg.Name,
		BirthDate:    reg.BirthDate,
		BirthTime:    reg.BirthTime,
		BirthPlace:   reg.BirthPlace,
		MessageTime:  reg.MessageTime,
		RegisteredAt: s.now().UTC(),
	}

	created, credited, err := s.repo.Create(ctx, p, reg.ReferralCode, s.referralBonus)
	if err != nil {
		s.logError("register", reg.UserID, err)
		return nil, false, fmt.Errorf("create profile: %w", err)
	}
	if credited {
		recordReferralCredit()
	}

	if !created {
		existing, err := s.repo.FindByID(ctx, reg.UserID)
		if err != nil {
			s.logError("register.reload", reg.UserID, err)
			return nil, false, fmt.Errorf("reload existing profile: %w", err)
		}
		return existing, false, nil
	}

	return p, true, nil
}

// Get fetches a profile or ErrNotRegistered when the user is unknown.
func (s *Service) Get(ctx context.Context, userID int64) (*domain.Profile, error) {
	p, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotRegistered
		}

		s.logError("get", userID, err)
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return p, nil
}

// ErrNotRegistered indicates the user has no profile yet.
var ErrNotRegistered = errors.New("user is not registered")

// UpdateName stores a new display name.
func (s *Service) UpdateName(ctx context.Context, userID int64, name string) error {
	if err := s.repo.UpdateName(ctx, userID, name); err != nil {
		s.logError("update_name", userID, err)
		return err
	}

	return nil
}

// UpdateMessageTime stores a new daily delivery time. The caller is
// responsible for rescheduling the daily trigger.
func (s *Service) UpdateMessageTime(ctx context.Context, userID int64, messageTime string) error {
	if err := s.repo.UpdateMessageTime(ctx, userID, messageTime); err != nil {
		s.logError("update_message_time", userID, err)
		return err
	}

	return nil
}

// ListAll returns every stored profile, used to repopulate the scheduler at
// process start and for admin broadcasts.
func (s *Service) ListAll(ctx context.Context) ([]*domain.Profile, error) {
	profiles, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logError("list_all", 0, err)
		return nil, err
	}

	return profiles, nil
}

// ReferralStatus returns how many users registered with this user's code and
// the accumulated bonus points.
func (s *Service) ReferralStatus(ctx context.Context, userID int64) (*domain.ReferralStatus, error) {
	status, err := s.repo.ReferralStatus(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotRegistered
		}

		s.logError("referral_status", userID, err)
		return nil, err
	}

	return status, nil
}

// IsActive reports whether the user's subscription is currently active.
// Activeness is recomputed from the stored expiry on every call, never
// cached.
func (s *Service) IsActive(ctx context.Context, userID int64) (bool, error) {
	p, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		s.logError("is_active", userID, err)
		return false, err
	}

	return p.ActiveSubscription(s.now()), nil
}

// RecordPayment stores a payment event. Replays of the same payment id
// overwrite the existing row, so duplicate confirmations never double-count.
func (s *Service) RecordPayment(ctx context.Context, paymentID string, userID, amount int64, currency, status string) error {
	record := &domain.PaymentRecord{
		PaymentID: paymentID,
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Status:    status,
		CreatedAt: s.now().UTC(),
	}

	if err := s.payments.Upsert(ctx, record); err != nil {
		s.logError("record_payment", userID, err)
		return err
	}

	return nil
}

// ApplySubscription marks the user subscribed until now+period. Renewal
// always extends from now, not from the previous expiry; stacked renewals do
// not accumulate. That is the documented policy, not an oversight.
func (s *Service) ApplySubscription(ctx context.Context, userID int64, period time.Duration) (time.Time, error) {
	expiry := s.now().UTC().Add(period)
	if err := s.repo.SetSubscriptionExpiry(ctx, userID, expiry); err != nil {
		s.logError("apply_subscription", userID, err)
		return time.Time{}, err
	}

	return expiry, nil
}

// Delete removes a profile. Administrative and test escape hatch only.
func (s *Service) Delete(ctx context.Context, userID int64) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		s.logError("delete", userID, err)
		return err
	}

	return nil
}

func (s *Service) logError(operation string, userID int64, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("profile service operation failed",
		slog.String("operation", operation),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}
