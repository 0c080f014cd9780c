// Package repository implements Postgres-backed storage for profiles,
// referral edges and payment records.
package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/astroline/astroline-bot/internal/domain"
)

// ErrCodeSpaceExhausted is returned when referral code generation keeps
// colliding. With an 8-character A-Z0-9 alphabet this practically never
// happens, but the retry loop must terminate deterministically.
var ErrCodeSpaceExhausted = errors.New("referral code generation exhausted attempts")

const (
	referralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeGenMaxAttempts   = 16
)

// ProfileRepository defines persistence operations for profiles and the
// ledgers layered on top of them.
type ProfileRepository interface {
	// Create inserts a new profile, generating its referral code and, when
	// referredBy names an existing code, appending a referral edge and
	// crediting the referrer in the same transaction. credited reports
	// whether a referrer was actually found and paid. Creating an already
	// existing profile is an idempotent no-op: created=false, no credit.
	Create(ctx context.Context, profile *domain.Profile, referredBy string, bonus int64) (created, credited bool, err error)
	FindByID(ctx context.Context, userID int64) (*domain.Profile, error)
	UpdateName(ctx context.Context, userID int64, name string) error
	UpdateMessageTime(ctx context.Context, userID int64, messageTime string) error
	ListAll(ctx context.Context) ([]*domain.Profile, error)
	SetSubscriptionExpiry(ctx context.Context, userID int64, expiry time.Time) error
	AddPoints(ctx context.Context, referralCode string, amount int64) error
	ReferralStatus(ctx context.Context, userID int64) (*domain.ReferralStatus, error)
	// Delete exists as an administrative and test escape hatch only.
	Delete(ctx context.Context, userID int64) error
}

type profileRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewProfileRepository creates a new SQL-backed profile repository.
func NewProfileRepository(db *sql.DB, log *slog.Logger) ProfileRepository {
	return &profileRepository{
		db:  db,
		log: log,
	}
}

const profileColumns = `
	user_id, chat_id, name, birth_date, birth_time, birth_place,
	message_time, registered_at, referral_code, referred_by, points,
	is_subscribed, subscription_expiry
`

func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile, referredBy string, bonus int64) (bool, bool, error) {
	code, err := r.generateUniqueCode(ctx)
	if err != nil {
		return false, false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, fmt.Errorf("begin create profile: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertProfile = `
		INSERT INTO profiles (
			user_id, chat_id, name, birth_date, birth_time, birth_place,
			message_time, registered_at, referral_code, referred_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
		ON CONFLICT (user_id) DO NOTHING
	`

	res, err := tx.ExecContext(ctx, insertProfile,
		profile.UserID,
		profile.ChatID,
		profile.Name,
		profile.BirthDate,
		profile.BirthTime,
		profile.BirthPlace,
		profile.MessageTime,
		profile.RegisteredAt,
		code,
		referredBy,
	)
	if err != nil {
		r.logError("create.insert", profile.UserID, err)
		return false, false, fmt.Errorf("insert profile: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, false, fmt.Errorf("insert profile rows affected: %w", err)
	}
	if inserted == 0 {
		// Profile already exists: no edge, no credit, not an error.
		return false, false, nil
	}

	var creditApplied bool
	if referredBy != "" {
		// Credit first so an unknown code skips the edge as well. A code
		// without an owner is a benign no-op, not a failure.
		const creditReferrer = `
			UPDATE profiles SET points = points + $1 WHERE referral_code = $2
		`
		credited, err := tx.ExecContext(ctx, creditReferrer, bonus, referredBy)
		if err != nil {
			r.logError("create.credit", profile.UserID, err)
			return false, false, fmt.Errorf("credit referrer: %w", err)
		}

		n, err := credited.RowsAffected()
		if err != nil {
			return false, false, fmt.Errorf("credit referrer rows affected: %w", err)
		}

		if n > 0 {
			const insertEdge = `
				INSERT INTO referrals (referrer_code, referred_user_id, created_at)
				VALUES ($1, $2, $3)
			`
			if _, err := tx.ExecContext(ctx, insertEdge, referredBy, profile.UserID, profile.RegisteredAt); err != nil {
				r.logError("create.edge", profile.UserID, err)
				return false, false, fmt.Errorf("insert referral edge: %w", err)
			}
			creditApplied = true
		}
	}

	if err := tx.Commit(); err != nil {
		return false, false, fmt.Errorf("commit create profile: %w", err)
	}

	profile.ReferralCode = code
	profile.ReferredByCode = referredBy
	return true, creditApplied, nil
}

// FindByID retrieves a profile by the Telegram user identifier.
func (r *profileRepository) FindByID(ctx context.Context, userID int64) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`

	row := r.db.QueryRowContext(ctx, query, userID)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		r.logError("find_by_id", userID, err)
		return nil, fmt.Errorf("select profile: %w", err)
	}

	return profile, nil
}

func (r *profileRepository) UpdateName(ctx context.Context, userID int64, name string) error {
	const query = `UPDATE profiles SET name = $1 WHERE user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, name, userID); err != nil {
		r.logError("update_name", userID, err)
		return fmt.Errorf("update name: %w", err)
	}

	return nil
}

func (r *profileRepository) UpdateMessageTime(ctx context.Context, userID int64, messageTime string) error {
	const query = `UPDATE profiles SET message_time = $1 WHERE user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, messageTime, userID); err != nil {
		r.logError("update_message_time", userID, err)
		return fmt.Errorf("update message time: %w", err)
	}

	return nil
}

func (r *profileRepository) ListAll(ctx context.Context) ([]*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY user_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var profiles []*domain.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, nil
}

func (r *profileRepository) SetSubscriptionExpiry(ctx context.Context, userID int64, expiry time.Time) error {
	const query = `
		UPDATE profiles SET is_subscribed = TRUE, subscription_expiry = $1
		WHERE user_id = $2
	`

	if _, err := r.db.ExecContext(ctx, query, expiry, userID); err != nil {
		r.logError("set_subscription_expiry", userID, err)
		return fmt.Errorf("set subscription expiry: %w", err)
	}

	return nil
}

func (r *profileRepository) AddPoints(ctx context.Context, referralCode string, amount int64) error {
	const query = `UPDATE profiles SET points = points + $1 WHERE referral_code = $2`

	if _, err := r.db.ExecContext(ctx, query, amount, referralCode); err != nil {
		return fmt.Errorf("add points: %w", err)
	}

	return nil
}

// ReferralStatus counts edges whose referrer code equals the user's own code
// and returns it together with the stored points. The count is independent
// of whether the referred users ever subscribed.
func (r *profileRepository) ReferralStatus(ctx context.Context, userID int64) (*domain.ReferralStatus, error) {
	const query = `
		SELECT p.points, COUNT(ref.id)
		FROM profiles p
		LEFT JOIN referrals ref ON ref.referrer_code = p.referral_code
		WHERE p.user_id = $1
		GROUP BY p.points
	`

	var status domain.ReferralStatus
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&status.Points, &status.ReferredCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		r.logError("referral_status", userID, err)
		return nil, fmt.Errorf("select referral status: %w", err)
	}

	return &status, nil
}

func (r *profileRepository) Delete(ctx context.Context, userID int64) error {
	const query = `DELETE FROM profiles WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		r.logError("delete", userID, err)
		return fmt.Errorf("delete profile: %w", err)
	}

	return nil
}

func (r *profileRepository) generateUniqueCode(ctx context.Context) (string, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM profiles WHERE referral_code = $1)`

	for attempt := 0; attempt < codeGenMaxAttempts; attempt++ {
		code, err := randomCode(referralCodeLength)
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}

		var exists bool
		if err := r.db.QueryRowContext(ctx, query, code).Scan(&exists); err != nil {
			return "", fmt.Errorf("check referral code: %w", err)
		}

		if !exists {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(referralCodeAlphabet)))

	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = referralCodeAlphabet[n.Int64()]
	}

	return string(buf), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var (
		profile    domain.Profile
		referredBy sql.NullString
		expiry     sql.NullTime
	)

	if err := row.Scan(
		&profile.UserID,
		&profile.ChatID,
		&profile.Name,
		&profile.BirthDate,
		&profile.BirthTime,
		&profile.BirthPlace,
		&profile.MessageTime,
		&profile.RegisteredAt,
		&profile.ReferralCode,
		&referredBy,
		&profile.Points,
		&profile.IsSubscribed,
		&expiry,
	); err != nil {
		return nil, err
	}

	if referredBy.Valid {
		profile.ReferredByCode = referredBy.String
	}
	if expiry.Valid {
		t := expiry.Time
		profile.SubscriptionExpiry = &t
	}

	return &profile, nil
}

func (r *profileRepository) logError(operation string, userID int64, err error) {
	if r.log == nil || err == nil {
		return
	}

	r.log.Error("profile repository operation failed",
		slog.String("operation", operation),
		slog.Int64("user_id", userID),
		slog.Any("error", err),
	)
}
